//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coursewise/videokb/internal/api/handlers"
	"github.com/coursewise/videokb/internal/domain"
	"github.com/coursewise/videokb/internal/repository"
	"github.com/coursewise/videokb/internal/server"
	"github.com/coursewise/videokb/internal/service"
	"github.com/coursewise/videokb/internal/storage"
	"github.com/coursewise/videokb/internal/testutil"
	"github.com/coursewise/videokb/internal/youtube"
	"github.com/jackc/pgx/v5/pgxpool"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	BinaryDir    string
	OwnerID      string
	APIKeyToken  string
	HTTPClient   *http.Client

	Captions    *fakeCaptionSource
	Embeddings  *fakeEmbeddingClient
	Completions *fakeCompletionClient
}

// SetupE2EEnv creates a full E2E test environment with containers and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "test-captions",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}

	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	captions := newFakeCaptionSource()
	embeddings := &fakeEmbeddingClient{}
	completions := &fakeCompletionClient{answer: "The video walks through the topic step by step."}

	serverURL, serverCloser := startServer(t, pool, s3Client, captions, embeddings, completions, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		Captions:     captions,
		Embeddings:   embeddings,
		Completions:  completions,
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// Bootstrap creates an owner and API key for testing
func (e *E2ETestEnv) Bootstrap() {
	ownerResp, err := e.Post("/owners", map[string]string{"name": "E2E Test Owner"}, "")
	if err != nil {
		e.T.Fatalf("failed to create owner: %v", err)
	}

	var ownerData struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(ownerResp.Data, &ownerData); err != nil {
		e.T.Fatalf("failed to parse owner response: %v", err)
	}
	e.OwnerID = ownerData.ID

	keyResp, err := e.Post("/apikeys", map[string]string{
		"owner_id": e.OwnerID,
		"name":     "e2e-test-key",
	}, "")
	if err != nil {
		e.T.Fatalf("failed to create API key: %v", err)
	}

	var keyData struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(keyResp.Data, &keyData); err != nil {
		e.T.Fatalf("failed to parse key response: %v", err)
	}
	e.APIKeyToken = keyData.Token
}

// BuildBinaries builds the videokb and videokbd binaries
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "videokb-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "videokbd"), "./cmd/videokbd")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build videokbd: %v\n%s", err, out)
	}

	cmd = exec.Command("go", "build", "-o", filepath.Join(tmpDir, "videokb"), "./cmd/videokb")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build videokb: %v\n%s", err, out)
	}
}

// RunVideoKB runs the videokb CLI command
func (e *E2ETestEnv) RunVideoKB(workDir string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "videokb"), args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("VIDEOKB_API_KEY=%s", e.APIKeyToken),
		fmt.Sprintf("VIDEOKB_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d [%s]: %s", resp.StatusCode, apiResp.Code, apiResp.Error)
	}

	return &apiResp, nil
}

// startServer starts the HTTP server with the full service stack,
// swapping the YouTube caption fetcher and the OpenAI clients for
// deterministic fakes.
func startServer(
	t *testing.T,
	pool *pgxpool.Pool,
	s3Client *storage.S3Client,
	captions *fakeCaptionSource,
	embeddings *fakeEmbeddingClient,
	completions *fakeCompletionClient,
	port int,
) (string, func()) {
	ownerRepo := repository.NewOwnerRepository(pool)
	apiKeyRepo := repository.NewAPIKeyRepository(pool)
	analysisRepo := repository.NewAnalysisRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	questionRepo := repository.NewQuestionRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	uuidGen := &service.DefaultUUIDGenerator{}
	transcriptSvc := service.NewTranscriptService(captions, nil, nil, s3Client)
	analysisSvc := service.NewAnalysisService(analysisRepo, chunkRepo, txRunner, &fakeMetadataSource{}, transcriptSvc, embeddings)
	qaSvc := service.NewQAService(analysisSvc, chunkRepo, questionRepo, embeddings, completions)
	authSvc := service.NewAuthService(ownerRepo, apiKeyRepo, uuidGen)

	cfg := server.RouterConfig{
		AuthValidator:   authSvc,
		AnalysisHandler: handlers.NewAnalysisHandler(analysisSvc, qaSvc),
		AuthHandler:     handlers.NewAuthHandler(authSvc),
	}

	router := server.NewRouter(cfg)
	addr := fmt.Sprintf(":%d", port)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// fakeCaptionSource serves canned transcripts keyed by video ID.
type fakeCaptionSource struct {
	mu          sync.Mutex
	transcripts map[string]string
}

func newFakeCaptionSource() *fakeCaptionSource {
	return &fakeCaptionSource{transcripts: make(map[string]string)}
}

// Register makes a transcript available for the given video ID.
func (f *fakeCaptionSource) Register(videoID, transcript string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcripts[videoID] = transcript
}

func (f *fakeCaptionSource) FetchCaptions(ctx context.Context, videoID string) (*youtube.CaptionTranscript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.transcripts[videoID]
	if !ok {
		return nil, domain.ErrNoTranscriptAvailable
	}
	return &youtube.CaptionTranscript{
		Text:     text,
		Language: "en",
		Raw:      []byte("<transcript>" + text + "</transcript>"),
	}, nil
}

// fakeMetadataSource returns fixed metadata for every video.
type fakeMetadataSource struct{}

func (fakeMetadataSource) FetchMetadata(ctx context.Context, videoID string) youtube.Metadata {
	return youtube.Metadata{Title: "Video " + videoID, Channel: "E2E Channel"}
}

// fakeEmbeddingClient derives a deterministic 1536-dim vector from the
// text so identical texts rank with cosine similarity 1.
type fakeEmbeddingClient struct {
	calls atomic.Int64
}

func (f *fakeEmbeddingClient) Calls() int64 {
	return f.calls.Load()
}

func (f *fakeEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, 1536)
	for i := range vec {
		vec[i] = float32(sum[i%len(sum)]) / 255.0
	}
	return vec, nil
}

// fakeCompletionClient returns a fixed answer and counts invocations.
type fakeCompletionClient struct {
	answer string
	calls  atomic.Int64
}

func (f *fakeCompletionClient) Calls() int64 {
	return f.calls.Load()
}

func (f *fakeCompletionClient) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls.Add(1)
	return f.answer, nil
}
