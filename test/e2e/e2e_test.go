//go:build e2e

package e2e

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coursewise/videokb/internal/domain"
	"github.com/coursewise/videokb/internal/repository"
	"github.com/coursewise/videokb/internal/service"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTranscript = "Welcome to the channel. Today we cover goroutines and channels. " +
	"A goroutine is a lightweight thread managed by the Go runtime. " +
	"Channels let goroutines communicate without explicit locks. " +
	"We close with a word on the select statement and timeouts."

type analysisPayload struct {
	ID              string `json:"id"`
	VideoID         string `json:"video_id"`
	URL             string `json:"url"`
	Title           string `json:"title"`
	Channel         string `json:"channel"`
	Source          string `json:"source"`
	CaptionLanguage string `json:"caption_language"`
	CreatedAt       string `json:"created_at"`
}

type chunkPayload struct {
	ID         string `json:"id"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
}

type questionPayload struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	CreatedAt string `json:"created_at"`
}

type listPayload struct {
	Items   []analysisPayload `json:"items"`
	Cursor  string            `json:"cursor"`
	HasMore bool              `json:"has_more"`
}

// TestE2E_Bootstrap tests owner and API key creation
func TestE2E_Bootstrap(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("create owner", func(t *testing.T) {
		resp, err := env.Post("/owners", map[string]string{"name": "Test Owner"}, "")
		require.NoError(t, err)

		var owner struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			CreatedAt string `json:"created_at"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &owner))
		assert.NotEmpty(t, owner.ID)
		assert.Equal(t, "Test Owner", owner.Name)
		assert.NotEmpty(t, owner.CreatedAt)
	})

	t.Run("create API key", func(t *testing.T) {
		ownerResp, err := env.Post("/owners", map[string]string{"name": "Key Test Owner"}, "")
		require.NoError(t, err)

		var owner struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(ownerResp.Data, &owner))

		keyResp, err := env.Post("/apikeys", map[string]string{
			"owner_id": owner.ID,
			"name":     "test-key",
		}, "")
		require.NoError(t, err)

		var key struct {
			Token string `json:"token"`
			Name  string `json:"name"`
		}
		require.NoError(t, json.Unmarshal(keyResp.Data, &key))
		assert.Equal(t, "test-key", key.Name)
		assert.True(t, strings.HasPrefix(key.Token, "vkb_"))
		assert.Len(t, key.Token, 68) // vkb_ prefix (4) + 32 bytes hex (64)
	})

	t.Run("API key works for authentication", func(t *testing.T) {
		env.Bootstrap()

		resp, err := env.Get("/analyses", env.APIKeyToken)
		require.NoError(t, err)

		var list listPayload
		require.NoError(t, json.Unmarshal(resp.Data, &list))
		assert.False(t, list.HasMore)
	})

	t.Run("invalid API key returns 401", func(t *testing.T) {
		_, err := env.Get("/analyses", "vkb_deadbeef")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})
}

// TestE2E_AnalyzeLifecycle tests the full analyze → get → chunks flow
func TestE2E_AnalyzeLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	env.Captions.Register("dQw4w9WgXcQ", sampleTranscript)

	var analysis analysisPayload

	t.Run("analyze video", func(t *testing.T) {
		resp, err := env.Post("/analyses", map[string]string{
			"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		}, env.APIKeyToken)
		require.NoError(t, err)

		require.NoError(t, json.Unmarshal(resp.Data, &analysis))
		assert.NotEmpty(t, analysis.ID)
		assert.Equal(t, "dQw4w9WgXcQ", analysis.VideoID)
		assert.Equal(t, "Video dQw4w9WgXcQ", analysis.Title)
		assert.Equal(t, "E2E Channel", analysis.Channel)
		assert.Equal(t, "captions", analysis.Source)
		assert.Equal(t, "en", analysis.CaptionLanguage)
	})

	t.Run("get analysis by ID", func(t *testing.T) {
		resp, err := env.Get("/analyses/"+analysis.ID, env.APIKeyToken)
		require.NoError(t, err)

		var got analysisPayload
		require.NoError(t, json.Unmarshal(resp.Data, &got))
		assert.Equal(t, analysis.ID, got.ID)
		assert.Equal(t, analysis.VideoID, got.VideoID)
	})

	t.Run("chunks are ordered and cover the transcript", func(t *testing.T) {
		resp, err := env.Get("/analyses/"+analysis.ID+"/chunks", env.APIKeyToken)
		require.NoError(t, err)

		var chunks []chunkPayload
		require.NoError(t, json.Unmarshal(resp.Data, &chunks))
		require.NotEmpty(t, chunks)

		for i, chunk := range chunks {
			assert.Equal(t, i, chunk.ChunkIndex)
			assert.NotEmpty(t, chunk.Content)
		}
		assert.True(t, strings.HasPrefix(sampleTranscript, chunks[0].Content[:20]))
	})

	t.Run("archived captions land in S3", func(t *testing.T) {
		payload, err := env.S3Client.GetArchivedCaptions(env.Ctx, "dQw4w9WgXcQ")
		require.NoError(t, err)
		assert.Contains(t, string(payload), sampleTranscript)
	})

	t.Run("video without transcript returns 422", func(t *testing.T) {
		_, err := env.Post("/analyses", map[string]string{
			"url": "https://www.youtube.com/watch?v=noCaptions1",
		}, env.APIKeyToken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "422")
		assert.Contains(t, err.Error(), "NO_TRANSCRIPT")
	})

	t.Run("invalid URL returns 400", func(t *testing.T) {
		_, err := env.Post("/analyses", map[string]string{
			"url": "https://example.com/not-youtube",
		}, env.APIKeyToken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})
}

// TestE2E_ListPagination tests cursor pagination over analyses
func TestE2E_ListPagination(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	videoIDs := []string{"aaaaaaaaaa1", "aaaaaaaaaa2", "aaaaaaaaaa3"}
	for _, id := range videoIDs {
		env.Captions.Register(id, sampleTranscript)
		_, err := env.Post("/analyses", map[string]string{
			"url": "https://www.youtube.com/watch?v=" + id,
		}, env.APIKeyToken)
		require.NoError(t, err)
		// created_at granularity is what the cursor orders on
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := env.Get("/analyses?limit=2", env.APIKeyToken)
	require.NoError(t, err)

	var page1 listPayload
	require.NoError(t, json.Unmarshal(resp.Data, &page1))
	require.Len(t, page1.Items, 2)
	assert.True(t, page1.HasMore)
	require.NotEmpty(t, page1.Cursor)

	// Newest first
	assert.Equal(t, "aaaaaaaaaa3", page1.Items[0].VideoID)
	assert.Equal(t, "aaaaaaaaaa2", page1.Items[1].VideoID)

	resp, err = env.Get("/analyses?limit=2&cursor="+page1.Cursor, env.APIKeyToken)
	require.NoError(t, err)

	var page2 listPayload
	require.NoError(t, json.Unmarshal(resp.Data, &page2))
	require.Len(t, page2.Items, 1)
	assert.False(t, page2.HasMore)
	assert.Equal(t, "aaaaaaaaaa1", page2.Items[0].VideoID)
}

// TestE2E_OwnerIsolation verifies one owner cannot read another's analyses
func TestE2E_OwnerIsolation(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	env.Captions.Register("dQw4w9WgXcQ", sampleTranscript)
	resp, err := env.Post("/analyses", map[string]string{
		"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	}, env.APIKeyToken)
	require.NoError(t, err)

	var analysis analysisPayload
	require.NoError(t, json.Unmarshal(resp.Data, &analysis))

	// Second owner with their own key
	otherResp, err := env.Post("/owners", map[string]string{"name": "Other Owner"}, "")
	require.NoError(t, err)
	var other struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(otherResp.Data, &other))

	keyResp, err := env.Post("/apikeys", map[string]string{
		"owner_id": other.ID,
		"name":     "other-key",
	}, "")
	require.NoError(t, err)
	var key struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(keyResp.Data, &key))

	_, err = env.Get("/analyses/"+analysis.ID, key.Token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	listResp, err := env.Get("/analyses", key.Token)
	require.NoError(t, err)
	var list listPayload
	require.NoError(t, json.Unmarshal(listResp.Data, &list))
	assert.Empty(t, list.Items)
}

// TestE2E_AskWorkflow tests question answering and history
func TestE2E_AskWorkflow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()

	env.Captions.Register("dQw4w9WgXcQ", sampleTranscript)
	resp, err := env.Post("/analyses", map[string]string{
		"url": "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
	}, env.APIKeyToken)
	require.NoError(t, err)

	var analysis analysisPayload
	require.NoError(t, json.Unmarshal(resp.Data, &analysis))

	t.Run("ask a question", func(t *testing.T) {
		resp, err := env.Post("/analyses/"+analysis.ID+"/questions", map[string]string{
			"question": "What is a goroutine?",
		}, env.APIKeyToken)
		require.NoError(t, err)

		var qa questionPayload
		require.NoError(t, json.Unmarshal(resp.Data, &qa))
		assert.Equal(t, "What is a goroutine?", qa.Question)
		assert.Equal(t, "The video walks through the topic step by step.", qa.Answer)
	})

	t.Run("empty question returns 400", func(t *testing.T) {
		_, err := env.Post("/analyses/"+analysis.ID+"/questions", map[string]string{
			"question": "   ",
		}, env.APIKeyToken)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})

	t.Run("history returns newest first", func(t *testing.T) {
		_, err := env.Post("/analyses/"+analysis.ID+"/questions", map[string]string{
			"question": "What about channels?",
		}, env.APIKeyToken)
		require.NoError(t, err)

		resp, err := env.Get("/analyses/"+analysis.ID+"/questions", env.APIKeyToken)
		require.NoError(t, err)

		var history []questionPayload
		require.NoError(t, json.Unmarshal(resp.Data, &history))
		require.Len(t, history, 2)
		assert.Equal(t, "What about channels?", history[0].Question)
		assert.Equal(t, "What is a goroutine?", history[1].Question)
	})

	t.Run("analysis without chunks answers without model calls", func(t *testing.T) {
		// Seed an analysis with no chunk rows directly
		analysisRepo := repository.NewAnalysisRepository(env.Pool)
		empty := &domain.VideoAnalysis{
			ID:        uuid.NewString(),
			OwnerID:   env.OwnerID,
			VideoID:   "emptyVid001",
			URL:       "https://www.youtube.com/watch?v=emptyVid001",
			Title:     "Empty",
			Channel:   "E2E Channel",
			Source:    domain.TranscriptSourceCaptions,
			CreatedAt: time.Now().UTC(),
		}
		require.NoError(t, analysisRepo.Create(env.Ctx, empty))

		embedCallsBefore := env.Embeddings.Calls()
		completeCallsBefore := env.Completions.Calls()

		resp, err := env.Post("/analyses/"+empty.ID+"/questions", map[string]string{
			"question": "Anything in here?",
		}, env.APIKeyToken)
		require.NoError(t, err)

		var qa questionPayload
		require.NoError(t, json.Unmarshal(resp.Data, &qa))
		assert.Equal(t, service.NoRelevantContentAnswer, qa.Answer)

		assert.Equal(t, embedCallsBefore, env.Embeddings.Calls())
		assert.Equal(t, completeCallsBefore, env.Completions.Calls())
	})
}

// TestE2E_CLIWorkflow drives the compiled videokb binary against the server
func TestE2E_CLIWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping CLI workflow in short mode")
	}

	env := SetupE2EEnv(t)
	defer env.Cleanup()
	env.Bootstrap()
	env.BuildBinaries()

	workDir := t.TempDir()
	env.Captions.Register("dQw4w9WgXcQ", sampleTranscript)

	var analysisID string

	t.Run("analyze via CLI", func(t *testing.T) {
		out, err := env.RunVideoKB(workDir, "analyze", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "--output")
		require.NoError(t, err, "output: %s", out)

		var analysis analysisPayload
		require.NoError(t, json.Unmarshal([]byte(out), &analysis))
		assert.Equal(t, "dQw4w9WgXcQ", analysis.VideoID)
		analysisID = analysis.ID
	})

	t.Run("list via CLI", func(t *testing.T) {
		out, err := env.RunVideoKB(workDir, "list", "--output")
		require.NoError(t, err, "output: %s", out)

		var list listPayload
		require.NoError(t, json.Unmarshal([]byte(out), &list))
		require.Len(t, list.Items, 1)
		assert.Equal(t, analysisID, list.Items[0].ID)
	})

	t.Run("ask via CLI", func(t *testing.T) {
		out, err := env.RunVideoKB(workDir, "ask", analysisID, "What is covered?")
		require.NoError(t, err, "output: %s", out)
		assert.Contains(t, out, "The video walks through the topic step by step.")
	})

	t.Run("questions via CLI", func(t *testing.T) {
		out, err := env.RunVideoKB(workDir, "questions", analysisID, "--output")
		require.NoError(t, err, "output: %s", out)

		var history []questionPayload
		require.NoError(t, json.Unmarshal([]byte(out), &history))
		require.Len(t, history, 1)
		assert.Equal(t, "What is covered?", history[0].Question)
	})
}
