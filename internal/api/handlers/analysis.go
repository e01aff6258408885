package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/coursewise/videokb/internal/api"
	"github.com/coursewise/videokb/internal/api/middleware"
	"github.com/coursewise/videokb/internal/domain"
	"github.com/coursewise/videokb/internal/service"
)

type AnalysisService interface {
	Analyze(ctx context.Context, input service.AnalyzeInput) (*domain.VideoAnalysis, error)
	GetByID(ctx context.Context, ownerID, id string) (*domain.VideoAnalysis, error)
	GetChunks(ctx context.Context, ownerID, analysisID string) ([]*domain.TranscriptChunk, error)
	List(ctx context.Context, input service.ListAnalysesInput) (*service.ListAnalysesOutput, error)
}

type QAService interface {
	Ask(ctx context.Context, input service.AskInput) (*domain.Question, error)
	History(ctx context.Context, ownerID, analysisID string) ([]*domain.Question, error)
}

type AnalysisHandler struct {
	analyses AnalysisService
	qa       QAService
}

func NewAnalysisHandler(analyses AnalysisService, qa QAService) *AnalysisHandler {
	return &AnalysisHandler{analyses: analyses, qa: qa}
}

type AnalyzeRequest struct {
	URL string `json:"url"`
}

type AskRequest struct {
	Question string `json:"question"`
}

type AnalysisResponse struct {
	ID              string `json:"id"`
	VideoID         string `json:"video_id"`
	URL             string `json:"url"`
	Title           string `json:"title"`
	Channel         string `json:"channel"`
	Source          string `json:"source"`
	CaptionLanguage string `json:"caption_language,omitempty"`
	CreatedAt       string `json:"created_at"`
}

type ChunkResponse struct {
	ID         string `json:"id"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
}

type QuestionResponse struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	CreatedAt string `json:"created_at"`
}

func analysisToResponse(a *domain.VideoAnalysis) *AnalysisResponse {
	return &AnalysisResponse{
		ID:              a.ID,
		VideoID:         a.VideoID,
		URL:             a.URL,
		Title:           a.Title,
		Channel:         a.Channel,
		Source:          string(a.Source),
		CaptionLanguage: a.CaptionLanguage,
		CreatedAt:       a.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func questionToResponse(q *domain.Question) *QuestionResponse {
	return &QuestionResponse{
		ID:        q.ID,
		Question:  q.Question,
		Answer:    q.Answer,
		CreatedAt: q.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *AnalysisHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" {
		api.Error(w, http.StatusBadRequest, "url is required")
		return
	}

	analysis, err := h.analyses.Analyze(r.Context(), service.AnalyzeInput{
		OwnerID: ownerID,
		URL:     req.URL,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, analysisToResponse(analysis))
}

func (h *AnalysisHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	analysis, err := h.analyses.GetByID(r.Context(), ownerID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, analysisToResponse(analysis))
}

type AnalysisListResponse struct {
	Items   []*AnalysisResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *AnalysisHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.analyses.List(r.Context(), service.ListAnalysesInput{
		OwnerID: ownerID,
		Cursor:  cursor,
		Limit:   limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*AnalysisResponse, len(output.Items))
	for i, a := range output.Items {
		responses[i] = analysisToResponse(a)
	}

	api.Success(w, http.StatusOK, AnalysisListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *AnalysisHandler) Chunks(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	chunks, err := h.analyses.GetChunks(r.Context(), ownerID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ChunkResponse, len(chunks))
	for i, c := range chunks {
		responses[i] = &ChunkResponse{
			ID:         c.ID,
			ChunkIndex: c.ChunkIndex,
			Content:    c.Content,
		}
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *AnalysisHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	question, err := h.qa.Ask(r.Context(), service.AskInput{
		OwnerID:    ownerID,
		AnalysisID: id,
		Question:   req.Question,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, questionToResponse(question))
}

func (h *AnalysisHandler) Questions(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	if ownerID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	questions, err := h.qa.History(r.Context(), ownerID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*QuestionResponse, len(questions))
	for i, q := range questions {
		responses[i] = questionToResponse(q)
	}

	api.Success(w, http.StatusOK, responses)
}
