package httpapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"rag-engine/internal/domain"
	"rag-engine/internal/usecase"
)

// Handler exposes the engine over HTTP. Route semantics live in the usecases;
// this layer only binds, maps and serializes.
type Handler struct {
	ingestUsecase    usecase.IngestDocumentUsecase
	answerUsecase    usecase.AnswerUsecase
	recommendUsecase usecase.RecommendUsecase
	memory           domain.ConversationStore
	lexical          domain.LexicalIndex
	jobRepo          domain.ReindexJobRepository
}

func NewHandler(
	ingestUsecase usecase.IngestDocumentUsecase,
	answerUsecase usecase.AnswerUsecase,
	recommendUsecase usecase.RecommendUsecase,
	memory domain.ConversationStore,
	lexical domain.LexicalIndex,
	jobRepo domain.ReindexJobRepository,
) *Handler {
	return &Handler{
		ingestUsecase:    ingestUsecase,
		answerUsecase:    answerUsecase,
		recommendUsecase: recommendUsecase,
		memory:           memory,
		lexical:          lexical,
		jobRepo:          jobRepo,
	}
}

// Register mounts all routes on the echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.POST("/v1/rag/documents", h.IngestDocument)
	e.POST("/v1/rag/ask", h.Ask)
	e.POST("/v1/rag/recommendations", h.Recommend)
	e.DELETE("/v1/rag/memory/:identity", h.ClearMemory)
	e.POST("/internal/rag/reindex", h.Reindex)
}

type visualElementRequest struct {
	Type    string `json:"type"`
	Caption string `json:"caption"`
	Content string `json:"content"`
	Page    int    `json:"page"`
}

type ingestRequest struct {
	Text       string                 `json:"text"`
	Visuals    []visualElementRequest `json:"visuals"`
	OwnerID    string                 `json:"owner_id"`
	DocumentID string                 `json:"document_id"`
	Title      string                 `json:"title"`
}

type ingestResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// IngestDocument indexes a document into both indices.
// (POST /v1/rag/documents)
func (h *Handler) IngestDocument(ctx echo.Context) error {
	var req ingestRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, ingestResponse{Success: false, Error: "invalid request"})
	}

	visuals := make([]domain.VisualElement, 0, len(req.Visuals))
	for _, v := range req.Visuals {
		visuals = append(visuals, domain.VisualElement{
			Type:    domain.ElementType(v.Type),
			Caption: v.Caption,
			Content: v.Content,
			Page:    v.Page,
		})
	}

	err := h.ingestUsecase.Execute(ctx.Request().Context(), usecase.IngestDocumentInput{
		Text:       req.Text,
		Visuals:    visuals,
		OwnerID:    req.OwnerID,
		DocumentID: req.DocumentID,
		Title:      req.Title,
	})
	if err != nil {
		return ctx.JSON(http.StatusUnprocessableEntity, ingestResponse{Success: false, Error: err.Error()})
	}

	return ctx.JSON(http.StatusOK, ingestResponse{Success: true})
}

type askFilters struct {
	OwnerID    string `json:"owner_id"`
	DocumentID string `json:"document_id"`
}

type askRequest struct {
	Question  string      `json:"question"`
	Identity  string      `json:"identity"`
	Filters   *askFilters `json:"filters"`
	Verify    bool        `json:"verify"`
	Threshold float64     `json:"threshold"`
	MaxTokens int         `json:"max_tokens"`
}

type verificationCheckResponse struct {
	Score       float64 `json:"score"`
	Passed      bool    `json:"passed"`
	Explanation string  `json:"explanation,omitempty"`
}

type verificationResponse struct {
	ContextRelevance   verificationCheckResponse `json:"context_relevance"`
	AnswerFaithfulness verificationCheckResponse `json:"answer_faithfulness"`
	AnswerRelevance    verificationCheckResponse `json:"answer_relevance"`
	Composite          float64                   `json:"composite"`
}

type contextResponse struct {
	Content     string  `json:"content"`
	ElementType string  `json:"element_type"`
	Caption     string  `json:"caption,omitempty"`
	DocumentID  string  `json:"document_id"`
	Title       string  `json:"title,omitempty"`
	Score       float64 `json:"score"`
}

type askResponse struct {
	Answer       string                `json:"answer"`
	Status       string                `json:"status"`
	Score        *float64              `json:"score,omitempty"`
	Verification *verificationResponse `json:"verification,omitempty"`
	Contexts     []contextResponse     `json:"contexts,omitempty"`
	Reason       string                `json:"reason,omitempty"`
}

// Ask answers a question against the indexed corpus.
// (POST /v1/rag/ask)
func (h *Handler) Ask(ctx echo.Context) error {
	var req askRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Question == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "question is required"})
	}

	input := usecase.AskInput{
		Question:         req.Question,
		Identity:         req.Identity,
		WantVerification: req.Verify,
		Threshold:        req.Threshold,
		MaxTokens:        req.MaxTokens,
	}
	if req.Filters != nil {
		input.Filters = &usecase.RetrieveFilters{
			OwnerID:    req.Filters.OwnerID,
			DocumentID: req.Filters.DocumentID,
		}
	}

	output, err := h.answerUsecase.Execute(ctx.Request().Context(), input)
	if err != nil {
		return ctx.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}

	resp := askResponse{
		Answer: output.Answer,
		Status: string(output.Status),
		Reason: output.Reason,
	}
	for _, item := range output.Contexts {
		resp.Contexts = append(resp.Contexts, contextResponse{
			Content:     item.Chunk.Content,
			ElementType: string(item.Chunk.ElementType),
			Caption:     item.Chunk.Caption,
			DocumentID:  item.Chunk.DocumentID,
			Title:       item.Chunk.Title,
			Score:       item.Score,
		})
	}
	if output.Report != nil {
		score := output.Score
		resp.Score = &score
		resp.Verification = &verificationResponse{
			ContextRelevance:   toCheckResponse(output.Report.ContextRelevance),
			AnswerFaithfulness: toCheckResponse(output.Report.AnswerFaithfulness),
			AnswerRelevance:    toCheckResponse(output.Report.AnswerRelevance),
			Composite:          output.Report.Composite,
		}
	}

	return ctx.JSON(http.StatusOK, resp)
}

func toCheckResponse(result domain.VerificationResult) verificationCheckResponse {
	return verificationCheckResponse{
		Score:       result.Score,
		Passed:      result.Passed,
		Explanation: result.Explanation,
	}
}

type recommendRequest struct {
	Text              string `json:"text"`
	N                 int    `json:"n"`
	ExcludeDocumentID string `json:"exclude_document_id"`
}

type recommendationResponse struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet,omitempty"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
	URL     string  `json:"url,omitempty"`
	Year    int     `json:"year,omitempty"`
}

// Recommend returns related local documents and recent papers.
// (POST /v1/rag/recommendations)
func (h *Handler) Recommend(ctx echo.Context) error {
	var req recommendRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if req.Text == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "text is required"})
	}

	output, err := h.recommendUsecase.Execute(ctx.Request().Context(), usecase.RecommendInput{
		Text:              req.Text,
		N:                 req.N,
		ExcludeDocumentID: req.ExcludeDocumentID,
	})
	if err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	recommendations := make([]recommendationResponse, 0, len(output.Recommendations))
	for _, rec := range output.Recommendations {
		recommendations = append(recommendations, recommendationResponse{
			ID:      rec.ID,
			Title:   rec.Title,
			Snippet: rec.Snippet,
			Source:  string(rec.Source),
			Score:   rec.Score,
			URL:     rec.URL,
			Year:    rec.Year,
		})
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{"recommendations": recommendations})
}

// ClearMemory wipes an identity's conversation log.
// (DELETE /v1/rag/memory/:identity)
func (h *Handler) ClearMemory(ctx echo.Context) error {
	identity := ctx.Param("identity")
	if identity == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "identity is required"})
	}

	if err := h.memory.Clear(ctx.Request().Context(), identity); err != nil {
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return ctx.JSON(http.StatusOK, map[string]string{"status": "cleared"})
}

type reindexRequest struct {
	DocumentID string `json:"document_id"`
}

// Reindex enqueues background re-ingestion jobs, for one document or all.
// (POST /internal/rag/reindex)
func (h *Handler) Reindex(ctx echo.Context) error {
	var req reindexRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	documentIDs := []string{req.DocumentID}
	if req.DocumentID == "" {
		ids, err := h.lexical.AllDocumentIDs(ctx.Request().Context())
		if err != nil {
			return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		documentIDs = ids
	}

	now := time.Now()
	jobIDs := make([]string, 0, len(documentIDs))
	for _, docID := range documentIDs {
		job := &domain.ReindexJob{
			ID:         uuid.New(),
			DocumentID: docID,
			Status:     domain.JobStatusNew,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := h.jobRepo.Enqueue(ctx.Request().Context(), job); err != nil {
			return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		jobIDs = append(jobIDs, job.ID.String())
	}

	return ctx.JSON(http.StatusAccepted, map[string]interface{}{
		"status":  "queued",
		"job_ids": jobIDs,
	})
}
