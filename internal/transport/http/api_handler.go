package http

import (
	"encoding/json"
	"io"
	"net/http"

	"mcqlab/internal/app"
)

// APIHandler exposes the submission pipeline and the read/record endpoints
// as plain JSON over HTTP.
type APIHandler struct {
	submissions *app.SubmissionService
	quizzes     *app.QuizService
	entitlement *app.EntitlementService
	extractor   app.ContentExtractor
}

func NewAPIHandler(
	submissions *app.SubmissionService,
	quizzes *app.QuizService,
	entitlement *app.EntitlementService,
	extractor app.ContentExtractor,
) *APIHandler {
	return &APIHandler{
		submissions: submissions,
		quizzes:     quizzes,
		entitlement: entitlement,
		extractor:   extractor,
	}
}

// Register mounts every API route on the mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/extract-url", h.SubmitURL)
	mux.HandleFunc("POST /api/extract", h.ExtractOnly)
	mux.HandleFunc("POST /api/upload", h.Upload)
	mux.HandleFunc("GET /api/resources", h.ListResources)
	mux.HandleFunc("GET /api/resources/{id}", h.GetResource)
	mux.HandleFunc("DELETE /api/resources/{id}", h.DeleteResource)
	mux.HandleFunc("GET /api/quizzes/{id}", h.GetQuiz)
	mux.HandleFunc("GET /api/performances", h.ListPerformances)
	mux.HandleFunc("POST /api/performances", h.CreatePerformance)
	mux.HandleFunc("DELETE /api/performances/{id}", h.DeletePerformance)
	mux.HandleFunc("GET /api/entitlement", h.Entitlement)
	mux.HandleFunc("GET /healthz", h.Health)
}

type submitURLRequest struct {
	URL    string `json:"url"`
	Text   string `json:"text"`
	UserID string `json:"userId"`
}

// SubmitURL runs the full pipeline for a URL or pasted-text submission.
func (h *APIHandler) SubmitURL(w http.ResponseWriter, r *http.Request) {
	var req submitURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if req.URL == "" && req.Text == "" {
		writeError(w, http.StatusBadRequest, "url or text is required")
		return
	}

	result, err := h.submissions.Submit(r.Context(), app.SubmitRequest{
		UserID: req.UserID,
		URL:    req.URL,
		Text:   req.Text,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type extractRequest struct {
	URL string `json:"url"`
}

// ExtractOnly fetches and cleans the content without generating a quiz.
func (h *APIHandler) ExtractOnly(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	result, err := h.extractor.ExtractURL(r.Context(), req.URL)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

const maxUploadBytes = 16 << 20

// Upload accepts a multipart document and runs the full pipeline on it.
func (h *APIHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	userID := r.FormValue("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	result, err := h.submissions.Submit(r.Context(), app.SubmitRequest{
		UserID:   userID,
		FileName: header.Filename,
		FileData: data,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *APIHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	resources, err := h.quizzes.ListResources(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resources)
}

func (h *APIHandler) GetResource(w http.ResponseWriter, r *http.Request) {
	resource, err := h.quizzes.GetResource(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resource)
}

func (h *APIHandler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if err := h.quizzes.DeleteResource(r.Context(), r.PathValue("id"), userID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "deleted"})
}

func (h *APIHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.quizzes.GetQuiz(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *APIHandler) ListPerformances(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	performances, err := h.quizzes.ListPerformances(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, performances)
}

type performanceRequest struct {
	QuizID         string `json:"quizId"`
	UserID         string `json:"userId"`
	CorrectAnswers int    `json:"correctAnswers"`
}

func (h *APIHandler) CreatePerformance(w http.ResponseWriter, r *http.Request) {
	var req performanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuizID == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "quizId and userId are required")
		return
	}
	performance, err := h.quizzes.RecordPerformance(r.Context(), req.QuizID, req.UserID, req.CorrectAnswers)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, performance)
}

func (h *APIHandler) DeletePerformance(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if err := h.quizzes.DeletePerformance(r.Context(), r.PathValue("id"), userID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "deleted"})
}

func (h *APIHandler) Entitlement(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}
	ent, err := h.entitlement.Check(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

func (h *APIHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
