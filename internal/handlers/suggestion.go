package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/mindio/internal/logging"
	"github.com/HammerMeetNail/mindio/internal/models"
	"github.com/HammerMeetNail/mindio/internal/services"
	"github.com/HammerMeetNail/mindio/internal/textutil"
)

type SuggestionHandler struct {
	suggestions services.SuggestionServiceInterface
	daily       services.DailyServiceInterface
}

func NewSuggestionHandler(suggestions services.SuggestionServiceInterface, daily services.DailyServiceInterface) *SuggestionHandler {
	return &SuggestionHandler{suggestions: suggestions, daily: daily}
}

type CreateSuggestionRequest struct {
	Text string `json:"text"`
}

type IngestDailyRequest struct {
	Text string `json:"text"`
}

type ReactRequest struct {
	SuggestionID int64  `json:"suggestion_id"`
	Reaction     string `json:"reaction"`
}

type SaveRequest struct {
	SuggestionID int64 `json:"suggestion_id"`
}

type CommentRequest struct {
	SuggestionID int64  `json:"suggestion_id"`
	Text         string `json:"text"`
}

type SaveResponse struct {
	Status string `json:"status"`
	Saved  bool   `json:"saved"`
}

func (h *SuggestionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CreateSuggestionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	suggestion, err := h.suggestions.Create(r.Context(), user.ID, req.Text)
	if err != nil {
		writeServiceError(w, r, err, "Suggestion", "creating suggestion")
		return
	}

	writeJSON(w, http.StatusCreated, suggestion)
}

func (h *SuggestionHandler) ListByAuthor(w http.ResponseWriter, r *http.Request) {
	if GetUserFromContext(r.Context()) == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	authorID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	suggestions, err := h.suggestions.ListByAuthor(r.Context(), authorID)
	if err != nil {
		writeServiceError(w, r, err, "Suggestion", "listing suggestions by author")
		return
	}
	if suggestions == nil {
		suggestions = []*models.Suggestion{}
	}

	writeJSON(w, http.StatusOK, suggestions)
}

func (h *SuggestionHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, err := parseSuggestionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid suggestion ID")
		return
	}

	view, err := h.suggestions.Get(r.Context(), id, user.ID)
	if err != nil {
		writeServiceError(w, r, err, "Suggestion", "getting suggestion")
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *SuggestionHandler) Feed(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	feed, err := h.suggestions.Feed(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err, "Suggestion", "loading feed")
		return
	}
	if feed == nil {
		feed = []models.SuggestionView{}
	}

	writeJSON(w, http.StatusOK, feed)
}

func (h *SuggestionHandler) Daily(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	tip, err := h.daily.Resolve(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Suggestion", "resolving daily tip")
		return
	}

	engagement, err := h.suggestions.Engagement(r.Context(), tip.Suggestion.ID, user.ID)
	if err != nil {
		writeServiceError(w, r, err, "Suggestion", "loading daily tip engagement")
		return
	}

	writeJSON(w, http.StatusOK, models.DailyTipView{
		SuggestionView: models.NewSuggestionView(tip.Suggestion, engagement),
		Day:            tip.Day.Format(models.DateLayout),
	})
}

// Generate always answers 201; generation failures surface as a fallback tip.
func (h *SuggestionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	generated, err := h.daily.GenerateForUser(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err, "Suggestion", "generating personal suggestion")
		return
	}
	h.writeGenerated(w, r, generated, user.ID)
}

// GenerateFallback answers a generate request that was not allowed to reach
// the AI, with today's fallback tip.
func (h *SuggestionHandler) GenerateFallback(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	generated, err := h.daily.TodayFallback(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "Suggestion", "loading fallback suggestion")
		return
	}
	h.writeGenerated(w, r, generated, user.ID)
}

func (h *SuggestionHandler) writeGenerated(w http.ResponseWriter, r *http.Request, generated *models.GeneratedTip, userID uuid.UUID) {
	engagement, err := h.suggestions.Engagement(r.Context(), generated.Suggestion.ID, userID)
	if err != nil {
		writeServiceError(w, r, err, "Suggestion", "loading generated suggestion engagement")
		return
	}

	writeJSON(w, http.StatusCreated, models.GeneratedTipView{
		SuggestionView: models.NewSuggestionView(generated.Suggestion, engagement),
		IsFallback:     generated.IsFallback,
	})
}

func (h *SuggestionHandler) IngestDaily(w http.ResponseWriter, r *http.Request) {
	var req IngestDailyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.daily.Ingest(r.Context(), req.Text)
	if err != nil {
		writeServiceError(w, r, err, "Suggestion", "ingesting daily tip")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (h *SuggestionHandler) React(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ReactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SuggestionID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid suggestion ID")
		return
	}

	if err := h.suggestions.React(r.Context(), user.ID, req.SuggestionID, models.ReactionKind(req.Reaction)); err != nil {
		writeServiceError(w, r, err, "Suggestion", "reacting to suggestion")
		return
	}

	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func (h *SuggestionHandler) Save(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SaveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SuggestionID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid suggestion ID")
		return
	}

	saved, err := h.suggestions.ToggleSave(r.Context(), user.ID, req.SuggestionID)
	if err != nil {
		writeServiceError(w, r, err, "Suggestion", "toggling save")
		return
	}

	status := "unsaved"
	if saved {
		status = "saved"
	}
	writeJSON(w, http.StatusOK, SaveResponse{Status: status, Saved: saved})
}

func (h *SuggestionHandler) Comment(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req CommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SuggestionID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid suggestion ID")
		return
	}

	comment, err := h.suggestions.AddComment(r.Context(), user.ID, req.SuggestionID, req.Text)
	if err != nil {
		writeServiceError(w, r, err, "Comment", "adding comment")
		return
	}

	writeJSON(w, http.StatusCreated, comment)
}

func (h *SuggestionHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	if GetUserFromContext(r.Context()) == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	id, err := parseSuggestionID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid suggestion ID")
		return
	}

	comments, err := h.suggestions.ListComments(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "Comment", "listing comments")
		return
	}
	if comments == nil {
		comments = []models.SuggestionComment{}
	}

	writeJSON(w, http.StatusOK, comments)
}

func (h *SuggestionHandler) ListSaved(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	saved, err := h.suggestions.ListSaved(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, err, "Suggestion", "listing saved suggestions")
		return
	}
	if saved == nil {
		saved = []models.SuggestionView{}
	}

	writeJSON(w, http.StatusOK, saved)
}

func parseSuggestionID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("suggestion ID must be positive")
	}
	return id, nil
}

// writeServiceError maps service sentinels to status codes. subject names
// the text being validated in 400 messages.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, subject, action string) {
	switch {
	case errors.Is(err, textutil.ErrEmptyText):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s text cannot be empty.", subject))
	case errors.Is(err, textutil.ErrTextTooLong):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s is too long (max %d chars).", subject, textutil.MaxLength))
	case errors.Is(err, textutil.ErrInvalidText):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s text contains invalid characters.", subject))
	case errors.Is(err, services.ErrInvalidReaction):
		writeError(w, http.StatusBadRequest, "Reaction must be 'like' or 'dislike'")
	case errors.Is(err, services.ErrSuggestionNotFound):
		writeError(w, http.StatusNotFound, "Suggestion not found")
	case errors.Is(err, services.ErrNoSuggestionsAvailable):
		writeError(w, http.StatusNotFound, "No suggestions available")
	default:
		logging.FromContext(r.Context()).Error("Suggestion request failed", map[string]interface{}{
			"action": action,
			"error":  err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
