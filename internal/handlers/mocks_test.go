package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/mindio/internal/models"
	"github.com/HammerMeetNail/mindio/internal/services"
)

type mockSuggestionService struct {
	CreateFunc       func(ctx context.Context, userID uuid.UUID, text string) (*models.Suggestion, error)
	GetFunc          func(ctx context.Context, id int64, viewerID uuid.UUID) (*models.SuggestionView, error)
	ListByAuthorFunc func(ctx context.Context, authorID uuid.UUID) ([]*models.Suggestion, error)
	FeedFunc         func(ctx context.Context, viewerID uuid.UUID) ([]models.SuggestionView, error)
	ListSavedFunc    func(ctx context.Context, userID uuid.UUID) ([]models.SuggestionView, error)
	EngagementFunc   func(ctx context.Context, suggestionID int64, viewerID uuid.UUID) (models.Engagement, error)
	ReactFunc        func(ctx context.Context, userID uuid.UUID, suggestionID int64, reaction models.ReactionKind) error
	ToggleSaveFunc   func(ctx context.Context, userID uuid.UUID, suggestionID int64) (bool, error)
	AddCommentFunc   func(ctx context.Context, userID uuid.UUID, suggestionID int64, text string) (*models.SuggestionComment, error)
	ListCommentsFunc func(ctx context.Context, suggestionID int64) ([]models.SuggestionComment, error)
}

func (m *mockSuggestionService) Create(ctx context.Context, userID uuid.UUID, text string) (*models.Suggestion, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, userID, text)
	}
	return nil, nil
}

func (m *mockSuggestionService) Get(ctx context.Context, id int64, viewerID uuid.UUID) (*models.SuggestionView, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id, viewerID)
	}
	return nil, services.ErrSuggestionNotFound
}

func (m *mockSuggestionService) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Suggestion, error) {
	if m.ListByAuthorFunc != nil {
		return m.ListByAuthorFunc(ctx, authorID)
	}
	return nil, nil
}

func (m *mockSuggestionService) Feed(ctx context.Context, viewerID uuid.UUID) ([]models.SuggestionView, error) {
	if m.FeedFunc != nil {
		return m.FeedFunc(ctx, viewerID)
	}
	return nil, nil
}

func (m *mockSuggestionService) ListSaved(ctx context.Context, userID uuid.UUID) ([]models.SuggestionView, error) {
	if m.ListSavedFunc != nil {
		return m.ListSavedFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockSuggestionService) Engagement(ctx context.Context, suggestionID int64, viewerID uuid.UUID) (models.Engagement, error) {
	if m.EngagementFunc != nil {
		return m.EngagementFunc(ctx, suggestionID, viewerID)
	}
	return models.Engagement{}, nil
}

func (m *mockSuggestionService) React(ctx context.Context, userID uuid.UUID, suggestionID int64, reaction models.ReactionKind) error {
	if m.ReactFunc != nil {
		return m.ReactFunc(ctx, userID, suggestionID, reaction)
	}
	return nil
}

func (m *mockSuggestionService) ToggleSave(ctx context.Context, userID uuid.UUID, suggestionID int64) (bool, error) {
	if m.ToggleSaveFunc != nil {
		return m.ToggleSaveFunc(ctx, userID, suggestionID)
	}
	return false, nil
}

func (m *mockSuggestionService) AddComment(ctx context.Context, userID uuid.UUID, suggestionID int64, text string) (*models.SuggestionComment, error) {
	if m.AddCommentFunc != nil {
		return m.AddCommentFunc(ctx, userID, suggestionID, text)
	}
	return nil, nil
}

func (m *mockSuggestionService) ListComments(ctx context.Context, suggestionID int64) ([]models.SuggestionComment, error) {
	if m.ListCommentsFunc != nil {
		return m.ListCommentsFunc(ctx, suggestionID)
	}
	return nil, nil
}

type mockDailyService struct {
	ResolveFunc         func(ctx context.Context) (*models.DailyTip, error)
	IngestFunc          func(ctx context.Context, text string) (*models.IngestResult, error)
	GenerateForUserFunc func(ctx context.Context, userID uuid.UUID) (*models.GeneratedTip, error)
	TodayFallbackFunc   func(ctx context.Context) (*models.GeneratedTip, error)
}

func (m *mockDailyService) Resolve(ctx context.Context) (*models.DailyTip, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx)
	}
	return nil, services.ErrNoSuggestionsAvailable
}

func (m *mockDailyService) Ingest(ctx context.Context, text string) (*models.IngestResult, error) {
	if m.IngestFunc != nil {
		return m.IngestFunc(ctx, text)
	}
	return nil, nil
}

func (m *mockDailyService) GenerateForUser(ctx context.Context, userID uuid.UUID) (*models.GeneratedTip, error) {
	if m.GenerateForUserFunc != nil {
		return m.GenerateForUserFunc(ctx, userID)
	}
	return nil, services.ErrNoSuggestionsAvailable
}

func (m *mockDailyService) TodayFallback(ctx context.Context) (*models.GeneratedTip, error) {
	if m.TodayFallbackFunc != nil {
		return m.TodayFallbackFunc(ctx)
	}
	return nil, services.ErrNoSuggestionsAvailable
}

var (
	_ services.SuggestionServiceInterface = (*mockSuggestionService)(nil)
	_ services.DailyServiceInterface      = (*mockDailyService)(nil)
)

func assertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected status %d, got %d (%s)", status, rr.Code, rr.Body.String())
	}
	if ct := rr.Result().Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected content type application/json, got %q", ct)
	}

	var response ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Error != message {
		t.Fatalf("expected error %q, got %q", message, response.Error)
	}
}
