package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/mindio/internal/models"
)

// UserServiceInterface defines the contract for user lookups.
type UserServiceInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// AuthServiceInterface defines the contract for bearer token operations.
type AuthServiceInterface interface {
	IssueToken(userID uuid.UUID) (string, error)
	ValidateToken(ctx context.Context, token string) (*models.User, error)
}

// SuggestionServiceInterface defines the contract for suggestion and engagement operations used by handlers.
type SuggestionServiceInterface interface {
	Create(ctx context.Context, userID uuid.UUID, text string) (*models.Suggestion, error)
	Get(ctx context.Context, id int64, viewerID uuid.UUID) (*models.SuggestionView, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Suggestion, error)
	Feed(ctx context.Context, viewerID uuid.UUID) ([]models.SuggestionView, error)
	ListSaved(ctx context.Context, userID uuid.UUID) ([]models.SuggestionView, error)
	Engagement(ctx context.Context, suggestionID int64, viewerID uuid.UUID) (models.Engagement, error)
	React(ctx context.Context, userID uuid.UUID, suggestionID int64, reaction models.ReactionKind) error
	ToggleSave(ctx context.Context, userID uuid.UUID, suggestionID int64) (bool, error)
	AddComment(ctx context.Context, userID uuid.UUID, suggestionID int64, text string) (*models.SuggestionComment, error)
	ListComments(ctx context.Context, suggestionID int64) ([]models.SuggestionComment, error)
}

// DailyServiceInterface defines the contract for the tip of the day.
type DailyServiceInterface interface {
	Resolve(ctx context.Context) (*models.DailyTip, error)
	Ingest(ctx context.Context, text string) (*models.IngestResult, error)
	GenerateForUser(ctx context.Context, userID uuid.UUID) (*models.GeneratedTip, error)
	TodayFallback(ctx context.Context) (*models.GeneratedTip, error)
}

// ProfileServiceInterface defines the contract for reading user profiles.
type ProfileServiceInterface interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (models.UserProfile, error)
}

var (
	_ UserServiceInterface       = (*UserService)(nil)
	_ AuthServiceInterface       = (*AuthService)(nil)
	_ SuggestionServiceInterface = (*SuggestionService)(nil)
	_ DailyServiceInterface      = (*DailyService)(nil)
	_ ProfileServiceInterface    = (*ProfileService)(nil)
	_ EventPublisher             = (*RedisEventPublisher)(nil)
)
