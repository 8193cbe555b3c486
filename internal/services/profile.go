package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/mindio/internal/models"
)

type ProfileService struct {
	db DB
}

func NewProfileService(db DB) *ProfileService {
	return &ProfileService{db: db}
}

// GetProfile returns the stored profile with empty columns filled by the
// defaults. A missing row yields the default profile, not an error.
func (s *ProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (models.UserProfile, error) {
	var ageRange, gender, mood, topics, location *string
	err := s.db.QueryRow(ctx,
		`SELECT age_range, gender, mood, support_topics, location
		 FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(&ageRange, &gender, &mood, &topics, &location)
	if errors.Is(err, pgx.ErrNoRows) {
		profile := models.DefaultUserProfile()
		profile.UserID = userID
		return profile, nil
	}
	if err != nil {
		return models.UserProfile{}, fmt.Errorf("getting user profile: %w", err)
	}

	profile := models.UserProfile{
		UserID:        userID,
		AgeRange:      deref(ageRange),
		Gender:        deref(gender),
		Mood:          deref(mood),
		SupportTopics: deref(topics),
		Location:      deref(location),
	}
	return profile.WithDefaults(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
