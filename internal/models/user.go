package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type UserProfile struct {
	UserID        uuid.UUID `json:"user_id"`
	AgeRange      string    `json:"age_range"`
	Gender        string    `json:"gender"`
	Mood          string    `json:"mood"`
	SupportTopics string    `json:"support_topics"`
	Location      string    `json:"location"`
}

const (
	DefaultAgeRange      = "Unknown"
	DefaultGender        = "Unknown"
	DefaultMood          = "Neutral"
	DefaultSupportTopics = "General wellbeing"
)

// DefaultUserProfile is used when a user has no profile row or is unknown.
func DefaultUserProfile() UserProfile {
	return UserProfile{
		AgeRange:      DefaultAgeRange,
		Gender:        DefaultGender,
		Mood:          DefaultMood,
		SupportTopics: DefaultSupportTopics,
	}
}

// WithDefaults fills empty fields from DefaultUserProfile.
func (p UserProfile) WithDefaults() UserProfile {
	d := DefaultUserProfile()
	if p.AgeRange == "" {
		p.AgeRange = d.AgeRange
	}
	if p.Gender == "" {
		p.Gender = d.Gender
	}
	if p.Mood == "" {
		p.Mood = d.Mood
	}
	if p.SupportTopics == "" {
		p.SupportTopics = d.SupportTopics
	}
	return p
}
