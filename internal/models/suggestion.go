package models

import (
	"time"

	"github.com/google/uuid"
)

type SuggestionSource string

const (
	SourceUser   SuggestionSource = "user"
	SourceAI     SuggestionSource = "ai"
	SourceSystem SuggestionSource = "system"
)

type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

func (r ReactionKind) Valid() bool {
	return r == ReactionLike || r == ReactionDislike
}

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

type Suggestion struct {
	ID         int64            `json:"id"`
	UserID     *uuid.UUID       `json:"user_id"`
	Text       string           `json:"text"`
	IsApproved bool             `json:"is_approved"`
	Source     SuggestionSource `json:"source"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Engagement is the read-time aggregate of reactions and saves for one
// suggestion, as seen by one user.
type Engagement struct {
	Likes    int  `json:"likes"`
	Dislikes int  `json:"dislikes"`
	IsSaved  bool `json:"is_saved"`
}

// SuggestionView is a suggestion decorated with engagement for the caller.
type SuggestionView struct {
	ID        int64            `json:"id"`
	UserID    *uuid.UUID       `json:"user_id"`
	Text      string           `json:"text"`
	Source    SuggestionSource `json:"source"`
	Likes     int              `json:"likes"`
	Dislikes  int              `json:"dislikes"`
	IsSaved   bool             `json:"is_saved"`
	CreatedAt time.Time        `json:"created_at"`
}

func NewSuggestionView(s *Suggestion, e Engagement) SuggestionView {
	return SuggestionView{
		ID:        s.ID,
		UserID:    s.UserID,
		Text:      s.Text,
		Source:    s.Source,
		Likes:     e.Likes,
		Dislikes:  e.Dislikes,
		IsSaved:   e.IsSaved,
		CreatedAt: s.CreatedAt,
	}
}

type SuggestionComment struct {
	ID           int64     `json:"id"`
	SuggestionID int64     `json:"suggestion_id"`
	UserID       uuid.UUID `json:"user_id"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
}

// DailyPath records how the tip of the day was resolved.
type DailyPath string

const (
	DailyPathCached    DailyPath = "cached"
	DailyPathGenerated DailyPath = "generated"
	DailyPathFallback  DailyPath = "fallback"
)

type DailyTip struct {
	Suggestion *Suggestion
	Day        time.Time
	Path       DailyPath
}

// DailyTipView is the response body of the daily endpoint.
type DailyTipView struct {
	SuggestionView
	Day string `json:"day"`
}

type IngestResult struct {
	Status       string `json:"status"`
	Day          string `json:"day"`
	SuggestionID int64  `json:"suggestion_id"`
}

type GeneratedTip struct {
	Suggestion *Suggestion
	IsFallback bool
}

type GeneratedTipView struct {
	SuggestionView
	IsFallback bool `json:"is_fallback"`
}

type EngagementEventType string

const (
	EventSuggestionCreated EngagementEventType = "suggestion_created"
	EventReacted           EngagementEventType = "reacted"
	EventSaved             EngagementEventType = "saved"
	EventUnsaved           EngagementEventType = "unsaved"
	EventCommented         EngagementEventType = "commented"
)

// EngagementEvent is published after an engagement write commits.
type EngagementEvent struct {
	Type         EngagementEventType `json:"type"`
	SuggestionID int64               `json:"suggestion_id"`
	UserID       uuid.UUID           `json:"user_id"`
	Reaction     ReactionKind        `json:"reaction,omitempty"`
	OccurredAt   time.Time           `json:"occurred_at"`
}
