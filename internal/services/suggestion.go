package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/mindio/internal/models"
	"github.com/HammerMeetNail/mindio/internal/textutil"
)

const (
	authorListLimit  = 50
	feedLimit        = 200
	commentListLimit = 200
	savedListLimit   = 200
)

var (
	ErrSuggestionNotFound = errors.New("suggestion not found")
	ErrInvalidReaction    = errors.New("reaction must be 'like' or 'dislike'")
)

const suggestionColumns = `id, user_id, text, is_approved, source, created_at`

// joinedSuggestionColumns is suggestionColumns qualified for queries aliasing suggestions as s.
const joinedSuggestionColumns = `s.id, s.user_id, s.text, s.is_approved, s.source, s.created_at`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

type SuggestionService struct {
	db          DB
	events      EventPublisher
	autoApprove bool
	now         func() time.Time
}

func NewSuggestionService(db DB, events EventPublisher, autoApprove bool) *SuggestionService {
	if events == nil {
		events = nopPublisher{}
	}
	return &SuggestionService{
		db:          db,
		events:      events,
		autoApprove: autoApprove,
		now:         time.Now,
	}
}

func scanSuggestion(row interface{ Scan(dest ...any) error }) (*models.Suggestion, error) {
	s := &models.Suggestion{}
	if err := row.Scan(&s.ID, &s.UserID, &s.Text, &s.IsApproved, &s.Source, &s.CreatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

func insertSuggestion(ctx context.Context, q rowQuerier, userID *uuid.UUID, text string, approved bool, source models.SuggestionSource) (*models.Suggestion, error) {
	s, err := scanSuggestion(q.QueryRow(ctx,
		`INSERT INTO suggestions (user_id, text, is_approved, source)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+suggestionColumns,
		userID, text, approved, string(source),
	))
	if err != nil {
		return nil, fmt.Errorf("inserting suggestion: %w", err)
	}
	return s, nil
}

// Create stores a user-authored suggestion.
func (s *SuggestionService) Create(ctx context.Context, userID uuid.UUID, text string) (*models.Suggestion, error) {
	text, err := textutil.Clean(text)
	if err != nil {
		return nil, err
	}

	suggestion, err := insertSuggestion(ctx, s.db, &userID, text, s.autoApprove, models.SourceUser)
	if err != nil {
		return nil, err
	}

	publishBestEffort(ctx, s.events, models.EngagementEvent{
		Type:         models.EventSuggestionCreated,
		SuggestionID: suggestion.ID,
		UserID:       userID,
		OccurredAt:   s.now().UTC(),
	})
	return suggestion, nil
}

func (s *SuggestionService) GetByID(ctx context.Context, id int64) (*models.Suggestion, error) {
	suggestion, err := scanSuggestion(s.db.QueryRow(ctx,
		`SELECT `+suggestionColumns+` FROM suggestions WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSuggestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting suggestion: %w", err)
	}
	return suggestion, nil
}

// Get returns one suggestion with the viewer's engagement. Unapproved
// suggestions are only visible to their author.
func (s *SuggestionService) Get(ctx context.Context, id int64, viewerID uuid.UUID) (*models.SuggestionView, error) {
	suggestion, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !suggestion.IsApproved && (suggestion.UserID == nil || *suggestion.UserID != viewerID) {
		return nil, ErrSuggestionNotFound
	}

	engagement, err := s.Engagement(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	view := models.NewSuggestionView(suggestion, engagement)
	return &view, nil
}

func (s *SuggestionService) ListByAuthor(ctx context.Context, authorID uuid.UUID) ([]*models.Suggestion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+suggestionColumns+`
		 FROM suggestions
		 WHERE user_id = $1 AND is_approved = true
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		authorID, authorListLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing suggestions by author: %w", err)
	}
	defer rows.Close()

	suggestions := []*models.Suggestion{}
	for rows.Next() {
		suggestion, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning suggestion: %w", err)
		}
		suggestions = append(suggestions, suggestion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating suggestions: %w", err)
	}
	return suggestions, nil
}

// Feed lists approved user suggestions, newest first, with engagement.
// AI and system suggestions never appear here.
func (s *SuggestionService) Feed(ctx context.Context, viewerID uuid.UUID) ([]models.SuggestionView, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+suggestionColumns+`
		 FROM suggestions
		 WHERE is_approved = true AND source = 'user'
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`,
		feedLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing feed: %w", err)
	}
	suggestions, err := collectSuggestions(rows)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, suggestions, viewerID)
}

// ListSaved lists the suggestions the user saved, most recently saved first.
func (s *SuggestionService) ListSaved(ctx context.Context, userID uuid.UUID) ([]models.SuggestionView, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+joinedSuggestionColumns+`
		 FROM suggestion_saves ss
		 JOIN suggestions s ON s.id = ss.suggestion_id
		 WHERE ss.user_id = $1
		 ORDER BY ss.created_at DESC, s.id DESC
		 LIMIT $2`,
		userID, savedListLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing saved suggestions: %w", err)
	}
	suggestions, err := collectSuggestions(rows)
	if err != nil {
		return nil, err
	}
	return s.decorate(ctx, suggestions, userID)
}

func collectSuggestions(rows Rows) ([]*models.Suggestion, error) {
	defer rows.Close()

	var suggestions []*models.Suggestion
	for rows.Next() {
		suggestion, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning suggestion: %w", err)
		}
		suggestions = append(suggestions, suggestion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating suggestions: %w", err)
	}
	return suggestions, nil
}

func (s *SuggestionService) decorate(ctx context.Context, suggestions []*models.Suggestion, viewerID uuid.UUID) ([]models.SuggestionView, error) {
	ids := make([]int64, len(suggestions))
	for i, suggestion := range suggestions {
		ids[i] = suggestion.ID
	}

	engagement, err := s.EngagementForMany(ctx, ids, viewerID)
	if err != nil {
		return nil, err
	}

	views := make([]models.SuggestionView, 0, len(suggestions))
	for _, suggestion := range suggestions {
		views = append(views, models.NewSuggestionView(suggestion, engagement[suggestion.ID]))
	}
	return views, nil
}

// Engagement aggregates reactions and the viewer's save state in one query.
func (s *SuggestionService) Engagement(ctx context.Context, suggestionID int64, viewerID uuid.UUID) (models.Engagement, error) {
	var e models.Engagement
	err := s.db.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE r.reaction = 'like'),
		   COUNT(*) FILTER (WHERE r.reaction = 'dislike'),
		   EXISTS (SELECT 1 FROM suggestion_saves WHERE suggestion_id = $1 AND user_id = $2)
		 FROM suggestion_reactions r
		 WHERE r.suggestion_id = $1`,
		suggestionID, viewerID,
	).Scan(&e.Likes, &e.Dislikes, &e.IsSaved)
	if err != nil {
		return models.Engagement{}, fmt.Errorf("aggregating engagement: %w", err)
	}
	return e, nil
}

// EngagementForMany aggregates engagement for a page of suggestions using two
// queries regardless of the page size. Every requested id is present in the
// result, with zero counts when nothing was recorded.
func (s *SuggestionService) EngagementForMany(ctx context.Context, ids []int64, viewerID uuid.UUID) (map[int64]models.Engagement, error) {
	result := make(map[int64]models.Engagement, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	for _, id := range ids {
		result[id] = models.Engagement{}
	}

	rows, err := s.db.Query(ctx,
		`SELECT suggestion_id,
		   COUNT(*) FILTER (WHERE reaction = 'like'),
		   COUNT(*) FILTER (WHERE reaction = 'dislike')
		 FROM suggestion_reactions
		 WHERE suggestion_id = ANY($1)
		 GROUP BY suggestion_id`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregating reactions: %w", err)
	}
	for rows.Next() {
		var id int64
		var likes, dislikes int
		if err := rows.Scan(&id, &likes, &dislikes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning reaction counts: %w", err)
		}
		e := result[id]
		e.Likes = likes
		e.Dislikes = dislikes
		result[id] = e
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reaction counts: %w", err)
	}

	saved, err := s.db.Query(ctx,
		`SELECT suggestion_id FROM suggestion_saves
		 WHERE user_id = $1 AND suggestion_id = ANY($2)`,
		viewerID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("loading saved suggestions: %w", err)
	}
	defer saved.Close()
	for saved.Next() {
		var id int64
		if err := saved.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning saved suggestion: %w", err)
		}
		e := result[id]
		e.IsSaved = true
		result[id] = e
	}
	if err := saved.Err(); err != nil {
		return nil, fmt.Errorf("iterating saved suggestions: %w", err)
	}

	return result, nil
}

// React records the user's reaction, replacing any earlier one.
func (s *SuggestionService) React(ctx context.Context, userID uuid.UUID, suggestionID int64, reaction models.ReactionKind) error {
	if !reaction.Valid() {
		return ErrInvalidReaction
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO suggestion_reactions (suggestion_id, user_id, reaction)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (suggestion_id, user_id)
		 DO UPDATE SET reaction = EXCLUDED.reaction, created_at = NOW()`,
		suggestionID, userID, string(reaction),
	)
	if isForeignKeyViolation(err) {
		return ErrSuggestionNotFound
	}
	if err != nil {
		return fmt.Errorf("upserting reaction: %w", err)
	}

	publishBestEffort(ctx, s.events, models.EngagementEvent{
		Type:         models.EventReacted,
		SuggestionID: suggestionID,
		UserID:       userID,
		Reaction:     reaction,
		OccurredAt:   s.now().UTC(),
	})
	return nil
}

// ToggleSave flips the user's save of a suggestion and returns the new state.
// The suggestion row is locked so concurrent toggles by the same user serialize.
func (s *SuggestionService) ToggleSave(ctx context.Context, userID uuid.UUID, suggestionID int64) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin save transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	var lockedID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM suggestions WHERE id = $1 FOR NO KEY UPDATE`,
		suggestionID,
	).Scan(&lockedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrSuggestionNotFound
	}
	if err != nil {
		return false, fmt.Errorf("locking suggestion: %w", err)
	}

	result, err := tx.Exec(ctx,
		`DELETE FROM suggestion_saves WHERE suggestion_id = $1 AND user_id = $2`,
		suggestionID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("deleting save: %w", err)
	}

	saved := false
	if result.RowsAffected() == 0 {
		_, err = tx.Exec(ctx,
			`INSERT INTO suggestion_saves (suggestion_id, user_id)
			 VALUES ($1, $2)
			 ON CONFLICT (suggestion_id, user_id) DO NOTHING`,
			suggestionID, userID,
		)
		if err != nil {
			return false, fmt.Errorf("inserting save: %w", err)
		}
		saved = true
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit save transaction: %w", err)
	}
	committed = true

	eventType := models.EventUnsaved
	if saved {
		eventType = models.EventSaved
	}
	publishBestEffort(ctx, s.events, models.EngagementEvent{
		Type:         eventType,
		SuggestionID: suggestionID,
		UserID:       userID,
		OccurredAt:   s.now().UTC(),
	})
	return saved, nil
}

// AddComment appends a comment. Comment text is stored as typed, only trimmed.
func (s *SuggestionService) AddComment(ctx context.Context, userID uuid.UUID, suggestionID int64, text string) (*models.SuggestionComment, error) {
	text, err := textutil.CleanPlain(text)
	if err != nil {
		return nil, err
	}

	comment := &models.SuggestionComment{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO suggestion_comments (suggestion_id, user_id, text)
		 VALUES ($1, $2, $3)
		 RETURNING id, suggestion_id, user_id, text, created_at`,
		suggestionID, userID, text,
	).Scan(&comment.ID, &comment.SuggestionID, &comment.UserID, &comment.Text, &comment.CreatedAt)
	if isForeignKeyViolation(err) {
		return nil, ErrSuggestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("inserting comment: %w", err)
	}

	publishBestEffort(ctx, s.events, models.EngagementEvent{
		Type:         models.EventCommented,
		SuggestionID: suggestionID,
		UserID:       userID,
		OccurredAt:   s.now().UTC(),
	})
	return comment, nil
}

// ListComments returns comments newest first.
func (s *SuggestionService) ListComments(ctx context.Context, suggestionID int64) ([]models.SuggestionComment, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM suggestions WHERE id = $1)`,
		suggestionID,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking suggestion: %w", err)
	}
	if !exists {
		return nil, ErrSuggestionNotFound
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, suggestion_id, user_id, text, created_at
		 FROM suggestion_comments
		 WHERE suggestion_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		suggestionID, commentListLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	comments := []models.SuggestionComment{}
	for rows.Next() {
		var c models.SuggestionComment
		if err := rows.Scan(&c.ID, &c.SuggestionID, &c.UserID, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating comments: %w", err)
	}
	return comments, nil
}
