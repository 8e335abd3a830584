package dialogue

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *Repo) GetSessionBySessionID(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSessionState persists phase/cursor/dispatched in one write.
func (r *Repo) UpdateSessionState(ctx context.Context, sessionID string, phase Phase, cursor int, dispatched bool) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]any{
			"phase":             string(phase),
			"cursor":            cursor,
			"report_dispatched": dispatched,
		}).Error
}

func (r *Repo) InsertTurn(ctx context.Context, t *Turn) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// ListTurns returns turns in DESC id order (newest -> oldest).
func (r *Repo) ListTurns(ctx context.Context, userID uint64, sessionID string, limit int, beforeID uint64) ([]Turn, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("id DESC").
		Limit(limit)

	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var turns []Turn
	if err := q.Find(&turns).Error; err != nil {
		return nil, err
	}
	return turns, nil
}

// ListRecentTurnsDesc returns the most recent turns in DESC id order.
func (r *Repo) ListRecentTurnsDesc(ctx context.Context, userID uint64, sessionID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 20
	}
	var turns []Turn
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&turns).Error; err != nil {
		return nil, err
	}
	return turns, nil
}

// UpsertAnswer stores a field value, overwriting a prior value for the same
// (session, field) pair.
func (r *Repo) UpsertAnswer(ctx context.Context, sessionID, fieldID, value string) error {
	res := r.db.WithContext(ctx).Model(&Answer{}).
		Where("session_id = ? AND field_id = ?", sessionID, fieldID).
		Update("value", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&Answer{
		SessionID: sessionID,
		FieldID:   fieldID,
		Value:     value,
	}).Error
}

// ListAnswers returns the collected field map for a session.
func (r *Repo) ListAnswers(ctx context.Context, sessionID string) (map[string]string, error) {
	var rows []Answer
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, a := range rows {
		out[a.FieldID] = a.Value
	}
	return out, nil
}
