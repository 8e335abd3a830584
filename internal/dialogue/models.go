package dialogue

import "time"

// Phase is the coarse session lifecycle stage.
type Phase string

const (
	PhaseAwaitingGreeting Phase = "awaiting_greeting"
	PhaseCollecting       Phase = "collecting"
	PhaseCompleted        Phase = "completed"
)

// Session tracks one reporter's progress through the field schema.
// Cursor indexes the field currently being solicited; Cursor == schema length
// means every field is answered.
type Session struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID        string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"session_id"`
	UserID           uint64    `gorm:"index;not null" json:"-"`
	Provider         string    `gorm:"type:varchar(32);not null" json:"provider"`
	Model            string    `gorm:"type:varchar(64);not null" json:"model"`
	Phase            string    `gorm:"type:varchar(24);not null" json:"phase"`
	Cursor           int       `gorm:"not null" json:"cursor"`
	ReportDispatched bool      `gorm:"not null;default:false" json:"report_dispatched"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "dialogue_sessions" }

// Turn is one transcript entry. The transcript is append-only.
type Turn struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:varchar(64);not null;index:idx_turn_user_session,priority:2" json:"session_id"`
	UserID    uint64    `gorm:"not null;index:idx_turn_user_session,priority:1" json:"-"`
	Role      string    `gorm:"type:varchar(16);index;not null" json:"role"` // system | user | assistant
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (Turn) TableName() string { return "dialogue_turns" }

// Answer holds one collected field value. (session_id, field_id) is unique;
// re-collection of the same field overwrites the value.
type Answer struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID string    `gorm:"type:varchar(64);not null;index:uniq_answer_field,unique,priority:1" json:"session_id"`
	FieldID   string    `gorm:"type:varchar(64);not null;index:uniq_answer_field,unique,priority:2" json:"field_id"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Answer) TableName() string { return "dialogue_answers" }
