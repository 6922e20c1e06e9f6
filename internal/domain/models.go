// Package domain defines the persistence models for users, habits, daily
// check-ins, the inbound mail queue, pending suggestions, and the email audit
// log. These types are mapped with GORM and form the core data layer of the
// habit mail service.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Inbound email queue states.
const (
	EmailStatusNew        = "new"
	EmailStatusProcessing = "processing"
	EmailStatusReplied    = "replied"
	EmailStatusFailed     = "failed"
)

// Email log directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Pending action resolutions.
const (
	ResolvedAffirmed = "affirmed"
	ResolvedDeclined = "declined"
	ResolvedExpired  = "expired"
)

// User is a person who tracks habits by email. Users are created on their
// first inbound message.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Email: sender address, lowercased; unique.
//   - Name: optional display name taken from the From header.
//   - Timezone: IANA zone used to compute the check-in date.
//   - Preferences: free-form JSON settings.
//   - LastCheckinAt: date of the most recent check-in (YYYY-MM-DD).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type User struct {
	ID            string         `json:"id"              gorm:"type:char(36);primaryKey"`
	Email         string         `json:"email"           gorm:"type:varchar(320);not null;uniqueIndex"`
	Name          *string        `json:"name,omitempty"  gorm:"type:varchar(255)"`
	Timezone      string         `json:"timezone"        gorm:"type:varchar(64);not null;default:'America/Chicago'"`
	Preferences   datatypes.JSON `json:"preferences"     gorm:"type:text"`
	LastCheckinAt *string        `json:"last_checkin_at" gorm:"type:char(10)"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Habit is something a user tracks. Identity is (user_id, name) where name is
// the normalized (lowercased, trimmed) habit name. Habits are never
// hard-deleted: removal sets Active=false and RemovedAt, and a later add or
// check-in reactivates the same row.
type Habit struct {
	ID          string     `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID      string     `json:"user_id"      gorm:"type:char(36);not null;uniqueIndex:ux_habits_user_name,priority:1"`
	Name        string     `json:"name"         gorm:"type:varchar(64);not null;uniqueIndex:ux_habits_user_name,priority:2"`
	DisplayName string     `json:"display_name" gorm:"type:varchar(64);not null"`
	Unit        *string    `json:"unit,omitempty" gorm:"type:varchar(64)"`
	Goal        *float64   `json:"goal,omitempty"`
	Active      bool       `json:"active"       gorm:"not null;default:true"`
	SortOrder   int        `json:"sort_order"   gorm:"not null;default:0"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	RemovedAt   *time.Time `json:"removed_at,omitempty"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Habit.
func (Habit) TableName() string { return "habits" }

// Checkin is the progress on one habit for one day. There is at most one row
// per (user_id, habit_id, date); repeated check-ins on the same day are merged
// by the executor's upsert. Value is nil only for pure status check-ins.
//
// Fields:
//   - Date: calendar day in the user's zone (YYYY-MM-DD).
//   - Status: full|partial|skip.
//   - Done: derived, true unless Status is skip.
//   - Note: optional free-form context from the email.
type Checkin struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"   gorm:"type:char(36);not null;uniqueIndex:ux_checkins_user_habit_date,priority:1"`
	HabitID   string    `json:"habit_id"  gorm:"type:char(36);not null;uniqueIndex:ux_checkins_user_habit_date,priority:2"`
	Date      string    `json:"date"      gorm:"type:char(10);not null;uniqueIndex:ux_checkins_user_habit_date,priority:3"`
	Value     *float64  `json:"value"`
	Status    string    `json:"status"    gorm:"type:varchar(16);not null;check:status IN ('full','partial','skip')"`
	Done      bool      `json:"done"      gorm:"not null"`
	Note      *string   `json:"note,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`

	Habit Habit `json:"-" gorm:"foreignKey:HabitID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Checkin.
func (Checkin) TableName() string { return "checkins" }

// InboundEmail is a received message and its position in the processing
// queue. The row doubles as the dedup ledger for MessageID and is never
// deleted.
//
// State machine: new -> processing -> replied | failed; failed -> processing
// while RetryCount is below the ceiling. ProcessedAt is stamped on every
// terminal transition and anchors the retry backoff.
type InboundEmail struct {
	ID          string     `json:"id"          gorm:"type:char(36);primaryKey"`
	MessageID   string     `json:"message_id"  gorm:"type:varchar(998);not null;uniqueIndex"`
	FromEmail   string     `json:"from_email"  gorm:"type:varchar(320);not null"`
	FromName    *string    `json:"from_name,omitempty" gorm:"type:varchar(255)"`
	Subject     string     `json:"subject"     gorm:"type:text;not null"`
	Body        string     `json:"body"        gorm:"type:text;not null"`
	Status      string     `json:"status"      gorm:"type:varchar(16);not null;default:'new';index:idx_inbound_status_received,priority:1"`
	Error       *string    `json:"error,omitempty" gorm:"type:text"`
	RetryCount  int        `json:"retry_count" gorm:"not null;default:0"`
	ReceivedAt  time.Time  `json:"received_at" gorm:"not null;index:idx_inbound_status_received,priority:2"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// TableName returns the database table name for InboundEmail.
func (InboundEmail) TableName() string { return "inbound_emails" }

// PendingAction is a suggestion surfaced to a user that waits for a yes/no
// reply. It is single-use: resolving it stamps ResolvedAt and ResolvedAction.
type PendingAction struct {
	ID                 string         `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID             string         `json:"user_id"     gorm:"type:char(36);not null;index:idx_pending_user_open,priority:1"`
	ActionType         string         `json:"action_type" gorm:"type:varchar(32);not null"`
	ActionData         datatypes.JSON `json:"action_data" gorm:"type:text;not null"`
	SuggestedInEmailID *string        `json:"suggested_in_email_id,omitempty" gorm:"type:char(36)"`
	CreatedAt          time.Time      `json:"created_at"  gorm:"index:idx_pending_user_open,priority:2"`
	ResolvedAt         *time.Time     `json:"resolved_at,omitempty"`
	ResolvedAction     *string        `json:"resolved_action,omitempty" gorm:"type:varchar(16)"`
}

// TableName returns the database table name for PendingAction.
func (PendingAction) TableName() string { return "pending_actions" }

// EmailLog is the audit trail of messages in both directions. Inbound rows
// carry the parsed intents as JSON.
type EmailLog struct {
	ID            string         `json:"id"        gorm:"type:char(36);primaryKey"`
	UserID        *string        `json:"user_id,omitempty" gorm:"type:char(36);index"`
	Direction     string         `json:"direction" gorm:"type:varchar(8);not null;check:direction IN ('inbound','outbound')"`
	Subject       string         `json:"subject"   gorm:"type:text"`
	Body          string         `json:"body"      gorm:"type:text"`
	ParsedIntents datatypes.JSON `json:"parsed_intents,omitempty" gorm:"type:text"`
	CreatedAt     time.Time      `json:"created_at"`
}

// TableName returns the database table name for EmailLog.
func (EmailLog) TableName() string { return "emails" }

// All lists every model for migrations.
func All() []any {
	return []any{
		&User{},
		&Habit{},
		&Checkin{},
		&InboundEmail{},
		&PendingAction{},
		&EmailLog{},
	}
}
