// Package domain defines the persistence models for recording sessions,
// transcript chunks, summaries, and their derived entities. These types are
// mapped with GORM and form the core data layer of the note-taking backend.
package domain

import (
	"time"
)

// APIToken is a long-lived opaque credential for non-interactive clients
// (e.g., the mobile recorder). Only a one-way digest of the secret is stored;
// the plaintext exists transiently at creation time and is never persisted.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the token owner; indexed for listing.
//   - Name: human-readable label chosen at creation (1–100 chars).
//   - TokenHash: SHA-256 hex digest of the secret; unique.
//   - CreatedAt: creation timestamp.
//   - LastUsedAt: updated best-effort on every successful authentication.
//   - RevokedAt: soft-revocation marker; a token is active iff nil.
type APIToken struct {
	ID         string     `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID     string     `json:"user_id"      gorm:"type:varchar(64);not null;index:idx_user_tokens"`
	Name       string     `json:"name"         gorm:"type:varchar(100);not null"`
	TokenHash  string     `json:"-"            gorm:"type:char(64);not null;uniqueIndex:ux_token_hash"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	RevokedAt  *time.Time `json:"revoked_at"`
}

// TableName returns the database table name for APIToken.
func (APIToken) TableName() string { return "api_tokens" }

// Session represents a recorded conversation or meeting owned by a user. It
// is the container for transcript chunks and the target of summarization.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the session owner; indexed for retrieval.
//   - Title: human-readable title (1–500 chars).
//   - StartTime: when recording started; defaults to "now" at creation.
//   - EndTime: nil while the session is still in progress.
//   - Language: BCP-47 tag used for prompt selection (default "en-US").
//   - CreatedAt/UpdatedAt: timestamps managed by GORM; UpdatedAt moves on
//     every patch and feeds the list ETag validator.
type Session struct {
	ID        string     `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string     `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_sessions"`
	Title     string     `json:"title"      gorm:"type:varchar(500);not null"`
	StartTime time.Time  `json:"start_time" gorm:"not null;index"`
	EndTime   *time.Time `json:"end_time"`
	Language  string     `json:"language"   gorm:"type:varchar(16);not null;default:'en-US'"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// TranscriptChunk is a timestamped slice of transcribed speech within a
// session. The chunk id may be supplied by the client (a "chunkId") so that
// retries are idempotent: the composite primary key (session_id, id) is the
// storage-level guarantee that at most one chunk exists per supplied id
// within its session, no matter how many concurrent inserts race for it.
// Different sessions may reuse the same chunk id.
//
// Start/end times are kept as the client-provided strings; recorder devices
// report positions in their own clock domain and the values are only ever
// echoed back or interpolated into the summarization prompt.
type TranscriptChunk struct {
	SessionID  string    `json:"session_id" gorm:"type:char(36);primaryKey;index:idx_session_chunks,priority:1"`
	ID         string    `json:"id"         gorm:"type:char(36);primaryKey"`
	StartTime  string    `json:"start_time" gorm:"type:varchar(64);not null"`
	EndTime    string    `json:"end_time"   gorm:"type:varchar(64);not null"`
	Text       string    `json:"text"       gorm:"type:text;not null"`
	Confidence *float64  `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at" gorm:"index:idx_session_chunks,priority:2"`

	// Session is the parent recording. Chunks are cascade-deleted if their
	// session is removed.
	Session Session `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for TranscriptChunk.
func (TranscriptChunk) TableName() string { return "transcript_chunks" }

// Summary is the durable record of one summarization run. RawJSON holds the
// full validated model output and is the source of truth; the derived rows
// (ActionItem, AgendaItem, Reminder, ImportantFact) are a normalized
// projection of it for querying and must never diverge in content.
//
// Scope is "session" for per-session summaries or "day" for daily digests.
type Summary struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	SessionID     *string   `json:"session_id"     gorm:"type:char(36);index"`
	UserID        string    `json:"user_id"        gorm:"type:varchar(64);not null;index"`
	Scope         string    `json:"scope"          gorm:"type:varchar(16);not null;default:'session';check:scope IN ('session','day')"`
	StartTime     time.Time `json:"start_time"     gorm:"not null"`
	EndTime       time.Time `json:"end_time"       gorm:"not null"`
	Model         string    `json:"model"          gorm:"type:varchar(128);not null"`
	PromptVersion string    `json:"prompt_version" gorm:"type:varchar(16);not null;default:'v1'"`
	RawJSON       string    `json:"raw_json"       gorm:"type:text;not null"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for Summary.
func (Summary) TableName() string { return "summaries" }

// ActionItem is a task extracted by summarization. Status is the only mutable
// field and is layered on top of the immutable RawJSON snapshot.
type ActionItem struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	SummaryID string    `json:"summary_id" gorm:"type:char(36);not null;index"`
	Task      string    `json:"task"       gorm:"type:text;not null"`
	DueDate   *string   `json:"due_date"   gorm:"type:varchar(64)"`
	Priority  string    `json:"priority"   gorm:"type:varchar(8);not null;default:'med';check:priority IN ('low','med','high')"`
	Status    string    `json:"status"     gorm:"type:varchar(8);not null;default:'open';check:status IN ('open','done')"`
	Context   *string   `json:"context"    gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`

	Summary Summary `json:"-" gorm:"foreignKey:SummaryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ActionItem.
func (ActionItem) TableName() string { return "action_items" }

// AgendaItem is a follow-up meeting suggestion extracted by summarization.
type AgendaItem struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	SummaryID       string    `json:"summary_id"       gorm:"type:char(36);not null;index"`
	Title           string    `json:"title"            gorm:"type:varchar(500);not null"`
	Datetime        *string   `json:"datetime"         gorm:"type:varchar(64)"`
	DurationMinutes *int      `json:"duration_minutes"`
	Notes           *string   `json:"notes"            gorm:"type:text"`
	CreatedAt       time.Time `json:"created_at"`

	Summary Summary `json:"-" gorm:"foreignKey:SummaryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for AgendaItem.
func (AgendaItem) TableName() string { return "agenda_items" }

// Reminder is a time-triggered note extracted by summarization. Like
// ActionItem it carries a mutable status on top of the snapshot.
type Reminder struct {
	ID              string    `json:"id"               gorm:"type:char(36);primaryKey"`
	SummaryID       string    `json:"summary_id"       gorm:"type:char(36);not null;index"`
	Text            string    `json:"text"             gorm:"type:text;not null"`
	TriggerDatetime *string   `json:"trigger_datetime" gorm:"type:varchar(64)"`
	Status          string    `json:"status"           gorm:"type:varchar(8);not null;default:'open';check:status IN ('open','done')"`
	CreatedAt       time.Time `json:"created_at"`

	Summary Summary `json:"-" gorm:"foreignKey:SummaryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Reminder.
func (Reminder) TableName() string { return "reminders" }

// ImportantFact is a key fact, number, or decision worth remembering.
type ImportantFact struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	SummaryID string    `json:"summary_id" gorm:"type:char(36);not null;index"`
	Fact      string    `json:"fact"       gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`

	Summary Summary `json:"-" gorm:"foreignKey:SummaryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ImportantFact.
func (ImportantFact) TableName() string { return "important_facts" }

// IngestEvent is an append-only audit record written as a side effect of
// session creation and chunk ingestion. It is write-only telemetry: nothing
// in this service ever reads it back.
type IngestEvent struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	UserID      string    `json:"user_id"      gorm:"type:varchar(64);not null;index"`
	Type        string    `json:"type"         gorm:"type:varchar(32);not null"`
	PayloadJSON string    `json:"payload_json" gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for IngestEvent.
func (IngestEvent) TableName() string { return "ingest_events" }
