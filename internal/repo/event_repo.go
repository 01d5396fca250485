// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the append-only IngestEvent writer.
package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdekker/go-notes-backend/internal/domain"
)

// Ingest event types recorded by this service.
const (
	EventSessionCreated = "session_created"
	EventChunkIngested  = "chunk_ingested"
)

// CreateIngestEvent appends one audit record. The payload is marshaled to
// JSON text; a marshal failure is returned so the caller can log it, but
// callers never surface this error to clients.
func CreateIngestEvent(ctx context.Context, db *gorm.DB, userID, eventType string, payload map[string]any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ev := &domain.IngestEvent{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        eventType,
		PayloadJSON: string(b),
		CreatedAt:   time.Now().UTC(),
	}
	return db.WithContext(ctx).Create(ev).Error
}
