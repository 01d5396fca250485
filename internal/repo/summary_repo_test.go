package repo

import (
	"context"
	"testing"
	"time"

	"github.com/jdekker/go-notes-backend/internal/domain"
)

func summaryModels() []any {
	return []any{
		&domain.Session{}, &domain.Summary{}, &domain.ActionItem{},
		&domain.AgendaItem{}, &domain.Reminder{}, &domain.ImportantFact{},
	}
}

func TestCreateSummary_FillsDefaults(t *testing.T) {
	db := newRepoDB(t, summaryModels()...)
	ctx := context.Background()

	now := time.Now().UTC()
	sid := "s1"
	seedSession(t, db, sid, "u1", now)

	s, err := CreateSummary(ctx, db, &domain.Summary{
		SessionID: &sid, UserID: "u1", Scope: domain.ScopeSession,
		StartTime: now, EndTime: now,
		Model: "test-model", PromptVersion: domain.PromptVersionV1,
		RawJSON: `{"summaryBullets":[]}`,
	})
	if err != nil {
		t.Fatalf("CreateSummary: %v", err)
	}
	if s.ID == "" || s.CreatedAt.IsZero() {
		t.Fatalf("defaults not filled: %+v", s)
	}

	n, err := CountSummariesBySession(ctx, db, sid)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 summary, got %d (err=%v)", n, err)
	}
}

func TestInsertActionItems_DefaultsAndCount(t *testing.T) {
	db := newRepoDB(t, summaryModels()...)
	ctx := context.Background()

	due := "2026-09-01"
	items := []domain.ActionItemJSON{
		{Task: "send notes", Priority: domain.PriorityHigh, DueDate: &due},
		{Task: "book room"}, // no priority → med
	}
	if err := InsertActionItems(ctx, db, "sum1", items); err != nil {
		t.Fatalf("InsertActionItems: %v", err)
	}

	var rows []domain.ActionItem
	if err := db.Order("task asc").Find(&rows).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.SummaryID != "sum1" || r.Status != domain.StatusOpen {
			t.Fatalf("unexpected row: %+v", r)
		}
	}
	if rows[0].Task != "book room" || rows[0].Priority != domain.PriorityMed {
		t.Fatalf("missing priority should default to med: %+v", rows[0])
	}
	if rows[1].Priority != domain.PriorityHigh || rows[1].DueDate == nil {
		t.Fatalf("explicit fields lost: %+v", rows[1])
	}

	// Empty input is a no-op, not an error.
	if err := InsertActionItems(ctx, db, "sum1", nil); err != nil {
		t.Fatalf("empty insert: %v", err)
	}
}

func TestInsertAgendaItemsRemindersFacts(t *testing.T) {
	db := newRepoDB(t, summaryModels()...)
	ctx := context.Background()

	notes := "planning follow-up"
	dur := 30
	if err := InsertAgendaItems(ctx, db, "sum1", []domain.AgendaItemJSON{
		{Title: "Q3 kickoff", DurationMinutes: &dur, Context: &notes},
	}); err != nil {
		t.Fatalf("InsertAgendaItems: %v", err)
	}
	trigger := "2026-09-01T09:00:00Z"
	if err := InsertReminders(ctx, db, "sum1", []domain.ReminderJSON{
		{Text: "submit expenses", TriggerDatetime: &trigger},
	}); err != nil {
		t.Fatalf("InsertReminders: %v", err)
	}
	if err := InsertImportantFacts(ctx, db, "sum1", []string{"budget is 40k", "deadline moved"}); err != nil {
		t.Fatalf("InsertImportantFacts: %v", err)
	}

	var agenda []domain.AgendaItem
	if err := db.Find(&agenda).Error; err != nil || len(agenda) != 1 {
		t.Fatalf("agenda rows: %+v err=%v", agenda, err)
	}
	if agenda[0].Notes == nil || *agenda[0].Notes != notes {
		t.Fatalf("context should land in notes: %+v", agenda[0])
	}

	var reminders []domain.Reminder
	if err := db.Find(&reminders).Error; err != nil || len(reminders) != 1 {
		t.Fatalf("reminder rows: %+v err=%v", reminders, err)
	}
	if reminders[0].Status != domain.StatusOpen || reminders[0].TriggerDatetime == nil {
		t.Fatalf("unexpected reminder: %+v", reminders[0])
	}

	var facts []domain.ImportantFact
	if err := db.Find(&facts).Error; err != nil || len(facts) != 2 {
		t.Fatalf("fact rows: %+v err=%v", facts, err)
	}
}
