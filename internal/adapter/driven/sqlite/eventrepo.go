package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.EventStore = (*EventRepo)(nil)

// EventRepo is the SQLite implementation of the EventStore port interface.
// Each repository's event stream is stored as one JSON document.
type EventRepo struct {
	db *DB
}

// NewEventRepo creates a new EventRepo backed by the given DB.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

// PutEvents replaces the stored event stream for repoID.
func (r *EventRepo) PutEvents(ctx context.Context, repoID string, events []model.Event) error {
	const query = `
		INSERT INTO repo_events (repo_id, events_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(repo_id) DO UPDATE SET
			events_json = excluded.events_json,
			updated_at = excluded.updated_at
	`

	data, err := json.Marshal(toEventRecords(events))
	if err != nil {
		return fmt.Errorf("marshal events for %s: %w", repoID, err)
	}

	if _, err := r.db.Writer.ExecContext(ctx, query, repoID, string(data), formatTime(time.Now())); err != nil {
		return fmt.Errorf("put events %s: %w", repoID, err)
	}

	return nil
}

// GetEvents returns the stored event stream for repoID. found is false when
// nothing was ever stored.
func (r *EventRepo) GetEvents(ctx context.Context, repoID string) ([]model.Event, bool, error) {
	const query = `SELECT events_json FROM repo_events WHERE repo_id = ?`

	var data string
	err := r.db.Reader.QueryRowContext(ctx, query, repoID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get events %s: %w", repoID, err)
	}

	var records []eventRecord
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return nil, false, fmt.Errorf("unmarshal events for %s: %w", repoID, err)
	}

	return fromEventRecords(records), true, nil
}

// eventRecord is the events_json shape of a model.Event.
type eventRecord struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	Actor     string        `json:"actor,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	Payload   payloadRecord `json:"payload"`
}

type payloadRecord struct {
	Action  string         `json:"action,omitempty"`
	Ref     string         `json:"ref,omitempty"`
	RefType string         `json:"ref_type,omitempty"`
	Number  int            `json:"number,omitempty"`
	Title   string         `json:"title,omitempty"`
	URL     string         `json:"url,omitempty"`
	Commits []commitRecord `json:"commits,omitempty"`
}

type commitRecord struct {
	SHA     string `json:"sha"`
	Message string `json:"message,omitempty"`
	Author  string `json:"author,omitempty"`
}

func toEventRecords(events []model.Event) []eventRecord {
	out := make([]eventRecord, 0, len(events))
	for _, ev := range events {
		p := ev.Payload
		rec := eventRecord{
			ID:        ev.ID,
			Type:      ev.Type,
			Actor:     ev.Actor,
			CreatedAt: ev.CreatedAt.UTC(),
			Payload: payloadRecord{
				Action:  p.Action,
				Ref:     p.Ref,
				RefType: p.RefType,
				Number:  p.Number,
				Title:   p.Title,
				URL:     p.URL,
			},
		}
		for _, c := range p.Commits {
			rec.Payload.Commits = append(rec.Payload.Commits, commitRecord(c))
		}
		out = append(out, rec)
	}
	return out
}

func fromEventRecords(records []eventRecord) []model.Event {
	out := make([]model.Event, 0, len(records))
	for _, rec := range records {
		p := rec.Payload
		ev := model.Event{
			ID:        rec.ID,
			Type:      rec.Type,
			Actor:     rec.Actor,
			CreatedAt: rec.CreatedAt,
			Payload: model.EventPayload{
				Action:  p.Action,
				Ref:     p.Ref,
				RefType: p.RefType,
				Number:  p.Number,
				Title:   p.Title,
				URL:     p.URL,
			},
		}
		for _, c := range p.Commits {
			ev.Payload.Commits = append(ev.Payload.Commits, model.CommitStub(c))
		}
		out = append(out, ev)
	}
	return out
}
