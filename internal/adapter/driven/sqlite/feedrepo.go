package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.FeedStore = (*FeedRepo)(nil)

// FeedRepo is the SQLite implementation of the FeedStore port interface.
type FeedRepo struct {
	db *DB
}

// NewFeedRepo creates a new FeedRepo backed by the given DB.
func NewFeedRepo(db *DB) *FeedRepo {
	return &FeedRepo{db: db}
}

// ReplaceFeed deletes the current feed and inserts items atomically in a
// transaction, preserving their order.
func (r *FeedRepo) ReplaceFeed(ctx context.Context, items []model.FeedItem) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, `DELETE FROM feed_items`); err != nil {
		return fmt.Errorf("delete feed items: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO feed_items (position, item_json) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare feed insert: %w", err)
	}
	defer stmt.Close()

	for i, item := range items {
		data, err := json.Marshal(toFeedRecord(item))
		if err != nil {
			return fmt.Errorf("marshal feed item %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, i, string(data)); err != nil {
			return fmt.Errorf("insert feed item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// ListFeed returns the stored feed in order. It never returns nil.
func (r *FeedRepo) ListFeed(ctx context.Context) ([]model.FeedItem, error) {
	rows, err := r.db.Reader.QueryContext(ctx, `SELECT item_json FROM feed_items ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}
	defer rows.Close()

	items := []model.FeedItem{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan feed item: %w", err)
		}

		var rec feedRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("unmarshal feed item: %w", err)
		}
		items = append(items, rec.toModel())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed items: %w", err)
	}

	return items, nil
}

// feedRecord is the item_json shape of a model.FeedItem.
type feedRecord struct {
	Type        string        `json:"type"`
	Icon        string        `json:"icon,omitempty"`
	When        time.Time     `json:"when"`
	RepoID      string        `json:"repo_id"`
	DisplayName string        `json:"display_name"`
	Actor       string        `json:"actor,omitempty"`
	Title       string        `json:"title"`
	URL         string        `json:"url,omitempty"`
	Extra       string        `json:"extra,omitempty"`
	SHA         string        `json:"sha,omitempty"`
	Stats       *statsRecord  `json:"stats,omitempty"`
	Review      *reviewRecord `json:"review,omitempty"`
}

type statsRecord struct {
	SHA          string `json:"sha"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	FilesChanged int    `json:"files_changed"`
}

type reviewRecord struct {
	RepoID      string      `json:"repo_id"`
	SHA         string      `json:"sha"`
	Grade       model.Grade `json:"grade"`
	Score       int         `json:"score"`
	Summary     string      `json:"summary"`
	Risks       []string    `json:"risks"`
	Suggestions []string    `json:"suggestions"`
	CreatedAt   time.Time   `json:"created_at"`
	Model       string      `json:"model"`
}

func toFeedRecord(item model.FeedItem) feedRecord {
	rec := feedRecord{
		Type:        item.Type,
		Icon:        item.Icon,
		When:        item.When,
		RepoID:      item.RepoID,
		DisplayName: item.DisplayName,
		Actor:       item.Actor,
		Title:       item.Title,
		URL:         item.URL,
		Extra:       item.Extra,
		SHA:         item.SHA,
	}
	if item.Stats != nil {
		stats := statsRecord(*item.Stats)
		rec.Stats = &stats
	}
	if item.Review != nil {
		review := reviewRecord(*item.Review)
		rec.Review = &review
	}
	return rec
}

func (rec feedRecord) toModel() model.FeedItem {
	item := model.FeedItem{
		Type:        rec.Type,
		Icon:        rec.Icon,
		When:        rec.When,
		RepoID:      rec.RepoID,
		DisplayName: rec.DisplayName,
		Actor:       rec.Actor,
		Title:       rec.Title,
		URL:         rec.URL,
		Extra:       rec.Extra,
		SHA:         rec.SHA,
	}
	if rec.Stats != nil {
		stats := model.CommitStats(*rec.Stats)
		item.Stats = &stats
	}
	if rec.Review != nil {
		review := model.CommitReview(*rec.Review)
		item.Review = &review
	}
	return item
}
