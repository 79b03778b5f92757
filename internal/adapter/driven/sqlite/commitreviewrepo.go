package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ReviewStore = (*CommitReviewRepo)(nil)

// CommitReviewRepo is the SQLite implementation of the ReviewStore port
// interface. Rows are never updated once written.
type CommitReviewRepo struct {
	db *DB
}

// NewCommitReviewRepo creates a new CommitReviewRepo backed by the given DB.
func NewCommitReviewRepo(db *DB) *CommitReviewRepo {
	return &CommitReviewRepo{db: db}
}

// PutReview inserts review for key unless a row already exists. It reports
// whether a row was inserted.
func (r *CommitReviewRepo) PutReview(ctx context.Context, key model.CommitKey, review model.CommitReview) (bool, error) {
	const query = `
		INSERT INTO commit_reviews (
			repo_id, sha, grade, score, summary, risks_json, suggestions_json, model, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, sha) DO NOTHING
	`

	risksJSON, err := marshalStrings(review.Risks)
	if err != nil {
		return false, fmt.Errorf("marshal risks: %w", err)
	}

	suggestionsJSON, err := marshalStrings(review.Suggestions)
	if err != nil {
		return false, fmt.Errorf("marshal suggestions: %w", err)
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		key.RepoID, key.SHA, string(review.Grade), review.Score, review.Summary,
		risksJSON, suggestionsJSON, review.Model, formatTime(review.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("put review %s: %w", key, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}

	return rows > 0, nil
}

// GetReview returns the review for key, or nil, nil if none.
func (r *CommitReviewRepo) GetReview(ctx context.Context, key model.CommitKey) (*model.CommitReview, error) {
	const query = `
		SELECT repo_id, sha, grade, score, summary, risks_json, suggestions_json, model, created_at
		FROM commit_reviews
		WHERE repo_id = ? AND sha = ?
	`

	review, err := scanReview(r.db.Reader.QueryRowContext(ctx, query, key.RepoID, key.SHA))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review %s: %w", key, err)
	}

	return review, nil
}

func scanReview(s scanner) (*model.CommitReview, error) {
	var review model.CommitReview
	var grade, risksJSON, suggestionsJSON, createdAt string

	err := s.Scan(
		&review.RepoID, &review.SHA, &grade, &review.Score, &review.Summary,
		&risksJSON, &suggestionsJSON, &review.Model, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	review.Grade = model.Grade(grade)

	if err := json.Unmarshal([]byte(risksJSON), &review.Risks); err != nil {
		return nil, fmt.Errorf("unmarshal risks: %w", err)
	}

	if err := json.Unmarshal([]byte(suggestionsJSON), &review.Suggestions); err != nil {
		return nil, fmt.Errorf("unmarshal suggestions: %w", err)
	}

	review.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &review, nil
}

func marshalStrings(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
