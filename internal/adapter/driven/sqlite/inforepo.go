package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.InfoStore = (*InfoRepo)(nil)

// InfoRepo is the SQLite implementation of the InfoStore port interface.
type InfoRepo struct {
	db *DB
}

// NewInfoRepo creates a new InfoRepo backed by the given DB.
func NewInfoRepo(db *DB) *InfoRepo {
	return &InfoRepo{db: db}
}

// PutInfo replaces the metadata snapshot for info.RepoID.
func (r *InfoRepo) PutInfo(ctx context.Context, info model.RepoInfo) error {
	const query = `
		INSERT INTO repo_info (
			repo_id, display_name, full_name, html_url, description,
			stars, forks, open_issues, default_branch, pushed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo_id) DO UPDATE SET
			display_name = excluded.display_name,
			full_name = excluded.full_name,
			html_url = excluded.html_url,
			description = excluded.description,
			stars = excluded.stars,
			forks = excluded.forks,
			open_issues = excluded.open_issues,
			default_branch = excluded.default_branch,
			pushed_at = excluded.pushed_at,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Writer.ExecContext(ctx, query,
		info.RepoID, info.DisplayName, info.FullName, info.HTMLURL, info.Description,
		info.Stars, info.Forks, info.OpenIssues, info.DefaultBranch,
		formatTime(info.PushedAt), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("put info %s: %w", info.RepoID, err)
	}

	return nil
}

// GetInfo returns the metadata snapshot for repoID, or nil, nil if none.
func (r *InfoRepo) GetInfo(ctx context.Context, repoID string) (*model.RepoInfo, error) {
	const query = `
		SELECT repo_id, display_name, full_name, html_url, description,
		       stars, forks, open_issues, default_branch, pushed_at
		FROM repo_info
		WHERE repo_id = ?
	`

	info, err := scanInfo(r.db.Reader.QueryRowContext(ctx, query, repoID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get info %s: %w", repoID, err)
	}

	return info, nil
}

func scanInfo(s scanner) (*model.RepoInfo, error) {
	var info model.RepoInfo
	var pushedAt string

	err := s.Scan(
		&info.RepoID, &info.DisplayName, &info.FullName, &info.HTMLURL, &info.Description,
		&info.Stars, &info.Forks, &info.OpenIssues, &info.DefaultBranch, &pushedAt,
	)
	if err != nil {
		return nil, err
	}

	info.PushedAt, err = parseTime(pushedAt)
	if err != nil {
		return nil, fmt.Errorf("parse pushed_at: %w", err)
	}

	return &info, nil
}
