package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommitStatsStore = (*StatsRepo)(nil)

// StatsRepo is the SQLite implementation of the CommitStatsStore port
// interface. Rows are never updated once written.
type StatsRepo struct {
	db *DB
}

// NewStatsRepo creates a new StatsRepo backed by the given DB.
func NewStatsRepo(db *DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// PutCommitStats inserts stats for key unless a row already exists. It
// reports whether a row was inserted.
func (r *StatsRepo) PutCommitStats(ctx context.Context, key model.CommitKey, stats model.CommitStats) (bool, error) {
	const query = `
		INSERT INTO commit_stats (repo_id, sha, additions, deletions, files_changed)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(repo_id, sha) DO NOTHING
	`

	result, err := r.db.Writer.ExecContext(ctx, query,
		key.RepoID, key.SHA, stats.Additions, stats.Deletions, stats.FilesChanged,
	)
	if err != nil {
		return false, fmt.Errorf("put commit stats %s: %w", key, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}

	return rows > 0, nil
}

// GetCommitStats returns the stats for key, or nil, nil if none.
func (r *StatsRepo) GetCommitStats(ctx context.Context, key model.CommitKey) (*model.CommitStats, error) {
	const query = `
		SELECT sha, additions, deletions, files_changed
		FROM commit_stats
		WHERE repo_id = ? AND sha = ?
	`

	var stats model.CommitStats
	err := r.db.Reader.QueryRowContext(ctx, query, key.RepoID, key.SHA).Scan(
		&stats.SHA, &stats.Additions, &stats.Deletions, &stats.FilesChanged,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get commit stats %s: %w", key, err)
	}

	return &stats, nil
}

// HasCommitStats reports whether stats exist for key.
func (r *StatsRepo) HasCommitStats(ctx context.Context, key model.CommitKey) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM commit_stats WHERE repo_id = ? AND sha = ?)`

	var exists int
	if err := r.db.Reader.QueryRowContext(ctx, query, key.RepoID, key.SHA).Scan(&exists); err != nil {
		return false, fmt.Errorf("check commit stats %s: %w", key, err)
	}

	return exists != 0, nil
}
