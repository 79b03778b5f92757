package application

import (
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// ActivityTier classifies a repository by how recently it was pushed to.
type ActivityTier int

const (
	// TierHot indicates a push within the last hour.
	TierHot ActivityTier = iota
	// TierActive indicates a push within the last day.
	TierActive
	// TierWarm indicates a push within the last 7 days.
	TierWarm
	// TierStale indicates no push for 7+ days, or no metadata yet.
	TierStale
)

// Suggested client refresh intervals per activity tier.
const (
	intervalHot    = 2 * time.Minute
	intervalActive = 5 * time.Minute
	intervalWarm   = 15 * time.Minute
	intervalStale  = 30 * time.Minute
)

// String returns a human-readable name for the activity tier.
func (t ActivityTier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierActive:
		return "active"
	case TierWarm:
		return "warm"
	case TierStale:
		return "stale"
	default:
		return "unknown"
	}
}

// SuggestedInterval returns how often a viewer of a repository in this tier
// should expect meaningful change.
func (t ActivityTier) SuggestedInterval() time.Duration {
	switch t {
	case TierHot:
		return intervalHot
	case TierActive:
		return intervalActive
	case TierWarm:
		return intervalWarm
	case TierStale:
		return intervalStale
	default:
		return intervalActive
	}
}

// ClassifyActivity determines the activity tier based on the time elapsed
// since the last activity. A zero-value time is treated as TierStale.
func ClassifyActivity(lastActivity time.Time) ActivityTier {
	if lastActivity.IsZero() {
		return TierStale
	}

	elapsed := time.Since(lastActivity)

	switch {
	case elapsed < 1*time.Hour:
		return TierHot
	case elapsed < 24*time.Hour:
		return TierActive
	case elapsed < 7*24*time.Hour:
		return TierWarm
	default:
		return TierStale
	}
}

// RepoActivity classifies a repository from its metadata snapshot. A missing
// snapshot is TierStale.
func RepoActivity(info *model.RepoInfo) ActivityTier {
	if info == nil {
		return TierStale
	}
	return ClassifyActivity(info.PushedAt)
}
