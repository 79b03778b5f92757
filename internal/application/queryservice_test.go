package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/repopulse/internal/adapter/driven/memory"
	"github.com/ericfisherdev/repopulse/internal/application"
	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

func TestQueryService_ListRepos(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.PutInfo(ctx, model.RepoInfo{RepoID: "o/a", PushedAt: time.Now().Add(-time.Minute)}))
	require.NoError(t, store.PutEvents(ctx, "o/a", []model.Event{pushEvent("1", "2025-01-01T00:00:00Z", "x")}))

	svc := application.NewQueryService([]model.Repository{
		{ID: "o/a", DisplayName: "A"},
		{ID: "o/b", DisplayName: "B"},
	}, store)

	got, err := svc.ListRepos(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "o/a", got[0].Repo.ID)
	require.NotNil(t, got[0].Info)
	assert.Equal(t, 1, got[0].Events)
	assert.Equal(t, application.TierHot, got[0].Activity)

	assert.Equal(t, "o/b", got[1].Repo.ID)
	assert.Nil(t, got[1].Info)
	assert.Equal(t, application.TierStale, got[1].Activity)
}

func TestQueryService_GetCommit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	key := model.CommitKey{RepoID: "o/a", SHA: "abc"}
	_, err := store.PutCommitStats(ctx, key, model.CommitStats{SHA: "abc", Additions: 1})
	require.NoError(t, err)

	svc := application.NewQueryService(nil, store)

	got, err := svc.GetCommit(ctx, "o/a", "abc")
	require.NoError(t, err)
	assert.Equal(t, key, got.Key)
	require.NotNil(t, got.Stats)
	assert.Nil(t, got.Review)

	_, err = svc.GetCommit(ctx, "o/a", "missing")
	assert.ErrorIs(t, err, application.ErrCommitNotFound)
}

func TestQueryService_FeedLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.ReplaceFeed(ctx, []model.FeedItem{{Title: "1"}, {Title: "2"}, {Title: "3"}}))

	svc := application.NewQueryService(nil, store)

	all, err := svc.Feed(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	two, err := svc.Feed(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}
