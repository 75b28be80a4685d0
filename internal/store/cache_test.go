package store

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/jobseekr/internal/jobs"
)

type fakeSet struct {
	members map[string]bool
	err     error
	deleted bool
}

func newFakeSet() *fakeSet { return &fakeSet{members: map[string]bool{}} }

func (f *fakeSet) SIsMember(_ context.Context, _ string, member any) *redis.BoolCmd {
	return redis.NewBoolResult(f.members[member.(string)], f.err)
}

func (f *fakeSet) SAdd(_ context.Context, _ string, members ...any) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	for _, m := range members {
		f.members[m.(string)] = true
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeSet) Del(_ context.Context, _ ...string) *redis.IntCmd {
	f.deleted = true
	f.members = map[string]bool{}
	return redis.NewIntResult(1, nil)
}

type countingRepo struct {
	jobs.Repository
	known       map[string]bool
	existsCalls int
	saved       []string
}

func (r *countingRepo) Exists(_ context.Context, url string) (bool, error) {
	r.existsCalls++
	return r.known[url], nil
}

func (r *countingRepo) Save(_ context.Context, job *jobs.ProcessedJob) error {
	r.saved = append(r.saved, job.URL)
	r.known[job.URL] = true
	return nil
}

func TestCachedRepositoryExists(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{known: map[string]bool{"https://x.com/stored": true}}
	set := newFakeSet()
	set.members["https://x.com/cached"] = true

	c := NewCachedRepository(repo, set, "", nil)

	hit, err := c.Exists(ctx, "https://x.com/cached")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 0, repo.existsCalls, "cache hit must not reach the database")

	stored, err := c.Exists(ctx, "https://x.com/stored")
	require.NoError(t, err)
	assert.True(t, stored)
	assert.True(t, set.members["https://x.com/stored"], "database hit warms the cache")

	missing, err := c.Exists(ctx, "https://x.com/new")
	require.NoError(t, err)
	assert.False(t, missing)
	assert.False(t, set.members["https://x.com/new"])
}

func TestCachedRepositorySave(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{known: map[string]bool{}}
	set := newFakeSet()
	c := NewCachedRepository(repo, set, "k", nil)

	require.NoError(t, c.Save(ctx, &jobs.ProcessedJob{URL: "https://x.com/1"}))
	assert.Equal(t, []string{"https://x.com/1"}, repo.saved)
	assert.True(t, set.members["https://x.com/1"])

	require.NoError(t, c.Forget(ctx))
	assert.True(t, set.deleted)
}

func TestCachedRepositoryIgnoresCacheErrors(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{known: map[string]bool{"https://x.com/1": true}}
	set := newFakeSet()
	set.err = errors.New("connection refused")

	c := NewCachedRepository(repo, set, "k", nil)

	exists, err := c.Exists(ctx, "https://x.com/1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, repo.existsCalls)

	require.NoError(t, c.Save(ctx, &jobs.ProcessedJob{URL: "https://x.com/2"}))
}
