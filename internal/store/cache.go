package store

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/jobseekr/internal/jobs"
)

// SetCache is the subset of the Redis client used for the processed URL set.
type SetCache interface {
	SIsMember(ctx context.Context, key string, member any) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedRepository answers Exists from a Redis set before asking the
// underlying repository. Cache errors are logged and never fail a call.
type CachedRepository struct {
	jobs.Repository

	cache  SetCache
	key    string
	logger *zap.Logger
}

func NewCachedRepository(repo jobs.Repository, cache SetCache, key string, logger *zap.Logger) *CachedRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if key == "" {
		key = "jobseekr:processed"
	}
	return &CachedRepository{Repository: repo, cache: cache, key: key, logger: logger}
}

func (c *CachedRepository) Exists(ctx context.Context, url string) (bool, error) {
	hit, err := c.cache.SIsMember(ctx, c.key, url).Result()
	if err != nil {
		c.logger.Debug("processed cache lookup failed", zap.String("url", url), zap.Error(err))
	} else if hit {
		return true, nil
	}

	exists, err := c.Repository.Exists(ctx, url)
	if err != nil || !exists {
		return exists, err
	}

	c.remember(ctx, url)
	return true, nil
}

func (c *CachedRepository) Save(ctx context.Context, job *jobs.ProcessedJob) error {
	if err := c.Repository.Save(ctx, job); err != nil {
		return err
	}
	c.remember(ctx, job.URL)
	return nil
}

// Forget drops the whole processed URL set, used after a database reset.
func (c *CachedRepository) Forget(ctx context.Context) error {
	if err := c.cache.Del(ctx, c.key).Err(); err != nil {
		return errors.Wrapf(err, "deleting cache key %s", c.key)
	}
	return nil
}

// Close closes the repository and, when it owns one, the cache connection.
func (c *CachedRepository) Close() error {
	err := c.Repository.Close()
	if closer, ok := c.cache.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func (c *CachedRepository) remember(ctx context.Context, url string) {
	if err := c.cache.SAdd(ctx, c.key, url).Err(); err != nil {
		c.logger.Debug("processed cache update failed", zap.String("url", url), zap.Error(err))
	}
}
