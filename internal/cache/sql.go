package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-catalog-cache/internal/repo"
)

// SQL is a Store over the cache_entries table of the catalog database. SetNX
// relies on the table's primary key, so concurrent callers across processes
// still see a single winner.
type SQL struct {
	db      *gorm.DB
	nowFunc func() time.Time
}

// NewSQL returns a store over db. The cache_entries table must already be
// migrated (repo.AutoMigrate).
func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db, nowFunc: func() time.Time { return time.Now().UTC() }}
}

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	rec, err := repo.GetCacheEntry(ctx, s.db, key, s.nowFunc())
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rec.Value, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := checkTTL(ttl); err != nil {
		return err
	}
	return repo.PutCacheEntry(ctx, s.db, key, value, ttl, s.nowFunc())
}

func (s *SQL) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := checkTTL(ttl); err != nil {
		return false, err
	}
	err := repo.CreateCacheEntry(ctx, s.db, key, value, ttl, s.nowFunc())
	if errors.Is(err, repo.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQL) Ping(ctx context.Context) error { return repo.Ping(ctx, s.db) }

// Close is a no-op; the database handle belongs to the caller.
func (s *SQL) Close() error { return nil }

// Sweep deletes expired rows and returns how many were removed.
func (s *SQL) Sweep(ctx context.Context) (int64, error) {
	return repo.DeleteExpiredCacheEntries(ctx, s.db, s.nowFunc())
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *SQL) RunSweeper(ctx context.Context, interval time.Duration) {
	log := zerolog.Ctx(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("cache sweep failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("cache sweep")
			}
		}
	}
}
