package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-timetable/internal/models"
	appErrors "github.com/noah-isme/campus-timetable/pkg/errors"
)

const historyKeyPattern = "history:*"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService keeps short-lived snapshots of timetable history so repeated
// generation sessions do not re-read storage.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

func historyKey(facultyID string) string {
	if facultyID == "" {
		return "history:all"
	}
	return "history:faculty:" + facultyID
}

// History returns a cached history read. ok is false on a miss or when the
// cache is disabled.
func (s *CacheService) History(ctx context.Context, facultyID string) ([]models.TimetableRow, bool) {
	if !s.Enabled() {
		return nil, false
	}
	var rows []models.TimetableRow
	start := time.Now()
	err := s.repo.Get(ctx, historyKey(facultyID), &rows)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("key", historyKey(facultyID)), zap.Error(err))
		}
		return nil, false
	}
	return rows, true
}

// StoreHistory caches a history read. Failures are logged and otherwise ignored.
func (s *CacheService) StoreHistory(ctx context.Context, facultyID string, rows []models.TimetableRow) {
	if !s.Enabled() {
		return
	}
	if rows == nil {
		rows = []models.TimetableRow{}
	}
	start := time.Now()
	err := s.repo.Set(ctx, historyKey(facultyID), rows, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", historyKey(facultyID)), zap.Error(err))
	}
}

// InvalidateHistory drops every cached history read after a write.
func (s *CacheService) InvalidateHistory(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, historyKeyPattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", historyKeyPattern), zap.Error(err))
	}
}
