package mirror

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/botrunner/internal/core/domain"
	"github.com/vietddude/botrunner/internal/infra/github"
	"github.com/vietddude/botrunner/internal/infra/storage"
)

var (
	ErrPushDisabled  = errors.New("push to github is disabled")
	ErrPublishFailed = errors.New("publish failed")
	ErrLocked        = errors.New("publish already in progress for target")
)

const lockTTL = time.Minute

// Publisher is the synchronizer the service delegates writes to.
type Publisher interface {
	TryPublish(ctx context.Context, cfg github.Config, content, label string) bool
}

// Result describes what Mirror did.
type Result struct {
	Target      string
	Fingerprint string
	Published   bool
	Skipped     bool
}

// Service publishes content only when it differs from what was last
// published to the same target.
type Service struct {
	cfg       github.Config
	publisher Publisher
	cache     Cache
	records   storage.PublishRepository
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache replaces the default in-memory cache.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithRecords persists every attempt.
func WithRecords(r storage.PublishRepository) Option {
	return func(s *Service) { s.records = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(cfg github.Config, publisher Publisher, opts ...Option) *Service {
	s := &Service{
		cfg:       cfg,
		publisher: publisher,
		cache:     NewMemoryCache(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fingerprint returns the sha256 hex digest of content.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Mirror publishes content unless pushing is disabled or the target already
// holds the same content.
func (s *Service) Mirror(ctx context.Context, content, label string) (Result, error) {
	if !s.cfg.PushEnabled {
		return Result{Skipped: true}, ErrPushDisabled
	}
	return s.mirror(ctx, content, label, false)
}

// Force publishes content regardless of the push switch and the cache.
func (s *Service) Force(ctx context.Context, content, label string) (Result, error) {
	return s.mirror(ctx, content, label, true)
}

func (s *Service) mirror(ctx context.Context, content, label string, force bool) (Result, error) {
	target, err := s.cfg.Target()
	if err != nil {
		return Result{}, err
	}

	res := Result{Target: target.String(), Fingerprint: Fingerprint(content)}
	log := s.logger.With("target", res.Target, "label", label)

	if !force {
		unchanged, err := s.unchanged(ctx, res.Target, res.Fingerprint)
		if err != nil {
			log.Warn("Fingerprint lookup failed, publishing anyway", "error", err)
		}
		if unchanged {
			log.Debug("Content unchanged, skipping publish")
			res.Skipped = true
			s.record(ctx, res, label)
			return res, nil
		}
	}

	acquired, err := s.cache.AcquireLock(ctx, res.Target, lockTTL)
	if err != nil {
		return res, fmt.Errorf("acquire publish lock: %w", err)
	}
	if !acquired {
		return res, ErrLocked
	}
	defer func() {
		if err := s.cache.ReleaseLock(context.WithoutCancel(ctx), res.Target); err != nil {
			log.Warn("Failed to release publish lock", "error", err)
		}
	}()

	res.Published = s.publisher.TryPublish(ctx, s.cfg, content, label)
	s.record(ctx, res, label)
	if !res.Published {
		return res, ErrPublishFailed
	}

	if err := s.cache.SetFingerprint(ctx, res.Target, res.Fingerprint, 0); err != nil {
		log.Warn("Failed to cache fingerprint", "error", err)
	}
	return res, nil
}

func (s *Service) unchanged(ctx context.Context, target, fingerprint string) (bool, error) {
	prev, found, err := s.cache.GetFingerprint(ctx, target)
	if err != nil {
		return false, err
	}
	if found {
		return prev == fingerprint, nil
	}

	if s.records == nil {
		return false, nil
	}
	last, err := s.records.LastSuccessful(ctx, target)
	if err != nil || last == nil {
		return false, err
	}
	return last.Fingerprint == fingerprint, nil
}

func (s *Service) record(ctx context.Context, res Result, label string) {
	if s.records == nil {
		return
	}
	rec := &domain.PublishRecord{
		ID:          uuid.New().String(),
		Target:      res.Target,
		Label:       label,
		Fingerprint: res.Fingerprint,
		Success:     res.Published,
		Skipped:     res.Skipped,
		CreatedAt:   time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.records.Save(ctx, rec); err != nil {
		s.logger.Warn("Failed to save publish record", "target", res.Target, "error", err)
	}
}
