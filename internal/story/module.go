// Package story provides the story domain module: the CRM change hooks, the
// story engine behind them, and the story read API.
package story

import (
	"context"
	"fmt"

	"sentra_backend/internal/events"
	apphttp "sentra_backend/internal/http"
	"sentra_backend/internal/story/engine"
	"sentra_backend/internal/story/handler"
	"sentra_backend/internal/story/repository"
	"sentra_backend/internal/story/service"
	"sentra_backend/internal/whatsapp"
	"sentra_backend/platform/config"
	"sentra_backend/platform/lock"
	"sentra_backend/platform/logger"
	"sentra_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

const redisLockPrefix = "sentra:lock:"

// ModuleConfig combines the config interfaces the story module reads.
type ModuleConfig interface {
	config.StoryConfig
	config.PhoneConfig
}

// LockConfig combines the config interfaces needed to build the contact
// locker.
type LockConfig interface {
	config.StoryConfig
	GetRedisURL() string
}

// Module represents the story domain module
type Module struct {
	handler *handler.Handler
	service *service.Service
	engine  *engine.Engine
	repo    *repository.Repository
	log     *logger.Logger
}

// NewModule creates a new story module with all dependencies wired
func NewModule(pool *pgxpool.Pool, locker lock.Locker, bus events.Publisher, val *validator.Validator, cfg ModuleConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)

	eng := engine.New(repo, repo, locker, bus, log)
	eng.SetContactResolver(whatsapp.NewContactResolver(repo, cfg, bus, log))
	eng.SetLockWait(cfg.GetStoryLockWait())

	svc := service.New(repo, eng, log)

	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		engine:  eng,
		repo:    repo,
		log:     log,
	}
}

// NewLocker builds the contact locker selected by STORY_LOCK_BACKEND. The
// returned close function releases the Redis connection, if any.
func NewLocker(cfg LockConfig) (lock.Locker, func() error, error) {
	if cfg.GetStoryLockBackend() != config.LockBackendRedis {
		return lock.NewKeyedMutex(), func() error { return nil }, nil
	}

	client, err := lock.NewRedisClient(cfg.GetRedisURL())
	if err != nil {
		return nil, nil, fmt.Errorf("story locker: %w", err)
	}
	locker := lock.NewRedisLocker(client, redisLockPrefix, lock.WithLeaseTTL(cfg.GetStoryLockTTL()))
	return locker, client.Close, nil
}

// Service exposes the story service for the worker and the sweep.
func (m *Module) Service() *service.Service {
	return m.service
}

// Engine exposes the story engine.
func (m *Module) Engine() *engine.Engine {
	return m.engine
}

// Repository exposes the story repository.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// SetEnqueuer routes hook submissions through the task queue.
func (m *Module) SetEnqueuer(enqueuer service.Enqueuer) {
	m.service.SetEnqueuer(enqueuer)
}

// RegisterHandlers subscribes the module's event handlers.
func (m *Module) RegisterHandlers(bus events.Bus) {
	events.Subscribe(bus, func(ctx context.Context, e events.StoryStageChanged) error {
		m.log.WithContext(ctx).Info("story stage changed",
			"from", e.OldStage,
			"to", e.NewStage,
			"version", e.StoryVersion,
			"reason", e.Reason,
			"source", e.SourceRef,
		)
		return nil
	})

	events.Subscribe(bus, func(ctx context.Context, e events.ContactAutoCreated) error {
		m.log.WithContext(ctx).Info("contact created for unknown sender")
		return nil
	})
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "story"
}

// RegisterRoutes registers the hooks under /api/v1/hooks and the read API
// under /api/v1/stories
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterHookRoutes(ctx.Hooks)
	m.handler.RegisterRoutes(ctx.V1.Group("/stories"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
