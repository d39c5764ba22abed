package scheduler

import (
	"context"
	"fmt"

	"sentra_backend/internal/story/domain"
	"sentra_backend/platform/apperr"
	"sentra_backend/platform/config"
	"sentra_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// StoryProcessor applies queued CRM changes.
type StoryProcessor interface {
	ProcessTrip(ctx context.Context, trip *domain.Trip) error
	ProcessItinerary(ctx context.Context, itinerary *domain.Itinerary) error
	ProcessCommunication(ctx context.Context, comm *domain.Communication) error
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor StoryProcessor
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, processor StoryProcessor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := &Worker{
		server:    server,
		processor: processor,
		log:       log,
	}
	w.mux = w.newMux()
	return w, nil
}

func (w *Worker) newMux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskStoryTripChanged, w.handleTripChanged)
	mux.HandleFunc(TaskStoryItineraryChanged, w.handleItineraryChanged)
	mux.HandleFunc(TaskStoryCommunicationCreated, w.handleCommunicationCreated)
	return mux
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleTripChanged(ctx context.Context, task *asynq.Task) error {
	trip, err := ParseStoryTripChangedPayload(task)
	if err != nil {
		return skipRetry(err)
	}
	return w.result(task, trip.Name, w.processor.ProcessTrip(ctx, trip))
}

func (w *Worker) handleItineraryChanged(ctx context.Context, task *asynq.Task) error {
	itinerary, err := ParseStoryItineraryChangedPayload(task)
	if err != nil {
		return skipRetry(err)
	}
	return w.result(task, itinerary.Name, w.processor.ProcessItinerary(ctx, itinerary))
}

func (w *Worker) handleCommunicationCreated(ctx context.Context, task *asynq.Task) error {
	comm, err := ParseStoryCommunicationCreatedPayload(task)
	if err != nil {
		return skipRetry(err)
	}
	return w.result(task, comm.Name, w.processor.ProcessCommunication(ctx, comm))
}

// result logs a failed task. Errors that cannot succeed on replay are not
// retried.
func (w *Worker) result(task *asynq.Task, name string, err error) error {
	if err == nil {
		return nil
	}
	if !apperr.IsRetryable(err) {
		w.log.Warn("story task rejected", "task", task.Type(), "name", name, "error", err)
		return skipRetry(err)
	}
	w.log.Error("story task failed", "task", task.Type(), "name", name, "error", err)
	return err
}

func skipRetry(err error) error {
	return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
}
