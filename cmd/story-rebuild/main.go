package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"sync/atomic"

	"sentra_backend/internal/events"
	"sentra_backend/internal/story"
	"sentra_backend/internal/story/domain"
	"sentra_backend/platform/config"
	"sentra_backend/platform/db"
	"sentra_backend/platform/logger"
	"sentra_backend/platform/validator"

	"golang.org/x/sync/errgroup"
)

// Replays every stored trip and itinerary through the story engine. Trips
// run before itineraries so primary trips exist when snapshots are written.
func main() {
	batch := flag.Int("batch", 200, "records per page")
	workers := flag.Int("workers", 4, "concurrent replays")
	skipItineraries := flag.Bool("skip-itineraries", false, "only replay trips")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting story rebuild", "batch", *batch, "workers", *workers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	defer eventBus.Wait()

	locker, closeLocker, err := story.NewLocker(cfg)
	if err != nil {
		log.Error("failed to initialize story locker", "error", err)
		panic("failed to initialize story locker: " + err.Error())
	}
	defer func() { _ = closeLocker() }()

	storyModule := story.NewModule(pool, locker, eventBus, validator.New(), cfg, log)
	repo := storyModule.Repository()
	svc := storyModule.Service()
	eng := storyModule.Engine()

	var trips, itineraries, failed atomic.Int64

	after := ""
	for ctx.Err() == nil {
		names, err := repo.ListTripNames(ctx, after, *batch)
		if err != nil {
			log.Error("failed to list trips", "error", err)
			os.Exit(1)
		}
		if len(names) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(*workers)
		for _, name := range names {
			g.Go(func() error {
				if err := svc.RefreshTrip(gctx, name); err != nil {
					failed.Add(1)
					log.Warn("trip replay failed", "trip", name, "error", err)
					return nil
				}
				trips.Add(1)
				return nil
			})
		}
		_ = g.Wait()
		after = names[len(names)-1]
	}

	after = ""
	for !*skipItineraries && ctx.Err() == nil {
		page, err := repo.ListItinerariesAfter(ctx, after, *batch)
		if err != nil {
			log.Error("failed to list itineraries", "error", err)
			os.Exit(1)
		}
		if len(page) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(*workers)
		for i := range page {
			itinerary := page[i]
			g.Go(func() error {
				if err := replayItinerary(gctx, eng, &itinerary); err != nil {
					failed.Add(1)
					log.Warn("itinerary replay failed", "itinerary", itinerary.Name, "error", err)
					return nil
				}
				itineraries.Add(1)
				return nil
			})
		}
		_ = g.Wait()
		after = page[len(page)-1].Name
	}

	log.Info("story rebuild complete",
		"trips", trips.Load(),
		"itineraries", itineraries.Load(),
		"failed", failed.Load(),
	)
	if failed.Load() > 0 {
		os.Exit(1)
	}
}

type itineraryUpdater interface {
	UpdateFromItinerary(ctx context.Context, itinerary *domain.Itinerary) error
}

func replayItinerary(ctx context.Context, eng itineraryUpdater, itinerary *domain.Itinerary) error {
	return eng.UpdateFromItinerary(ctx, itinerary)
}
