package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"comfygate/internal/repository"
	"comfygate/internal/storage"
)

// Scheduler runs the daily orphan sweep. Resource creation writes object
// bytes before the metadata row, so a crash between the two leaves an
// object no row points at. The sweep removes objects older than a day
// that no resource row references.
type Scheduler struct {
	cron      *cron.Cron
	store     *storage.ObjectStore
	resources *repository.ResourceRepository
	log       zerolog.Logger
}

func NewScheduler(store *storage.ObjectStore, resources *repository.ResourceRepository, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		store:     store,
		resources: resources,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 30 3 * * *", s.sweepOrphans); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() context.CancelFunc {
	_, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	go func() {
		s.cron.Stop()
		cancel()
	}()
	return cancel
}

func (s *Scheduler) sweepOrphans() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// The age floor keeps the sweep from racing an in-flight create that
	// has written bytes but not yet inserted the row.
	cutoff := time.Now().Add(-24 * time.Hour)

	keys, err := s.store.ListOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("orphan sweep listing failed")
		return
	}

	removed := 0
	for _, key := range keys {
		exists, err := s.resources.ExistsByStorageName(ctx, key)
		if err != nil {
			s.log.Error().Err(err).Str("key", key).Msg("orphan sweep lookup failed")
			continue
		}
		if exists {
			continue
		}

		if err := s.store.Remove(ctx, key); err != nil {
			s.log.Error().Err(err).Str("key", key).Msg("orphan sweep remove failed")
			continue
		}
		removed++
	}

	s.log.Info().
		Int("scanned", len(keys)).
		Int("removed", removed).
		Msg("orphan sweep finished")
}
