package services

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// SchedulerService runs periodic maintenance: the filename backfill job on
// the configured cron expression. An empty expression disables scheduling
// entirely; the job stays reachable through the admin endpoint.
type SchedulerService struct {
	scheduler *gocron.Scheduler
	backfill  *BackfillService
}

func NewSchedulerService(backfill *BackfillService) *SchedulerService {
	return &SchedulerService{
		scheduler: gocron.NewScheduler(time.UTC),
		backfill:  backfill,
	}
}

// Start registers the backfill job and launches the scheduler in the
// background.
func (s *SchedulerService) Start(cronExpr string) error {
	if cronExpr == "" {
		log.Println("scheduler: no backfill cron configured, skipping")
		return nil
	}

	_, err := s.scheduler.Cron(cronExpr).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := s.backfill.BackfillFilenames(ctx); err != nil {
			log.Printf("scheduled backfill failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	log.Printf("scheduler: filename backfill registered with cron %q", cronExpr)
	return nil
}

func (s *SchedulerService) Stop() {
	s.scheduler.Stop()
}
