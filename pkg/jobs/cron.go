package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jordanlanch/taxpipe/pkg/cache"
	"github.com/jordanlanch/taxpipe/pkg/dispatch"
	"github.com/jordanlanch/taxpipe/pkg/schedule"
)

// CronManager manages the pipeline's scheduled jobs. Job bodies stay thin:
// the builders and dispatcher return result objects, and the wrappers here
// only trigger, time-box, and log them.
type CronManager struct {
	cron       *cron.Cron
	builder    *schedule.Builder
	dispatcher *dispatch.Dispatcher
	reviews    *cache.ReviewCache
	logger     *log.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(builder *schedule.Builder, dispatcher *dispatch.Dispatcher, reviews *cache.ReviewCache, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}
	return &CronManager{
		cron:       cron.New(),
		builder:    builder,
		dispatcher: dispatcher,
		reviews:    reviews,
		logger:     logger,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Println("Setting up cron jobs...")

	// Weekdays at 7 AM: build the day's queues before any sends go out.
	_, err := cm.cron.AddFunc("0 7 * * 1-5", func() {
		cm.logger.Println("Running daily queue build...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		result, err := cm.builder.BuildDaily(ctx, time.Now())
		if err != nil {
			cm.logger.Printf("Daily build failed: %v", err)
			return
		}
		cm.logger.Printf("Daily build done: %d emails, %d texts, %d to review",
			len(result.EmailQueue), len(result.TextQueue), len(result.ToReview))
	})
	if err != nil {
		return err
	}

	// Weekdays at 9 AM: drain the email queue.
	_, err = cm.cron.AddFunc("0 9 * * 1-5", func() {
		cm.logger.Println("Dispatching emails...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		result, err := cm.dispatcher.DispatchEmails(ctx, today())
		if err != nil {
			cm.logger.Printf("Email dispatch failed: %v", err)
			return
		}
		cm.logger.Printf("Email dispatch done: %d sent, %d failed", result.Sent, result.Failed)
	})
	if err != nil {
		return err
	}

	// Weekdays, every 30 minutes during business hours: release one pace worth
	// of texts.
	_, err = cm.cron.AddFunc("*/30 9-16 * * 1-5", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()

		result, err := cm.dispatcher.DispatchTexts(ctx, today())
		if err != nil {
			cm.logger.Printf("Text dispatch failed: %v", err)
			return
		}
		if result.Sent > 0 || result.Failed > 0 {
			cm.logger.Printf("Text dispatch done: %d sent, %d failed", result.Sent, result.Failed)
		}
	})
	if err != nil {
		return err
	}

	// Hourly: refresh the review-list cache.
	_, err = cm.cron.AddFunc("0 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		list, err := cm.reviews.Refresh(ctx)
		if err != nil {
			cm.logger.Printf("Review cache refresh failed: %v", err)
			return
		}
		cm.logger.Printf("Review cache refreshed: %d clients in review", len(list))
	})
	if err != nil {
		return err
	}

	cm.logger.Println("Cron jobs configured:")
	cm.logger.Println("  - Weekdays 7 AM: daily queue build")
	cm.logger.Println("  - Weekdays 9 AM: email dispatch")
	cm.logger.Println("  - Weekdays 9-16h every 30 min: paced text dispatch")
	cm.logger.Println("  - Hourly: review cache refresh")

	return nil
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Println("Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the cron scheduler
func (cm *CronManager) Stop() {
	cm.logger.Println("Stopping cron scheduler...")
	cm.cron.Stop()
}

func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
