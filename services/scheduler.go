package services

import (
	"context"
	"fmt"
	"time"

	"firecontest-backend/utils/logger"

	"github.com/go-co-op/gocron/v2"
)

const (
	promptInterval = time.Minute
	purgeInterval  = 15 * time.Minute
)

// Scheduler runs the periodic maintenance jobs: reminding admins to finish
// contests that have been live for a while and clearing stale reset tokens.
type Scheduler struct {
	Contests *ContestService
	Auth     *AuthService
	Notifier Notifier

	sched  gocron.Scheduler
	cancel context.CancelFunc
}

func NewScheduler(contests *ContestService, auth *AuthService, notifier Notifier) *Scheduler {
	return &Scheduler{Contests: contests, Auth: auth, Notifier: orNoop(notifier)}
}

func (s *Scheduler) Start() error {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())

	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context) error
	}{
		{"completion-prompts", promptInterval, s.SendCompletionPrompts},
		{"purge-reset-tokens", purgeInterval, s.PurgeResetTokens},
	}
	for _, j := range jobs {
		j := j
		_, err := sched.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(func() {
				if err := j.run(ctx); err != nil {
					logger.Errorf("[Scheduler] %s failed: %v", j.name, err)
				}
			}),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			cancel()
			_ = sched.Shutdown()
			return fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
	}

	sched.Start()
	s.sched, s.cancel = sched, cancel
	logger.Infof("[Scheduler] started")
	return nil
}

func (s *Scheduler) Shutdown() error {
	if s.sched == nil {
		return nil
	}
	s.cancel()
	return s.sched.Shutdown()
}

// SendCompletionPrompts emails every admin once per contest whose completion
// reminder is due.
func (s *Scheduler) SendCompletionPrompts(ctx context.Context) error {
	due, err := s.Contests.DueCompletionPrompts(ctx)
	if err != nil || len(due) == 0 {
		return err
	}
	admins, err := s.Auth.AdminEmails(ctx)
	if err != nil {
		return err
	}
	for i := range due {
		subject, body := completionPromptEmail(&due[i])
		for _, to := range admins {
			s.Notifier.Notify(to, subject, body)
		}
		logger.Infof("[Scheduler] completion prompt sent contest=%s", due[i].ID)
	}
	return nil
}

func (s *Scheduler) PurgeResetTokens(ctx context.Context) error {
	n, err := s.Auth.PurgeExpiredResetTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to purge reset tokens: %w", err)
	}
	if n > 0 {
		logger.Infof("[Scheduler] purged %d expired reset tokens", n)
	}
	return nil
}
