package reminders

import (
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/tidyhost/engage/internal/logger"
	"github.com/tidyhost/engage/internal/notification"
)

// Service posts recurring operational reminders (shift checks, end-of-day
// review) into the notification center on a cron schedule. Reminders are
// persistent: they stay on screen until the operator dismisses them.
type Service struct {
	cron   *cron.Cron
	center *notification.Center
	logger *logger.Logger
}

// New creates the reminder service. schedule is a standard five-field cron
// expression; title and body are the posted notification's content.
func New(center *notification.Center, schedule, title, body string, log *logger.Logger) (*Service, error) {
	s := &Service{
		cron:   cron.New(),
		center: center,
		logger: log.WithComponent("reminders"),
	}

	if schedule != "" {
		_, err := s.cron.AddFunc(schedule, func() {
			item := s.center.Push(title, body, true)
			s.logger.Info("reminder posted",
				slog.Int64("notification_id", item.ID),
				slog.String("schedule", schedule))
		})
		if err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Start begins firing scheduled reminders.
func (s *Service) Start() {
	s.cron.Start()
	s.logger.Info("reminder scheduler started",
		slog.Int("entries", len(s.cron.Entries())))
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("reminder scheduler stopped")
}
