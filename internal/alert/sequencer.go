// Package alert drives the ordered multi-channel alert for a newly detected
// order: on-screen notification, sound cue, then a spoken announcement.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidyhost/engage/internal/backend"
	"github.com/tidyhost/engage/internal/capability"
	"github.com/tidyhost/engage/internal/clock"
	"github.com/tidyhost/engage/internal/config"
	"github.com/tidyhost/engage/internal/logger"
	"github.com/tidyhost/engage/internal/metrics"
	"github.com/tidyhost/engage/internal/notification"
	"github.com/tidyhost/engage/internal/retry"
)

const (
	// preSpeechDelay lets the sound cue begin before speech starts. This is
	// a fixed heuristic, not a completion signal from the audio channel.
	preSpeechDelay = 600 * time.Millisecond

	// speechAttempts and speechRetryDelay: one silent retry, then give up.
	speechAttempts   = 2
	speechRetryDelay = 500 * time.Millisecond
)

// Sequencer runs the alert pipeline. Every stage is scheduled rather than
// awaited, so a slow or failing channel can never stall the polling loop,
// and each stage fails independently of the others.
type Sequencer struct {
	center  *notification.Center
	audio   capability.AudioPlayer
	speaker capability.Speaker
	sched   clock.Scheduler
	profile *config.AlertProfile
	logger  *logger.Logger
}

// NewSequencer creates an alert sequencer.
func NewSequencer(
	center *notification.Center,
	audio capability.AudioPlayer,
	speaker capability.Speaker,
	sched clock.Scheduler,
	profile *config.AlertProfile,
	logger *logger.Logger,
) *Sequencer {
	return &Sequencer{
		center:  center,
		audio:   audio,
		speaker: speaker,
		sched:   sched,
		profile: profile,
		logger:  logger.WithComponent("alert_sequencer"),
	}
}

// HandleOrder starts the alert pipeline for a detected order. It returns
// immediately; the sound and speech stages run on scheduled callbacks.
func (s *Sequencer) HandleOrder(ctx context.Context, order backend.Order) {
	log := s.logger.WithContext(logger.WithOrderID(ctx, order.ID))

	log.Info("alerting on new order",
		slog.String("customer", order.CustomerName),
		slog.String("package", order.PackageName))
	metrics.AlertsTotal.Inc()

	body := fmt.Sprintf(s.profile.BodyTemplate, order.CustomerName, order.PackageName)
	s.center.Push(s.profile.Title, body, false)
	metrics.NotificationsDisplayedTotal.Inc()

	// Fire-and-continue: a failed cue is logged, never propagated.
	s.sched.Schedule(0, func() {
		if err := s.audio.PlayAlert(ctx); err != nil {
			metrics.ChannelFailuresTotal.WithLabelValues(metrics.ChannelAudio).Inc()
			log.Warn("alert sound failed", slog.String("error", err.Error()))
		}
	})

	s.sched.Schedule(preSpeechDelay, func() {
		s.announce(ctx, order)
	})
}

func (s *Sequencer) announce(ctx context.Context, order backend.Order) {
	log := s.logger.WithContext(logger.WithOrderID(ctx, order.ID))

	if !s.speaker.Available() {
		log.Debug("speech synthesis unavailable, skipping announcement")
		return
	}

	text := fmt.Sprintf(s.profile.SpeechTemplate, order.CustomerName, order.PackageName)

	retry.Scheduled(s.sched, speechAttempts, speechRetryDelay, func() error {
		return s.speaker.Speak(ctx, text, s.profile.Locale)
	}, func(err error) {
		// A failed alert cannot announce its own failure; log and move on.
		metrics.ChannelFailuresTotal.WithLabelValues(metrics.ChannelSpeech).Inc()
		log.Warn("speech announcement failed after retry",
			slog.String("error", err.Error()))
	})
}
