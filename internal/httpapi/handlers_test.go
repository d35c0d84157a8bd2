package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tidyhost/engage/internal/alert"
	"github.com/tidyhost/engage/internal/clock"
	"github.com/tidyhost/engage/internal/config"
	"github.com/tidyhost/engage/internal/logger"
	"github.com/tidyhost/engage/internal/notification"
)

// ctxAudioEmulator records the context state seen by each play call.
type ctxAudioEmulator struct {
	errs []error
}

func (a *ctxAudioEmulator) PlayAlert(ctx context.Context) error {
	a.errs = append(a.errs, ctx.Err())
	return nil
}

func (a *ctxAudioEmulator) Available() bool { return true }

type ctxSpeakerEmulator struct {
	errs []error
}

func (s *ctxSpeakerEmulator) Speak(ctx context.Context, text, locale string) error {
	s.errs = append(s.errs, ctx.Err())
	return nil
}

func (s *ctxSpeakerEmulator) Available() bool { return true }

func TestDebugAlertStagesOutliveRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sched := clock.NewManual()
	log := logger.New(logger.Config{Level: slog.LevelError})
	center := notification.NewCenter(sched, log)
	audio := &ctxAudioEmulator{}
	speaker := &ctxSpeakerEmulator{}
	profile := &config.AlertProfile{
		Title:          "New order",
		BodyTemplate:   "%s booked %s",
		SpeechTemplate: "New order received. %s booked %s.",
		Locale:         "en-US",
	}
	seq := alert.NewSequencer(center, audio, speaker, sched, profile, log)

	handler := NewHandler(center, nil, seq, nil, nil, nil, log)
	router := NewRouter(handler, "*", log)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/debug/alert", nil)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	// The request context ends as soon as the handler returns; the alert
	// channels fire later and must not observe that cancellation.
	cancel()
	sched.Advance(time.Second)

	if len(audio.errs) != 1 {
		t.Fatalf("expected 1 sound play, got %d", len(audio.errs))
	}
	if audio.errs[0] != nil {
		t.Errorf("sound stage saw a dead context: %v", audio.errs[0])
	}
	if len(speaker.errs) != 1 {
		t.Fatalf("expected 1 speech call, got %d", len(speaker.errs))
	}
	if speaker.errs[0] != nil {
		t.Errorf("speech stage saw a dead context: %v", speaker.errs[0])
	}
}
