package bot

import (
	"context"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/config"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/ctxutil"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/logger"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/metrics"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/storage"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/textnorm"
)

// EventLog writes QA events for the modules. A nil EventLog, or one without
// a recorder, only updates metrics.
type EventLog struct {
	recorder storage.EventRecorder
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewEventLog creates an event log. recorder may be nil when the event
// store is disabled.
func NewEventLog(recorder storage.EventRecorder, m *metrics.Metrics, log *logger.Logger) *EventLog {
	return &EventLog{recorder: recorder, metrics: m, logger: log}
}

// Record stores one routed question. The user and chat ids come from ctx.
// Failures are logged and counted; they never reach the user.
func (l *EventLog) Record(ctx context.Context, kind, question, matched string, score float64, provider string) {
	if l == nil || l.recorder == nil {
		return
	}

	writeCtx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), config.EventWrite)
	defer cancel()

	err := l.recorder.RecordEvent(writeCtx, &storage.QAEvent{
		Kind:       kind,
		UserID:     ctxutil.GetUserID(ctx),
		ChatID:     ctxutil.GetChatID(ctx),
		Question:   question,
		Normalized: textnorm.Normalize(question),
		Matched:    matched,
		Score:      score,
		Provider:   provider,
	})
	if err != nil {
		l.metrics.RecordEventStoreError("record")
		if l.logger != nil {
			l.logger.WithError(err).WithField("kind", kind).Warn("Failed to record QA event")
		}
	}
}
