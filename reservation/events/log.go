package events

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogPublisher writes events as structured log entries.
type LogPublisher struct {
	log logrus.FieldLogger
}

// NewLogPublisher logs to l, or to the standard logger when l is nil.
func NewLogPublisher(l logrus.FieldLogger) *LogPublisher {
	if l == nil {
		l = logrus.WithField("pkg", "events")
	}
	return &LogPublisher{log: l}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	entry := p.log.WithFields(logrus.Fields{
		"event":   ev.Name,
		"session": ev.SessionID,
		"total":   ev.TotalPrice,
	})
	if ev.Seat != 0 {
		entry = entry.WithField("seat", ev.Seat)
	}
	if len(ev.Selection) > 0 {
		entry = entry.WithField("selection", ev.Selection)
	}
	entry.Info("reservation event")
	return nil
}
