package notifier

import (
	"context"

	"github.com/pershin-daniil/Events/pkg/metrics"
	"github.com/sirupsen/logrus"
)

// LogNotifier reports event changes to the log and the event_changes_total counter.
type LogNotifier struct {
	log *logrus.Entry
}

func New(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{
		log: log.WithField("component", "notifier"),
	}
}

func (n *LogNotifier) Notify(_ context.Context, change string, eventID int) error {
	metrics.EventChanges.WithLabelValues(change).Inc()
	n.log.WithField("event_id", eventID).Infof("event %s", change)
	return nil
}
