package outbox

import "github.com/sirupsen/logrus"

func logrusNop() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func logFields(store string, rec Record) logrus.Fields {
	return logrus.Fields{
		"store":        store,
		"record_id":    rec.ID.String(),
		"aggregate_id": rec.AggregateID,
		"event_type":   rec.EventType,
		"destination":  rec.Destination,
		"retry_count":  rec.RetryCount,
	}
}
