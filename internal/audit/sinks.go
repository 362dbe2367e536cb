package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// LogSink writes events through a zerolog logger. Successful events are
// logged at info level, failures at warn.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(_ context.Context, event Event) {
	if s == nil {
		return
	}

	ev := s.logger.Info()
	if !event.Success {
		ev = s.logger.Warn()
	}
	ev = ev.Str("event", event.EventType).
		Time("event_time", event.Timestamp).
		Bool("success", event.Success)
	if event.UserID != "" {
		ev = ev.Str("user_id", event.UserID)
	}
	if event.IP != "" {
		ev = ev.Str("ip", event.IP)
	}
	if event.Error != "" {
		ev = ev.Str("error_code", event.Error)
	}
	if len(event.Metadata) > 0 {
		ev = ev.Interface("metadata", event.Metadata)
	}
	ev.Msg("audit")
}

// Publisher is the subset of *nats.Conn used by NATSSink.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes each event as JSON on a fixed subject. Publish is
// fire-and-forget; failures are reported to onError when set.
type NATSSink struct {
	conn    Publisher
	subject string
	onError func(error)
}

func NewNATSSink(conn Publisher, subject string, onError func(error)) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{conn: conn, subject: subject, onError: onError}
}

// DefaultSubject is used when NewNATSSink receives an empty subject.
const DefaultSubject = "gorotate.audit"

func (s *NATSSink) Emit(_ context.Context, event Event) {
	if s == nil || s.conn == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.report(err)
		return
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		s.report(err)
	}
}

func (s *NATSSink) report(err error) {
	if s.onError != nil {
		s.onError(err)
	}
}

// ConnectNATS dials url with reconnects enabled, suitable for a long lived
// audit publisher.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

// MultiSink forwards every event to each sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}
