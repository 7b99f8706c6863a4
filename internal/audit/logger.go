// Confvault - Configuration Backup and Restore Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/confvault

package audit

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/confvault/internal/configlock"
	"github.com/tomtom215/confvault/internal/logging"
)

// Config configures the audit logger.
type Config struct {
	// MinSeverity drops events below this level.
	MinSeverity Severity

	// Retention is how long events are kept. Zero keeps them until the
	// store's size bound evicts them.
	Retention time.Duration

	// CleanupInterval is how often expired events are deleted.
	CleanupInterval time.Duration

	// BufferSize is the async write buffer.
	BufferSize int

	// LogToStdout also writes each event to the application log.
	LogToStdout bool
}

// DefaultConfig returns the defaults applied for zero values.
func DefaultConfig() Config {
	return Config{
		MinSeverity:     SeverityInfo,
		Retention:       7 * 24 * time.Hour,
		CleanupInterval: time.Hour,
		BufferSize:      1000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinSeverity == "" {
		c.MinSeverity = d.MinSeverity
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	return c
}

var severityOrder = map[Severity]int{
	SeverityDebug:   0,
	SeverityInfo:    1,
	SeverityWarning: 2,
	SeverityError:   3,
}

// Logger buffers events and writes them to a Store from its Serve loop.
// A nil *Logger discards every event.
type Logger struct {
	config Config
	store  Store
	events chan *Event
}

// NewLogger creates a logger writing to store.
func NewLogger(store Store, config Config) *Logger {
	config = config.withDefaults()
	return &Logger{
		config: config,
		store:  store,
		events: make(chan *Event, config.BufferSize),
	}
}

// Log queues an event. It never blocks.
func (l *Logger) Log(event *Event) {
	if l == nil {
		return
	}
	if severityOrder[event.Severity] < severityOrder[l.config.MinSeverity] {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case l.events <- event:
	default:
		logging.Warn().Str("event_id", event.ID).Str("type", string(event.Type)).Msg("Audit event buffer full, dropping event")
	}
}

// Serve implements suture.Service. Buffered events are written before it
// returns.
func (l *Logger) Serve(ctx context.Context) error {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.drain()
			return ctx.Err()
		case event := <-l.events:
			l.write(event)
		case <-ticker.C:
			l.cleanup(ctx)
		}
	}
}

func (l *Logger) drain() {
	for {
		select {
		case event := <-l.events:
			l.write(event)
		default:
			return
		}
	}
}

func (l *Logger) write(event *Event) {
	if l.config.LogToStdout {
		if data, err := json.Marshal(event); err == nil {
			logging.Info().RawJSON("event", data).Msg("Audit event")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Save(ctx, event); err != nil {
		logging.Error().Err(err).Str("event_id", event.ID).Msg("Failed to save audit event")
	}
}

func (l *Logger) cleanup(ctx context.Context) {
	if l.config.Retention <= 0 {
		return
	}
	count, err := l.store.Delete(ctx, time.Now().Add(-l.config.Retention))
	if err != nil {
		logging.Error().Err(err).Msg("Audit cleanup error")
	} else if count > 0 {
		logging.Info().Int64("count", count).Msg("Cleaned up old audit events")
	}
}

// Query returns stored events matching filter, newest first.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return l.store.Query(ctx, filter)
}

// String implements fmt.Stringer for supervisor logs.
func (l *Logger) String() string {
	return "audit-logger"
}

// TaskSubmitted records a backup or restore submission.
func (l *Logger) TaskSubmitted(r *http.Request, kind, id, path string) {
	l.Log(&Event{
		Type:        EventTypeTaskSubmitted,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Action:      kind,
		Description: kind + " task submitted",
		Target:      &Target{ID: id, Type: kind, Path: path},
		Source:      SourceFromRequest(r),
		RequestID:   logging.RequestIDFromContext(r.Context()),
	})
}

// TaskStopped records a stop request. A non-nil err means it was refused.
func (l *Logger) TaskStopped(r *http.Request, id string, err error) {
	event := &Event{
		Type:        EventTypeTaskStopped,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Action:      "stop",
		Description: "task stopped",
		Target:      &Target{ID: id, Type: "task"},
		Source:      SourceFromRequest(r),
		RequestID:   logging.RequestIDFromContext(r.Context()),
	}
	if err != nil {
		event.Type = EventTypeTaskStopRefused
		event.Severity = SeverityWarning
		event.Outcome = OutcomeFailure
		event.Description = "stop refused: " + err.Error()
	}
	l.Log(event)
}

// LockChanged records a configuration lock transition. It matches
// configlock.Observer.
func (l *Logger) LockChanged(ev configlock.Event) {
	eventType := EventTypeLockAcquired
	if ev.Type == configlock.EventReleased {
		eventType = EventTypeLockReleased
	}
	l.Log(&Event{
		Timestamp:   ev.At,
		Type:        eventType,
		Severity:    SeverityInfo,
		Outcome:     OutcomeSuccess,
		Action:      string(ev.Type),
		Description: ev.Mode.String() + " lock " + string(ev.Type),
		Target:      &Target{ID: ev.Holder, Type: "task"},
		Metadata:    mustJSON(map[string]string{"mode": ev.Mode.String()}),
	})
}

// SourceFromRequest extracts the client address. RealIP middleware has
// already resolved forwarding headers into RemoteAddr.
func SourceFromRequest(r *http.Request) Source {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return Source{
		IPAddress: ip,
		UserAgent: r.UserAgent(),
	}
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("{}")
	}
	return data
}
