package audit

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/skylock-oss/skylock/internal/errs"
	"github.com/skylock-oss/skylock/internal/logger"
)

// Filter narrows a Query. A zero Filter matches every event (subject
// to Limit).
type Filter struct {
	Categories  []string
	MinSeverity Severity
	ActorID     string
	Limit       int
}

// Storage is the append-only backend a Logger writes events to.
type Storage interface {
	Write(event Event) error
	Query(filter Filter) ([]Event, error)
	Close() error
}

// LoggerConfig tunes filtering and buffering for Logger.
type LoggerConfig struct {
	MinSeverity       Severity
	BufferSize        int
	AlsoLog           bool
	IncludeCategories []string
	ExcludeCategories []string
}

// DefaultLoggerConfig logs everything at Info and above, buffered
// 1000 deep, mirrored to the structured logger.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{MinSeverity: Info, BufferSize: 1000, AlsoLog: true}
}

// SecurityFocusedLoggerConfig restricts output to the security-
// relevant categories.
func SecurityFocusedLoggerConfig() LoggerConfig {
	cfg := DefaultLoggerConfig()
	cfg.IncludeCategories = []string{"key_management", "security", "sync"}
	return cfg
}

// Logger buffers Events and writes them to Storage on a background
// goroutine so callers on the hot path never block on disk I/O.
type Logger struct {
	cfg     LoggerConfig
	storage Storage
	log     logger.Logger
	events  chan Event
	done    chan struct{}
}

// NewLogger starts a Logger's background writer. Call Close to flush
// and stop it.
func NewLogger(cfg LoggerConfig, storage Storage, log logger.Logger) *Logger {
	if log == nil {
		log = logger.Noop()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	l := &Logger{
		cfg:     cfg,
		storage: storage,
		log:     log,
		events:  make(chan Event, cfg.BufferSize),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Logger) run() {
	defer close(l.done)
	for event := range l.events {
		if l.cfg.AlsoLog {
			l.trace(event)
		}
		if err := l.storage.Write(event); err != nil {
			l.log.Error("failed to write audit event", logger.String("event_id", event.ID), logger.Err(err))
		}
	}
}

func (l *Logger) trace(event Event) {
	fields := []logger.Field{
		logger.String("event_id", event.ID),
		logger.String("category", event.Category()),
		logger.String("outcome", event.Outcome.String()),
	}
	switch event.Severity {
	case Warning:
		l.log.Warn(string(event.Type), fields...)
	case Error, Critical:
		l.log.Error(string(event.Type), fields...)
	default:
		l.log.Info(string(event.Type), fields...)
	}
}

func (l *Logger) passesFilter(event Event) bool {
	if event.Severity.Level() < l.cfg.MinSeverity.Level() {
		return false
	}
	category := event.Category()
	if len(l.cfg.IncludeCategories) > 0 && !contains(l.cfg.IncludeCategories, category) {
		return false
	}
	if contains(l.cfg.ExcludeCategories, category) {
		return false
	}
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Log enqueues event for the background writer, blocking if the
// buffer is full.
func (l *Logger) Log(event Event) {
	if !l.passesFilter(event) {
		return
	}
	l.events <- event
}

// LogNonBlocking enqueues event without blocking; if the buffer is
// full the event is dropped and a warning is logged. Use on paths where audit
// logging must never add backpressure.
func (l *Logger) LogNonBlocking(event Event) {
	if !l.passesFilter(event) {
		return
	}
	select {
	case l.events <- event:
	default:
		l.log.Warn("audit buffer full, dropping event", logger.String("event_id", event.ID))
	}
}

// Query delegates to the underlying Storage.
func (l *Logger) Query(filter Filter) ([]Event, error) {
	return l.storage.Query(filter)
}

// Close drains the buffer, stops the background writer, and closes
// the underlying Storage.
func (l *Logger) Close() error {
	close(l.events)
	<-l.done
	return l.storage.Close()
}

// --- pebble-backed storage ----------------------------------------------

// pebbleStorage appends Events to an embedded pebble KV store, keyed
// by timestamp (nanoseconds) then ID so iteration order matches
// occurrence order.
type pebbleStorage struct {
	mu sync.Mutex
	db *pebble.DB
}

// OpenPebbleStorage opens (or creates) a pebble-backed audit log at
// dir.
func OpenPebbleStorage(dir string) (Storage, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "open audit log", err)
	}
	return &pebbleStorage{db: db}, nil
}

type storedEvent struct {
	ID          string            `json:"id"`
	TimestampNS int64             `json:"timestamp_ns"`
	Type        string            `json:"type"`
	Severity    int               `json:"severity"`
	Outcome     int               `json:"outcome"`
	ActorType   string            `json:"actor_type"`
	ActorID     string            `json:"actor_id"`
	Context     map[string]string `json:"context,omitempty"`
	Error       string            `json:"error,omitempty"`
	DurationNS  int64             `json:"duration_ns"`
}

func toStored(e Event) storedEvent {
	return storedEvent{
		ID:          e.ID,
		TimestampNS: e.Timestamp.UnixNano(),
		Type:        string(e.Type),
		Severity:    int(e.Severity),
		Outcome:     int(e.Outcome),
		ActorType:   e.Actor.Type,
		ActorID:     e.Actor.ID,
		Context:     e.Context,
		Error:       e.Error,
		DurationNS:  int64(e.Duration),
	}
}

func (se storedEvent) toEvent() Event {
	return Event{
		ID:       se.ID,
		Type:     EventType(se.Type),
		Severity: Severity(se.Severity),
		Outcome:  Outcome(se.Outcome),
		Actor:    Actor{Type: se.ActorType, ID: se.ActorID},
		Context:  se.Context,
		Error:    se.Error,
	}
}

func (s *pebbleStorage) Write(event Event) error {
	stored := toStored(event)
	data, err := json.Marshal(stored)
	if err != nil {
		return errs.Wrap(errs.IoError, "serialize audit event", err)
	}
	key := []byte(fmt.Sprintf("%020d/%s", stored.TimestampNS, stored.ID))

	s.mu.Lock()
	defer s.mu.Unlock()
	return errs.Wrap(errs.IoError, "write audit event", s.db.Set(key, data, pebble.Sync))
}

func (s *pebbleStorage) Query(filter Filter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "iterate audit log", err)
	}
	defer iter.Close()

	var out []Event
	for iter.First(); iter.Valid(); iter.Next() {
		var se storedEvent
		if err := json.Unmarshal(iter.Value(), &se); err != nil {
			continue
		}
		event := se.toEvent()
		if Severity(se.Severity).Level() < filter.MinSeverity.Level() {
			continue
		}
		if len(filter.Categories) > 0 && !contains(filter.Categories, event.Category()) {
			continue
		}
		if filter.ActorID != "" && event.Actor.ID != filter.ActorID {
			continue
		}
		out = append(out, event)
	}

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[len(out)-filter.Limit:]
	}
	return out, nil
}

func (s *pebbleStorage) Close() error {
	return s.db.Close()
}
