// Package audit implements the append-only security and operational
// event log (spec §7): a closed category/severity taxonomy, structured
// AuditEvent records, and a non-blocking buffered logger backed by an
// embedded KV store.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Severity ranks an event's importance; Level orders severities for
// min-severity filtering.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Level returns s's numeric rank for comparison against a minimum
// severity filter.
func (s Severity) Level() int { return int(s) }

// Outcome is the result of the audited operation.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Denied
	Unknown
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// EventType is a closed set of event kinds this backup core can emit.
// New kinds must be added here and nowhere else.
type EventType string

const (
	KeyGeneration       EventType = "key_generation"
	KeyRotation         EventType = "key_rotation"
	KeyDeletion         EventType = "key_deletion"
	BackupCreated       EventType = "backup_created"
	BackupRestored      EventType = "backup_restored"
	BackupDeleted       EventType = "backup_deleted"
	FileEncrypted       EventType = "file_encrypted"
	FileDecrypted       EventType = "file_decrypted"
	RateLimitTriggered  EventType = "rate_limit_triggered"
	AccountLockout      EventType = "account_lockout"
	SyncConflict        EventType = "sync_conflict"
	SyncRetryExhausted  EventType = "sync_retry_exhausted"
	ConfigurationChange EventType = "configuration_change"
	ServiceStart        EventType = "service_start"
	ServiceStop         EventType = "service_stop"
	SystemError         EventType = "system_error"
	Custom              EventType = "custom"
)

// category maps each EventType onto one of the taxonomy's buckets,
// used for include/exclude filtering.
func (t EventType) category() string {
	switch t {
	case KeyGeneration, KeyRotation, KeyDeletion:
		return "key_management"
	case BackupCreated, BackupRestored, BackupDeleted, FileEncrypted, FileDecrypted:
		return "data"
	case RateLimitTriggered, AccountLockout, SyncConflict:
		return "security"
	case SyncRetryExhausted:
		return "sync"
	case ConfigurationChange:
		return "configuration"
	case ServiceStart, ServiceStop, SystemError:
		return "system"
	default:
		return "custom"
	}
}

// defaultSeverity is the severity an event carries unless overridden.
func (t EventType) defaultSeverity() Severity {
	switch t {
	case BackupCreated, BackupRestored, FileEncrypted, FileDecrypted, ServiceStart, ServiceStop, Custom:
		return Info
	case KeyRotation, ConfigurationChange, SyncConflict:
		return Warning
	case KeyGeneration, BackupDeleted, RateLimitTriggered, SystemError, SyncRetryExhausted:
		return Error
	case KeyDeletion, AccountLockout:
		return Critical
	default:
		return Info
	}
}

// Actor is who (or what) performed the audited action.
type Actor struct {
	Type string
	ID   string
}

// ServiceActor identifies the backup daemon itself as the actor.
func ServiceActor(name string) Actor { return Actor{Type: "service", ID: name} }

// SystemActor identifies an unattended system-triggered action.
func SystemActor() Actor { return Actor{Type: "system", ID: "skylock"} }

// Event is one audit record.
type Event struct {
	ID        string
	Timestamp time.Time
	Type      EventType
	Severity  Severity
	Outcome   Outcome
	Actor     Actor
	Context   map[string]string
	Error     string
	Duration  time.Duration
}

// New builds an Event with Type's default severity and a fresh ID.
func New(eventType EventType, actor Actor, outcome Outcome) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Severity:  eventType.defaultSeverity(),
		Outcome:   outcome,
		Actor:     actor,
		Context:   make(map[string]string),
	}
}

// WithSeverity overrides the default severity.
func (e Event) WithSeverity(s Severity) Event {
	e.Severity = s
	return e
}

// WithContext attaches one key/value pair of additional context.
func (e Event) WithContext(key, value string) Event {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithError attaches an error message, typically alongside Outcome ==
// Failure.
func (e Event) WithError(msg string) Event {
	e.Error = msg
	return e
}

// Category returns e's filtering bucket.
func (e Event) Category() string { return e.Type.category() }
