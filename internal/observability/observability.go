package observability

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/zap/zapcore"
	ctrlzap "sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Observer defines the interface for structured observability.
type Observer interface {
	// Printf logs a free-form message.
	Printf(format string, v ...interface{})

	// Event emits a structured event.
	Event(event Event)

	// WithFields returns a new Observer with additional context fields.
	WithFields(fields map[string]string) Observer
}

// Event represents a structured lifecycle event.
type Event struct {
	Type      EventType
	Entity    string // "variant/name"
	Resource  string // "Kind/namespace/name"
	Message   string
	Timestamp time.Time
	Fields    map[string]string
}

// EventType represents the type of event.
type EventType string

const (
	EventOperationStarted   EventType = "operation.started"
	EventOperationCompleted EventType = "operation.completed"
	EventOperationFailed    EventType = "operation.failed"

	EventResourceEnsuring     EventType = "resource.ensuring"
	EventResourceEnsured      EventType = "resource.ensured"
	EventResourceDeleted      EventType = "resource.deleted"
	EventResourceDeleteFailed EventType = "resource.delete_failed"

	EventArchiveCreated EventType = "archive.created"
	EventArchiveSkipped EventType = "archive.skipped"

	EventDownstreamPublished    EventType = "downstream.published"
	EventDownstreamReloadFailed EventType = "downstream.reload_failed"

	// EventWarning marks a condition that did not fail the operation.
	EventWarning EventType = "warning"
)

// IsWarning reports whether events of this type are surfaced to the
// operator as warnings.
func (t EventType) IsWarning() bool {
	switch t {
	case EventWarning, EventResourceDeleteFailed, EventArchiveSkipped, EventDownstreamReloadFailed:
		return true
	}
	return false
}

// NewLogger builds the process logger. Verbose switches zap to development
// mode with debug level.
func NewLogger(w io.Writer, verbose bool) logr.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return ctrlzap.New(
		ctrlzap.WriteTo(w),
		ctrlzap.UseDevMode(verbose),
		ctrlzap.Level(level),
	)
}

// LogrObserver implements Observer on top of logr.
type LogrObserver struct {
	log    logr.Logger
	fields map[string]string
}

// NewLogrObserver creates an observer writing to log.
func NewLogrObserver(log logr.Logger) *LogrObserver {
	return &LogrObserver{log: log, fields: map[string]string{}}
}

// Printf logs at debug verbosity.
func (o *LogrObserver) Printf(format string, v ...interface{}) {
	o.log.V(1).Info(fmt.Sprintf(format, v...))
}

// Event logs the event; warnings are logged at info level, everything else at debug.
func (o *LogrObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	kv := []interface{}{"event", string(event.Type)}
	if event.Entity != "" {
		kv = append(kv, "entity", event.Entity)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	fields := mergeFields(o.fields, event.Fields)
	for _, k := range sortedKeys(fields) {
		kv = append(kv, k, fields[k])
	}

	if event.Type.IsWarning() || event.Type == EventOperationFailed {
		o.log.Info(event.Message, kv...)
		return
	}
	o.log.V(1).Info(event.Message, kv...)
}

// WithFields implements Observer.
func (o *LogrObserver) WithFields(fields map[string]string) Observer {
	return &LogrObserver{log: o.log, fields: mergeFields(o.fields, fields)}
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     *sync.Mutex
	events *[]Event
	lines  *[]string
	fields map[string]string
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{mu: &sync.Mutex{}, events: &[]Event{}, lines: &[]string{}, fields: map[string]string{}}
}

// Printf implements Observer.
func (r *Recorder) Printf(format string, v ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.lines = append(*r.lines, fmt.Sprintf(format, v...))
}

// Event implements Observer.
func (r *Recorder) Event(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Fields = mergeFields(r.fields, event.Fields)
	*r.events = append(*r.events, event)
}

// WithFields returns a Recorder sharing the same event log.
func (r *Recorder) WithFields(fields map[string]string) Observer {
	return &Recorder{mu: r.mu, events: r.events, lines: r.lines, fields: mergeFields(r.fields, fields)}
}

// Events returns a copy of all recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), *r.events...)
}

// OfType returns recorded events with the given type.
func (r *Recorder) OfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Warnings returns the messages of all warning events.
func (r *Recorder) Warnings() []string {
	var out []string
	for _, e := range r.Events() {
		if e.Type.IsWarning() {
			out = append(out, e.Message)
		}
	}
	return out
}

// Tee fans events out to several observers.
type Tee []Observer

// Printf implements Observer.
func (t Tee) Printf(format string, v ...interface{}) {
	for _, o := range t {
		o.Printf(format, v...)
	}
}

// Event implements Observer.
func (t Tee) Event(event Event) {
	for _, o := range t {
		o.Event(event)
	}
}

// WithFields implements Observer.
func (t Tee) WithFields(fields map[string]string) Observer {
	out := make(Tee, len(t))
	for i, o := range t {
		out[i] = o.WithFields(fields)
	}
	return out
}

// Discard returns an Observer that drops everything.
func Discard() Observer {
	return NewLogrObserver(logr.Discard())
}

func mergeFields(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
