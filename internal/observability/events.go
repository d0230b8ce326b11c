package observability

import (
	"fmt"
	"time"
)

// Helper functions for common events

// LogOperationStart logs the start of a lifecycle operation.
func LogOperationStart(o Observer, entity, operation string) {
	o.Event(Event{
		Type:    EventOperationStarted,
		Entity:  entity,
		Message: operation + " started",
		Fields:  map[string]string{"operation": operation},
	})
}

// LogOperationComplete logs a successful lifecycle operation.
func LogOperationComplete(o Observer, entity, operation string, duration time.Duration) {
	o.Event(Event{
		Type:    EventOperationCompleted,
		Entity:  entity,
		Message: fmt.Sprintf("%s completed in %v", operation, duration.Round(time.Millisecond)),
		Fields:  map[string]string{"operation": operation},
	})
}

// LogOperationFailed logs a failed lifecycle operation.
func LogOperationFailed(o Observer, entity, operation string, err error) {
	o.Event(Event{
		Type:    EventOperationFailed,
		Entity:  entity,
		Message: fmt.Sprintf("%s failed: %v", operation, err),
		Fields:  map[string]string{"operation": operation},
	})
}

// LogResourceEnsuring logs the start of an ensure step.
func LogResourceEnsuring(o Observer, entity, step, resource string) {
	o.Event(Event{
		Type:     EventResourceEnsuring,
		Entity:   entity,
		Resource: resource,
		Message:  "ensuring " + step,
		Fields:   map[string]string{"step": step},
	})
}

// LogResourceEnsured logs a completed ensure step.
func LogResourceEnsured(o Observer, entity, step, resource, result string) {
	o.Event(Event{
		Type:     EventResourceEnsured,
		Entity:   entity,
		Resource: resource,
		Message:  fmt.Sprintf("%s %s", step, result),
		Fields:   map[string]string{"step": step, "result": result},
	})
}

// LogResourceDeleted logs a removed backing resource.
func LogResourceDeleted(o Observer, entity, resource string) {
	o.Event(Event{
		Type:     EventResourceDeleted,
		Entity:   entity,
		Resource: resource,
		Message:  resource + " deleted",
	})
}

// LogResourceDeleteFailed logs a removal failure that did not stop cleanup.
func LogResourceDeleteFailed(o Observer, entity, resource string, err error) {
	o.Event(Event{
		Type:     EventResourceDeleteFailed,
		Entity:   entity,
		Resource: resource,
		Message:  fmt.Sprintf("failed to delete %s: %v", resource, err),
	})
}

// LogWarning logs a non-fatal condition.
func LogWarning(o Observer, entity, format string, v ...interface{}) {
	o.Event(Event{
		Type:    EventWarning,
		Entity:  entity,
		Message: fmt.Sprintf(format, v...),
	})
}
