// Package observability provides structured events and logging for
// lifecycle operations.
//
// [Observer] is the single logging surface used by the controller, the
// stores and the regenerator. [LogrObserver] renders events through a
// logr.Logger (zap underneath); [Recorder] keeps them in memory for tests
// and for the warning summary printed after a command.
package observability
