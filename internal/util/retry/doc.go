// Package retry provides bounded retry logic for operations that may lose a
// race against a concurrent writer.
//
// [OnError] retries only the errors its predicate accepts, up to a fixed
// number of attempts, with exponentially increasing delays. Errors wrapped
// with [Permanent] stop the loop immediately.
package retry
