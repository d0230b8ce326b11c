// Package async runs independent operations concurrently.
//
// [Collect] fans out a bounded number of named tasks and returns every
// task's error keyed by name. It backs the health probes run while listing
// entities, where one slow or failing probe must not hide the others.
package async
