// Package store persists entity metadata and credentials as whole
// documents in the cluster.
//
// Each variant owns one ConfigMap (metadata, a JSON map keyed by entity
// name) and one Secret (credentials, keys "{entity}.{key}"). Every change
// is a read-modify-write of the entire document through [DocumentStore].
//
// Two write modes exist. [LastWriteWins] replaces the document without a
// version check, so concurrent writers can silently lose updates.
// [CompareAndSwap] sends the resourceVersion that was read and retries the
// whole read-modify-write on conflict, failing with entity.ErrConflict once
// the retry budget is spent.
package store
