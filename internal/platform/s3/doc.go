// Package s3 provides a small client for S3-compatible object storage.
//
// It is used to mirror archive bundles off the node. Static credentials are
// used when configured; otherwise the default AWS credential chain applies.
package s3
