// Package archive writes forensic snapshots of entities before they are
// mutated or removed.
//
// A bundle is a directory {archiveDir}/{variant}-{name}-{operation}-{timestamp}
// holding bundle.json, metadata.json, credentials.yaml and manifests.yaml.
// Directories are created 0700 and files 0600 because credentials are
// stored in cleartext. Every capture step is best effort: a failing step is
// recorded in bundle.json and logged, and the bundle is still written.
// Bundles are never pruned.
package archive
