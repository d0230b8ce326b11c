// Package labels provides consistent labeling for the Kubernetes objects
// k8tenant creates.
//
// Every backing object carries the managing tool, the entity variant and
// the entity name under the k8tenant.io domain prefix, so that objects can
// be found again from the entity alone.
package labels
