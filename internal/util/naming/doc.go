// Package naming provides name validation and consistent naming functions
// for every object k8tenant creates.
//
// User supplied names follow the DNS-1123 label rules. DNS resolvers get
// the canonical name letsencrypt-{provider}[-{suffix}], and backing
// Kubernetes objects follow {variant}-{name}-{kind} patterns so that they
// can be identified and cleaned up from the entity name alone.
package naming
