// Package entity defines the managed entity model shared by every variant
// (tenants, admin deployers, DNS resolvers, registry credentials) and the
// error taxonomy used across the lifecycle.
package entity
