// Package lifecycle implements create, update, delete, list and check for
// every entity variant. Variant specifics are injected through a Strategy:
// ordered ensure steps, a derived credential, teardown steps and a live
// probe. The Controller owns the ordering rules shared by all variants:
// validation before any store access, archiving before mutation, and
// best-effort cleanup on delete.
package lifecycle
