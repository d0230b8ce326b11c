// Package kube wraps the Kubernetes API for k8tenant.
//
// [Client] pairs a controller-runtime client (typed objects, create-or-update
// ensures, the fake client in tests) with a client-go clientset (discovery,
// authentication reviews). Every error leaving this package is passed
// through [Classify] so callers can match the entity error taxonomy with
// errors.Is.
package kube
