package config

import (
	"errors"
	"fmt"
	"net/mail"
	"path/filepath"

	"github.com/imamik/k8tenant/internal/util/naming"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := naming.ValidateName(c.Namespace); err != nil {
		errs = append(errs, fmt.Errorf("namespace: %w", err))
	}
	if c.StateDir == "" || !filepath.IsAbs(c.StateDir) {
		errs = append(errs, fmt.Errorf("stateDir must be an absolute path, got %q", c.StateDir))
	}
	if c.ArchiveDir == "" || !filepath.IsAbs(c.ArchiveDir) {
		errs = append(errs, fmt.Errorf("archiveDir must be an absolute path, got %q", c.ArchiveDir))
	}

	switch c.Store.Concurrency {
	case ConcurrencyLastWriteWins, ConcurrencyCompareAndSwap:
	default:
		errs = append(errs, fmt.Errorf("store.concurrency must be %q or %q, got %q",
			ConcurrencyLastWriteWins, ConcurrencyCompareAndSwap, c.Store.Concurrency))
	}
	if c.Store.MaxConflictRetries < 1 {
		errs = append(errs, fmt.Errorf("store.maxConflictRetries must be at least 1"))
	}

	if c.Wait.Interval <= 0 {
		errs = append(errs, fmt.Errorf("wait.interval must be positive"))
	}
	if c.Wait.Attempts < 1 {
		errs = append(errs, fmt.Errorf("wait.attempts must be at least 1"))
	}

	if c.Traefik.Namespace == "" || c.Traefik.Deployment == "" || c.Traefik.HelmChartConfig == "" {
		errs = append(errs, fmt.Errorf("traefik.namespace, traefik.deployment and traefik.helmChartConfig are required"))
	}

	if c.ACME.Email != "" {
		if _, err := mail.ParseAddress(c.ACME.Email); err != nil {
			errs = append(errs, fmt.Errorf("acme.email %q is not a valid address", c.ACME.Email))
		}
	}

	if c.Registry.AuthFile != "" && !filepath.IsAbs(c.Registry.AuthFile) {
		errs = append(errs, fmt.Errorf("registry.authFile must be an absolute path, got %q", c.Registry.AuthFile))
	}

	if s3 := c.Archive.S3; s3.Enabled() && (s3.AccessKey == "") != (s3.SecretKey == "") {
		errs = append(errs, fmt.Errorf("archive.s3.accessKey and archive.s3.secretKey must be set together"))
	}

	return errors.Join(errs...)
}
