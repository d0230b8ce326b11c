package kube

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/imamik/k8tenant/internal/entity"
)

// Classify maps API errors onto the entity taxonomy while keeping the
// original error in the chain. NotFound is returned unchanged because its
// meaning depends on the caller.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case apierrors.IsNotFound(err):
		return err
	case apierrors.IsForbidden(err), apierrors.IsUnauthorized(err):
		return fmt.Errorf("%w: %w", entity.ErrInsufficientPrivilege, err)
	case apierrors.IsConflict(err):
		return fmt.Errorf("%w: %w", entity.ErrConflict, err)
	case isUnavailable(err):
		return fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err)
	default:
		return err
	}
}

func isUnavailable(err error) bool {
	if apierrors.IsServiceUnavailable(err) || apierrors.IsTimeout(err) ||
		apierrors.IsServerTimeout(err) || apierrors.IsTooManyRequests(err) ||
		apierrors.IsInternalError(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
