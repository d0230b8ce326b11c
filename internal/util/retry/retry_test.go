package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errConflict = errors.New("conflict")

func isConflict(err error) bool { return errors.Is(err, errConflict) }

func fast() Option { return WithInitialDelay(time.Millisecond) }

func TestOnError_Success(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := OnError(context.Background(), isConflict, func(context.Context) error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestOnError_SucceedsAfterConflicts(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := OnError(context.Background(), isConflict, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errConflict
		}
		return nil
	}, fast())

	if err != nil {
		t.Errorf("Expected no error after retries, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestOnError_ExhaustedReturnsLastError(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := OnError(context.Background(), isConflict, func(context.Context) error {
		attempts++
		return errConflict
	}, fast(), WithMaxAttempts(4))

	if !errors.Is(err, errConflict) {
		t.Errorf("Expected conflict error, got: %v", err)
	}
	if attempts != 4 {
		t.Errorf("Expected 4 attempts, got: %d", attempts)
	}
}

func TestOnError_NonRetryableStopsImmediately(t *testing.T) {
	t.Parallel()
	other := errors.New("forbidden")
	attempts := 0
	err := OnError(context.Background(), isConflict, func(context.Context) error {
		attempts++
		return other
	}, fast())

	if !errors.Is(err, other) {
		t.Errorf("Expected forbidden error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestOnError_PermanentStopsAndUnwraps(t *testing.T) {
	t.Parallel()
	attempts := 0
	err := OnError(context.Background(), nil, func(context.Context) error {
		attempts++
		return Permanent(errConflict)
	}, fast())

	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
	if IsPermanent(err) {
		t.Errorf("Expected permanent wrapper to be removed")
	}
	if !errors.Is(err, errConflict) {
		t.Errorf("Expected conflict error, got: %v", err)
	}
}

func TestOnError_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := OnError(ctx, isConflict, func(context.Context) error {
		attempts++
		cancel()
		return errConflict
	}, WithInitialDelay(time.Second))

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestPermanent_Nil(t *testing.T) {
	t.Parallel()
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
