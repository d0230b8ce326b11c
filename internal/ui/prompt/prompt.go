// Package prompt asks the operator for confirmations and credential values.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"

	"github.com/imamik/k8tenant/internal/entity"
)

// Prompter asks questions on the terminal.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
	Secret(ctx context.Context, key, description string) (string, error)
}

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return isTerminal(os.Stdin.Fd()) && isTerminal(os.Stdout.Fd())
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Terminal prompts with huh forms.
type Terminal struct{}

// Confirm asks a yes/no question defaulting to no.
func (Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return ok, nil
}

// Secret reads a value with echo disabled. An empty answer is allowed.
func (Terminal) Secret(ctx context.Context, key, description string) (string, error) {
	var value string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(key).
				Description(description).
				EchoMode(huh.EchoModePassword).
				Value(&value),
		),
	).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return "", fmt.Errorf("%w: input aborted", entity.ErrDeclined)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// NonInteractive answers without a terminal: confirmations are refused
// and secrets are never available.
type NonInteractive struct{}

// Confirm implements Prompter.
func (NonInteractive) Confirm(context.Context, string) (bool, error) {
	return false, fmt.Errorf("%w: confirmation needs a terminal, pass --force", entity.ErrDeclined)
}

// Secret implements Prompter.
func (NonInteractive) Secret(_ context.Context, key, _ string) (string, error) {
	return "", nil
}

// New returns a Terminal prompter when interactive is set and a terminal is
// attached, otherwise NonInteractive.
func New(interactive bool) Prompter {
	if interactive && IsInteractive() {
		return Terminal{}
	}
	return NonInteractive{}
}

// Lookup resolves a credential value by environment variable name.
type Lookup func(key string) (string, bool)

// Env looks values up in the process environment.
func Env() Lookup {
	return os.LookupEnv
}

// WithFallback returns a Lookup that consults base first and asks p for
// anything still unset. Answers are remembered so each key is asked once.
// Prompt errors are reported through errp.
func WithFallback(ctx context.Context, base Lookup, p Prompter, describe func(key string) string, errp *error) Lookup {
	asked := map[string]string{}
	return func(key string) (string, bool) {
		if v, ok := base(key); ok && v != "" {
			return v, true
		}
		if v, ok := asked[key]; ok {
			return v, v != ""
		}
		if *errp != nil {
			return "", false
		}
		description := ""
		if describe != nil {
			description = describe(key)
		}
		v, err := p.Secret(ctx, key, description)
		if err != nil {
			*errp = err
			return "", false
		}
		asked[key] = v
		return v, v != ""
	}
}
