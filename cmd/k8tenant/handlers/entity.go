package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/imamik/k8tenant/internal/dns"
	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/lifecycle"
	"github.com/imamik/k8tenant/internal/registry"
	"github.com/imamik/k8tenant/internal/ui/prompt"
	"github.com/imamik/k8tenant/internal/ui/render"
	"github.com/imamik/k8tenant/internal/util/naming"
)

// CreateOptions carries the create flags.
type CreateOptions struct {
	NonInteractive bool

	// DNS resolvers.
	Suffix string
	Email  string

	// Registries; empty values fall back to REGISTRY_* variables.
	Domain       string
	Username     string
	CertResolver string
	SkipTLS      bool
}

// DeleteOptions carries the delete flags.
type DeleteOptions struct {
	Force      bool
	NoArchive  bool
	KeepRecord bool
}

// UpdateOptions carries the update flags.
type UpdateOptions struct {
	RotateToken    bool
	NonInteractive bool
}

// ListOptions carries the list flags.
type ListOptions struct {
	Format string
	Status string
}

func withRuntime(ctx context.Context, g *Globals, fn func(rt *runtime) error) error {
	rt, err := newRuntime(ctx, g)
	if err != nil {
		return err
	}
	defer rt.finish()
	return fn(rt)
}

// Create handles "<variant> add".
func Create(ctx context.Context, g *Globals, variant entity.Variant, name string, opts CreateOptions) error {
	return withRuntime(ctx, g, func(rt *runtime) error {
		set, err := rt.entities(variant, !opts.NonInteractive)
		if err != nil {
			return err
		}
		spec, err := rt.createSpec(ctx, set, variant, name, opts)
		if err != nil {
			return err
		}

		out, err := set.ctrl.Create(ctx, spec)
		if err != nil {
			var stepErr *entity.StepError
			if errors.As(err, &stepErr) {
				render.StepFailure(g.out(), stepErr)
			}
			return err
		}
		render.Outcome(g.out(), "created", variant, spec.Name, out)
		if variant == entity.VariantRegistry {
			fmt.Fprintf(g.out(), "  password: %s\n", out.Credentials[registry.KeyPassword])
		}
		return nil
	})
}

// createSpec gathers the inputs of a create from flags, environment and,
// when allowed, the terminal. Resolver credentials are only collected once
// the name is known to be free.
func (rt *runtime) createSpec(ctx context.Context, set *entitySet, variant entity.Variant, name string, opts CreateOptions) (*lifecycle.Spec, error) {
	spec := &lifecycle.Spec{Name: name, Params: map[string]string{}}

	switch variant {
	case entity.VariantDNS:
		provider, suffix, err := naming.ParseResolverName(name)
		if err != nil {
			return nil, err
		}
		if opts.Suffix != "" {
			suffix = opts.Suffix
		}
		spec.Name, err = naming.ResolverName(string(provider), suffix)
		if err != nil {
			return nil, err
		}
		spec.Params[dns.ParamProvider] = string(provider)
		spec.Params[dns.ParamSuffix] = suffix
		spec.Params[dns.ParamEmail] = opts.Email

		existing, err := set.meta.Get(ctx, spec.Name)
		switch {
		case err == nil && existing.IsActive():
			return nil, fmt.Errorf("%w: %s %q", entity.ErrAlreadyExists, variant, spec.Name)
		case err != nil && !errors.Is(err, entity.ErrNotFound):
			return nil, err
		}

		creds, err := rt.providerCredentials(ctx, provider, opts.NonInteractive)
		if err != nil {
			return nil, err
		}
		spec.Inputs = creds

	case entity.VariantRegistry:
		spec.Params[registry.ParamDomain] = flagOrEnv(opts.Domain, registry.EnvDomain)
		spec.Params[registry.ParamUsername] = flagOrEnv(opts.Username, registry.EnvUsername)
		spec.Params[registry.ParamCertResolver] = flagOrEnv(opts.CertResolver, registry.EnvCertResolver)
		if opts.SkipTLS {
			spec.Params[registry.ParamSkipTLS] = "true"
		} else {
			spec.Params[registry.ParamSkipTLS] = flagOrEnv("", registry.EnvSkipTLS)
		}
	}
	return spec, nil
}

// providerCredentials selects the provider variables from the environment
// and prompts for the rest unless nonInteractive is set.
func (rt *runtime) providerCredentials(ctx context.Context, provider naming.Provider, nonInteractive bool) (lifecycle.Credentials, error) {
	ps, err := dns.SpecFor(provider)
	if err != nil {
		return nil, err
	}
	lookup := prompt.Lookup(lookupEnv)
	var promptErr error
	if !nonInteractive {
		lookup = prompt.WithFallback(ctx, lookup, newPrompter(true), func(key string) string {
			return fmt.Sprintf("%s credential (or set %s)", provider, key)
		}, &promptErr)
	}
	creds, err := ps.Select(lookup)
	if promptErr != nil {
		return nil, promptErr
	}
	return creds, err
}

func flagOrEnv(flag, key string) string {
	if flag != "" {
		return flag
	}
	v, _ := lookupEnv(key)
	return v
}

// Delete handles "<variant> remove".
func Delete(ctx context.Context, g *Globals, variant entity.Variant, name string, opts DeleteOptions) error {
	return withRuntime(ctx, g, func(rt *runtime) error {
		set, err := rt.entities(variant, !opts.Force)
		if err != nil {
			return err
		}
		out, err := set.ctrl.Delete(ctx, name, lifecycle.DeleteOptions{
			Archive:    !opts.NoArchive,
			Force:      opts.Force,
			KeepRecord: opts.KeepRecord,
		})
		if err != nil {
			return err
		}
		verb := "removed"
		if opts.KeepRecord {
			verb = "archived"
		}
		render.Outcome(g.out(), verb, variant, name, out)
		return nil
	})
}

// Update handles "<variant> update".
func Update(ctx context.Context, g *Globals, variant entity.Variant, name string, opts UpdateOptions) error {
	return withRuntime(ctx, g, func(rt *runtime) error {
		set, err := rt.entities(variant, !opts.NonInteractive)
		if err != nil {
			return err
		}

		m := lifecycle.Mutation{RotateToken: opts.RotateToken}
		if variant == entity.VariantDNS {
			rec, err := set.meta.Get(ctx, name)
			if err != nil {
				return err
			}
			if rec.DNS == nil {
				return fmt.Errorf("%w: resolver %q has no provider", entity.ErrStoreUnavailable, name)
			}
			m.Inputs, err = rt.providerCredentials(ctx, naming.Provider(rec.DNS.Provider), opts.NonInteractive)
			if err != nil {
				return err
			}
		}

		out, err := set.ctrl.Update(ctx, name, m)
		if err != nil {
			if out != nil {
				render.Warnings(g.out(), out.Warnings)
			}
			return err
		}
		render.Outcome(g.out(), "updated", variant, name, out)
		if variant == entity.VariantRegistry && opts.RotateToken {
			fmt.Fprintf(g.out(), "  password: %s\n", out.Credentials[registry.KeyPassword])
		}
		return nil
	})
}

// List handles "<variant> list".
func List(ctx context.Context, g *Globals, variant entity.Variant, opts ListOptions) error {
	format, err := render.ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	var filter entity.Status
	if opts.Status != "" {
		if filter, err = entity.ParseStatus(opts.Status); err != nil {
			return err
		}
	}
	return withRuntime(ctx, g, func(rt *runtime) error {
		set, err := rt.entities(variant, false)
		if err != nil {
			return err
		}
		entries, err := set.ctrl.List(ctx, filter)
		if err != nil {
			return err
		}
		if format == render.FormatJSON {
			if entries == nil {
				entries = []lifecycle.Entry{}
			}
			return render.JSON(g.out(), entries)
		}
		render.List(g.out(), variant, entries)
		return nil
	})
}

// errCheckFailed is returned when at least one entity failed its check.
var errCheckFailed = errors.New("credential check failed")

// Check handles "<variant> check [name]".
func Check(ctx context.Context, g *Globals, variant entity.Variant, name string) error {
	return withRuntime(ctx, g, func(rt *runtime) error {
		set, err := rt.entities(variant, false)
		if err != nil {
			return err
		}
		results, err := set.ctrl.Check(ctx, name)
		if err != nil {
			return err
		}
		render.Check(g.out(), variant, results)

		failed := 0
		var first error
		for _, r := range results {
			if !r.OK {
				failed++
				if first == nil {
					first = r.Err
				}
			}
		}
		if failed > 0 {
			return fmt.Errorf("%w: %d of %d: %w", errCheckFailed, failed, len(results), first)
		}
		return nil
	})
}

// Archives handles "archives [variant]".
func Archives(ctx context.Context, g *Globals, variant string, format string) error {
	format, err := render.ParseFormat(format)
	if err != nil {
		return err
	}
	var v entity.Variant
	if variant != "" {
		if v, err = entity.ParseVariant(variant); err != nil {
			return err
		}
	}
	return withRuntime(ctx, g, func(rt *runtime) error {
		bundles, err := rt.archives.List(v)
		if err != nil {
			return err
		}
		if format == render.FormatJSON {
			return render.JSON(g.out(), bundles)
		}
		render.Archives(g.out(), bundles)
		return nil
	})
}
