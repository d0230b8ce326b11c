package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/imamik/k8tenant/internal/entity"
	"github.com/imamik/k8tenant/internal/util/async"
	"github.com/imamik/k8tenant/internal/util/naming"
)

// RefChecker reports whether a backing object exists. Strategies that own
// cluster objects implement it so List can report health.
type RefChecker interface {
	ExistsRef(ctx context.Context, ref entity.ResourceRef) (bool, error)
}

// Entry is one List result.
type Entry struct {
	Record *entity.Record `json:"record"`
	Health entity.Health  `json:"health,omitempty"`
	// Missing names absent credential keys and backing objects.
	Missing []string `json:"missing,omitempty"`
}

// List returns records whose status matches filter ("" matches all), sorted
// by name. Active records get a health from live existence checks; missing
// resources never make List fail.
func (c *Controller) List(ctx context.Context, filter entity.Status) ([]Entry, error) {
	var entries []Entry
	err := c.track("*", OpList, func() error {
		records, err := c.meta.List(ctx)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if filter != "" && rec.Status != filter {
				continue
			}
			entries = append(entries, Entry{Record: rec})
		}
		c.fillHealth(ctx, entries)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Controller) fillHealth(ctx context.Context, entries []Entry) {
	checker, _ := c.strategy.(RefChecker)

	tasks := make([]async.Task, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if !e.Record.IsActive() {
			continue
		}
		tasks = append(tasks, async.Task{
			Name: e.Record.Name,
			Func: func(ctx context.Context) error {
				missing, err := c.missing(ctx, e.Record, checker)
				e.Missing = missing
				return err
			},
		})
	}

	byHealth := map[string]int{}
	results := async.Collect(ctx, tasks, c.probeLimit)
	for i := range entries {
		e := &entries[i]
		if !e.Record.IsActive() {
			continue
		}
		switch {
		case results[e.Record.Name] != nil:
			e.Health = entity.HealthUnknown
		case len(e.Missing) > 0:
			e.Health = entity.HealthDegraded
		default:
			e.Health = entity.HealthOK
		}
		byHealth[string(e.Health)]++
	}
	c.metrics.RecordEntities(string(c.strategy.Variant()), byHealth)
}

func (c *Controller) missing(ctx context.Context, rec *entity.Record, checker RefChecker) ([]string, error) {
	keys, err := c.creds.Missing(ctx, c.credentialKeys(rec.Name, rec.CredentialKeys))
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, k := range keys {
		missing = append(missing, "credential "+strings.TrimPrefix(k, rec.Name+"."))
	}
	if checker == nil {
		return missing, nil
	}
	for _, ref := range rec.ResourceRefs {
		ok, err := checker.ExistsRef(ctx, ref)
		if err != nil {
			return missing, err
		}
		if !ok {
			missing = append(missing, ref.String())
		}
	}
	return missing, nil
}

// CheckResult is the verdict for one entity.
type CheckResult struct {
	Name string `json:"name"`
	OK   bool   `json:"ok"`
	// Err is nil when OK.
	Err error `json:"-"`
	// Message is Err rendered for output.
	Message string `json:"message,omitempty"`
}

// Check verifies that the declared credentials of name (all active
// entities when name is empty) exist and pass the strategy probe. It never
// mutates state. The returned error covers lookup failures only.
func (c *Controller) Check(ctx context.Context, name string) ([]CheckResult, error) {
	var results []CheckResult
	err := c.track(nameOrAll(name), OpCheck, func() error {
		records, err := c.checkTargets(ctx, name)
		if err != nil {
			return err
		}

		tasks := make([]async.Task, len(records))
		for i, rec := range records {
			tasks[i] = async.Task{
				Name: rec.Name,
				Func: func(ctx context.Context) error { return c.checkOne(ctx, rec) },
			}
		}
		errs := async.Collect(ctx, tasks, c.probeLimit)
		for _, rec := range records {
			err := errs[rec.Name]
			c.metrics.RecordProbe(string(c.strategy.Variant()), err)
			r := CheckResult{Name: rec.Name, OK: err == nil, Err: err}
			if err != nil {
				r.Message = err.Error()
			}
			results = append(results, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func nameOrAll(name string) string {
	if name == "" {
		return "*"
	}
	return name
}

func (c *Controller) checkTargets(ctx context.Context, name string) ([]*entity.Record, error) {
	if name != "" {
		if err := naming.ValidateName(name); err != nil {
			return nil, err
		}
		rec, err := c.activeRecord(ctx, name)
		if err != nil {
			return nil, err
		}
		return []*entity.Record{rec}, nil
	}
	all, err := c.meta.List(ctx)
	if err != nil {
		return nil, err
	}
	var active []*entity.Record
	for _, rec := range all {
		if rec.IsActive() {
			active = append(active, rec)
		}
	}
	return active, nil
}

func (c *Controller) checkOne(ctx context.Context, rec *entity.Record) error {
	creds, err := c.loadCredentials(ctx, rec)
	if err != nil {
		return err
	}
	var missing []string
	for _, k := range rec.CredentialKeys {
		if len(creds[k]) == 0 {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", entity.ErrMissingCredential, strings.Join(missing, ", "))
	}
	return c.strategy.Probe(ctx, rec, creds)
}
