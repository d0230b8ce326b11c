// Package handlers implements the business logic for CLI commands.
//
// Each handler wires configuration, the cluster client, stores and the
// variant strategy together, runs one lifecycle operation and renders the
// result. Constructors are package variables so tests can swap in fakes.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/imamik/k8tenant/internal/archive"
	"github.com/imamik/k8tenant/internal/config"
	"github.com/imamik/k8tenant/internal/kube"
	"github.com/imamik/k8tenant/internal/metrics"
	"github.com/imamik/k8tenant/internal/observability"
	"github.com/imamik/k8tenant/internal/store"
	"github.com/imamik/k8tenant/internal/ui/prompt"
)

// Globals holds the persistent root flags.
type Globals struct {
	ConfigPath string
	Kubeconfig string
	EnvFile    string
	Verbose    bool

	// Out receives command output; nil means stdout.
	Out io.Writer
	// Err receives logs; nil means stderr.
	Err io.Writer
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Globals) errOut() io.Writer {
	if g.Err == nil {
		return os.Stderr
	}
	return g.Err
}

// Factory function variables - can be replaced in tests.
var (
	// loadConfig resolves the configuration file.
	loadConfig = config.Resolve

	// loadEnvFile loads a dotenv file into the environment.
	loadEnvFile = config.LoadEnvFile

	// newKubeClient connects to the cluster.
	newKubeClient = kube.New

	// newS3Mirror connects the archive mirror bucket.
	newS3Mirror = func(ctx context.Context, cfg config.S3Config) (archive.Mirror, error) {
		return archive.NewS3Mirror(ctx, cfg)
	}

	// newPrompter selects the terminal prompter.
	newPrompter = prompt.New

	// lookupEnv reads credential variables.
	lookupEnv = os.LookupEnv
)

// runtime is everything one command needs.
type runtime struct {
	g        *Globals
	cfg      *config.Config
	k        *kube.Client
	observer observability.Observer
	metrics  *metrics.Recorder
	archives *archive.Manager
	identity string
}

// toolVersion is stamped into metadata records and archive bundles.
var toolVersion = "dev"

// SetToolVersion sets the version recorded by every write.
func SetToolVersion(v string) {
	toolVersion = v
}

func newRuntime(ctx context.Context, g *Globals) (*runtime, error) {
	if err := loadEnvFile(g.EnvFile); err != nil {
		return nil, err
	}
	cfg, err := loadConfig(g.ConfigPath)
	if err != nil {
		return nil, err
	}
	if g.Kubeconfig != "" {
		cfg.Kubeconfig = g.Kubeconfig
	}

	k, err := newKubeClient(cfg.Kubeconfig)
	if err != nil {
		return nil, err
	}

	observer := observability.Observer(observability.NewLogrObserver(observability.NewLogger(g.errOut(), g.Verbose)))
	recorder := metrics.NewRecorder()

	archiveOpts := []archive.Option{
		archive.WithObserver(observer),
		archive.WithMetrics(recorder),
		archive.WithToolVersion(toolVersion),
	}
	if cfg.Archive.S3.Enabled() {
		mirror, err := newS3Mirror(ctx, cfg.Archive.S3)
		if err != nil {
			return nil, fmt.Errorf("failed to set up archive mirror: %w", err)
		}
		archiveOpts = append(archiveOpts, archive.WithMirror(mirror))
	}

	return &runtime{
		g:        g,
		cfg:      cfg,
		k:        k,
		observer: observer,
		metrics:  recorder,
		archives: archive.NewManager(cfg.ArchiveDir, archiveOpts...),
		identity: k.WhoAmI(ctx),
	}, nil
}

func (rt *runtime) poll() kube.Poll {
	return kube.Poll{Interval: rt.cfg.Wait.Interval, Attempts: rt.cfg.Wait.Attempts}
}

func (rt *runtime) storeOptions() store.Options {
	return store.Options{
		Concurrency:        store.Concurrency(rt.cfg.Store.Concurrency),
		MaxConflictRetries: rt.cfg.Store.MaxConflictRetries,
		Metrics:            rt.metrics,
	}
}

// finish exports metrics when a textfile is configured. Export failures
// are logged and never change the command result.
func (rt *runtime) finish() {
	if rt.cfg.Metrics.Textfile == "" {
		return
	}
	if err := rt.metrics.WriteTextfile(rt.cfg.Metrics.Textfile); err != nil {
		observability.LogWarning(rt.observer, "", "failed to export metrics: %v", err)
	}
}
