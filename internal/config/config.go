package config

import "time"

// Store concurrency modes.
const (
	// ConcurrencyLastWriteWins rewrites whole documents without a version check.
	ConcurrencyLastWriteWins = "last-write-wins"
	// ConcurrencyCompareAndSwap writes with the document's resourceVersion and
	// retries on conflict.
	ConcurrencyCompareAndSwap = "compare-and-swap"
)

// Default values.
const (
	DefaultNamespace         = "k8tenant-system"
	DefaultRegistryAuthFile  = "/etc/rancher/k3s/registries.yaml"
	DefaultRegistryNamespace = "registry"
)

// Config is the full runtime configuration.
type Config struct {
	// Namespace holds the metadata and credential stores.
	Namespace string `yaml:"namespace"`

	// StateDir receives generated kubeconfigs and access files.
	StateDir string `yaml:"stateDir"`

	// ArchiveDir receives archive bundles.
	ArchiveDir string `yaml:"archiveDir"`

	// Kubeconfig used by the CLI itself. Empty means in-cluster or KUBECONFIG.
	Kubeconfig string `yaml:"kubeconfig,omitempty"`

	// ClusterServer is written into generated kubeconfigs. Empty falls back
	// to the server of the CLI's own kubeconfig.
	ClusterServer string `yaml:"clusterServer,omitempty"`

	Store    StoreConfig    `yaml:"store"`
	Wait     WaitConfig     `yaml:"wait"`
	Traefik  TraefikConfig  `yaml:"traefik"`
	ACME     ACMEConfig     `yaml:"acme"`
	Registry RegistryConfig `yaml:"registry"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// StoreConfig controls document writes.
type StoreConfig struct {
	Concurrency        string `yaml:"concurrency"`
	MaxConflictRetries int    `yaml:"maxConflictRetries"`
}

// WaitConfig bounds every polling loop.
type WaitConfig struct {
	Interval time.Duration `yaml:"interval"`
	Attempts int           `yaml:"attempts"`
}

// Timeout is the worst-case duration of one polling loop.
func (w WaitConfig) Timeout() time.Duration {
	return w.Interval * time.Duration(w.Attempts)
}

// TraefikConfig locates the ingress controller managed by k3s.
type TraefikConfig struct {
	Namespace       string `yaml:"namespace"`
	Deployment      string `yaml:"deployment"`
	HelmChartConfig string `yaml:"helmChartConfig"`
	ACMEStorage     string `yaml:"acmeStorage"`
	// SkipRestart publishes the configuration without restarting Traefik.
	SkipRestart bool `yaml:"skipRestart,omitempty"`
}

// ACMEConfig holds certificate resolver defaults.
type ACMEConfig struct {
	Email   string `yaml:"email,omitempty"`
	Staging bool   `yaml:"staging,omitempty"`
}

// CAServer returns the ACME directory URL.
func (a ACMEConfig) CAServer() string {
	if a.Staging {
		return "https://acme-staging-v02.api.letsencrypt.org/directory"
	}
	return "https://acme-v02.api.letsencrypt.org/directory"
}

// RegistryConfig locates the private registry.
type RegistryConfig struct {
	Namespace string `yaml:"namespace"`
	Service   string `yaml:"service"`
	Port      int    `yaml:"port"`
	AuthFile  string `yaml:"authFile"`
}

// ArchiveConfig configures the optional archive mirror.
type ArchiveConfig struct {
	S3 S3Config `yaml:"s3,omitempty"`
}

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	AccessKey string `yaml:"accessKey,omitempty"`
	SecretKey string `yaml:"secretKey,omitempty"`
}

// Enabled reports whether a bucket is configured.
func (s S3Config) Enabled() bool {
	return s.Bucket != ""
}

// MetricsConfig configures metrics export.
type MetricsConfig struct {
	// Textfile, when set, receives a Prometheus text exposition after every
	// command, for node_exporter's textfile collector.
	Textfile string `yaml:"textfile,omitempty"`
}

// Default returns a configuration with every field populated.
func Default() *Config {
	return &Config{
		Namespace:  DefaultNamespace,
		StateDir:   "/var/lib/k8tenant",
		ArchiveDir: "/var/lib/k8tenant/archive",
		Store: StoreConfig{
			Concurrency:        ConcurrencyLastWriteWins,
			MaxConflictRetries: 5,
		},
		Wait: WaitConfig{
			Interval: 2 * time.Second,
			Attempts: 30,
		},
		Traefik: TraefikConfig{
			Namespace:       "kube-system",
			Deployment:      "traefik",
			HelmChartConfig: "traefik",
			ACMEStorage:     "/data/acme.json",
		},
		Registry: RegistryConfig{
			Namespace: DefaultRegistryNamespace,
			Service:   "registry",
			Port:      5000,
			AuthFile:  DefaultRegistryAuthFile,
		},
	}
}
