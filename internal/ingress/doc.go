// Package ingress regenerates the Traefik configuration of a k3s cluster
// from the set of registered DNS resolvers.
//
// k3s deploys Traefik from a bundled HelmChart; overrides are published as a
// HelmChartConfig whose valuesContent is merged over the chart defaults. The
// Regenerator rebuilds that document wholesale after every resolver change,
// then restarts Traefik so the new certificate resolvers take effect.
package ingress
