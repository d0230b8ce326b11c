// Package registry manages credential sets of the private image registry.
//
// Each registry entity owns an htpasswd Secret read by the registry
// deployment and an Ingress routed through Traefik. The k3s registries.yaml
// auth file is rebuilt from all registry entities after every change.
package registry
