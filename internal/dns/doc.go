// Package dns registers ACME DNS resolvers. A resolver binds one provider
// (optionally suffixed) to the credentials Traefik's DNS challenge needs.
// The credentials live in the dns credential store and are mirrored into a
// Secret next to Traefik, which the regenerated Traefik configuration
// references by environment variable name.
package dns
