// Package keygen generates registry passwords and htpasswd entries.
//
// Passwords are drawn from crypto/rand; htpasswd lines use bcrypt, the only
// hash the Traefik basic-auth middleware and the distribution registry both
// accept.
package keygen
