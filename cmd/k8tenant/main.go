// Package main is the entry point for the k8tenant CLI.
//
// k8tenant manages the entities that make a single k3s node multi-tenant:
// tenant accounts, admin deployers, DNS resolver credentials feeding
// Traefik, and private registry credentials. Every change is archived
// before it is applied.
//
// For detailed usage information, run:
//
//	k8tenant --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/k8tenant/cmd/k8tenant/commands"
	"github.com/imamik/k8tenant/internal/entity"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s: %v\n", entity.Category(err), err)
		return entity.ExitCode(err)
	}
	return entity.ExitOK
}
