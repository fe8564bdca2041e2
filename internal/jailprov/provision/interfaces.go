package provision

import (
	"context"

	"jailprov/internal/jailprov/identity"
	"jailprov/internal/jailprov/process"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

//counterfeiter:generate . CommandRunner
type CommandRunner interface {
	// Run executes one external invocation to completion, streaming its
	// output into the sink, and returns the normalized exit verdict.
	Run(ctx context.Context, inv process.Invocation, sink process.Sink) (process.Outcome, error)
}

//counterfeiter:generate . IdentityResolver
type IdentityResolver interface {
	// Resolve looks up a host username and returns the identity to recreate
	// inside the jail.
	Resolve(username string) (*identity.Identity, error)
}
