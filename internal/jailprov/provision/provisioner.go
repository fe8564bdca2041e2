// Package provision sequences the iocage calls that take a jail from
// nothing to a booted container with optional user, sudo, and SSH setup.
package provision

import (
	"context"
	"os"

	"jailprov/internal/jailprov/identity"
	"jailprov/internal/jailprov/iocage"
	"jailprov/internal/jailprov/process"
	"jailprov/pkg/logger"
)

var _ CommandRunner = (*process.Runner)(nil)
var _ IdentityResolver = (*identity.Resolver)(nil)

// Request describes one provisioning run. An empty Username skips the
// sudo/group/user steps; SSH controls the final service enablement step.
type Request struct {
	Jail     iocage.JailSpec
	Username string
	SSH      bool
}

// Provisioner runs the provisioning workflow: a strictly ordered sequence
// of external commands, one child process at a time, aborted at the first
// failure. It holds no state across runs; partially provisioned jails are
// the caller's to clean up.
type Provisioner struct {
	runner   CommandRunner
	resolver IdentityResolver
	builder  *iocage.Builder
	logger   *logger.Logger
}

// New returns a Provisioner using the given collaborators. A nil log falls
// back to the default logger configuration.
func New(runner CommandRunner, resolver IdentityResolver, builder *iocage.Builder, log *logger.Logger) *Provisioner {
	if log == nil {
		log = logger.New()
	}
	return &Provisioner{
		runner:   runner,
		resolver: resolver,
		builder:  builder,
		logger:   log,
	}
}

// EnsureRoot verifies the process runs with root privileges.
func EnsureRoot() error {
	if os.Geteuid() != 0 {
		return ErrNotRoot
	}
	return nil
}

// Provision runs the workflow for req: resolve the requested identity,
// create the jail with its package list, then configure sudo, group, user,
// and the SSH service as requested, in that order. Output lines from every
// child stream into sink as they arrive.
func (p *Provisioner) Provision(ctx context.Context, req Request, sink process.Sink) error {
	var id *identity.Identity
	if req.Username != "" {
		resolved, err := p.resolver.Resolve(req.Username)
		if err != nil {
			return err
		}
		id = resolved
		p.logger.Debug("resolved identity",
			"user", id.Username, "uid", id.UID,
			"group", id.Group, "gid", id.GID, "shell", id.Shell)
	}

	pkglistPath, err := iocage.WritePackageList(id)
	if err != nil {
		return &PkglistError{Err: err}
	}
	defer func() { _ = os.Remove(pkglistPath) }()

	p.logger.Info("creating jail via iocage", "name", req.Jail.Name, "release", req.Jail.Release)
	if err := p.runStep(ctx, StepCreate, p.builder.Create(req.Jail, pkglistPath), sink); err != nil {
		return err
	}

	if id != nil {
		p.logger.Info("configuring passwordless sudo", "jail", req.Jail.Name)
		if err := p.runStep(ctx, StepSudoConfig, p.builder.Exec(req.Jail.Name, sudoConfigScript()), sink); err != nil {
			return err
		}

		p.logger.Info("creating group", "jail", req.Jail.Name, "group", id.Group, "gid", id.GID)
		if err := p.runStep(ctx, StepCreateGroup, p.builder.Exec(req.Jail.Name, createGroupScript(id)), sink); err != nil {
			return err
		}

		p.logger.Info("creating user", "jail", req.Jail.Name, "user", id.Username, "uid", id.UID)
		if err := p.runStep(ctx, StepCreateUser, p.builder.Exec(req.Jail.Name, createUserScript(id)), sink); err != nil {
			return err
		}
	}

	if req.SSH {
		p.logger.Info("enabling ssh service", "jail", req.Jail.Name)
		if err := p.runStep(ctx, StepSSHService, p.builder.Exec(req.Jail.Name, sshServiceScript()), sink); err != nil {
			return err
		}
	}

	p.logger.Debug("provisioning complete", "jail", req.Jail.Name)
	return nil
}

// runStep executes one invocation and attributes any failure, including a
// nonzero exit, to the given step.
func (p *Provisioner) runStep(ctx context.Context, step Step, inv process.Invocation, sink process.Sink) error {
	outcome, err := p.runner.Run(ctx, inv, sink)
	if err != nil {
		return &StepError{Step: step, Err: err}
	}
	if err := outcome.Err(); err != nil {
		return &StepError{Step: step, Err: err}
	}
	return nil
}
