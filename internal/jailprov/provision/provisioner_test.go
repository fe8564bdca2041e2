package provision_test

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jailprov/internal/jailprov/identity"
	"jailprov/internal/jailprov/iocage"
	"jailprov/internal/jailprov/process"
	"jailprov/internal/jailprov/provision"
	"jailprov/internal/jailprov/provision/provisionfakes"
	"jailprov/pkg/logger"
)

func quietLogger() *logger.Logger {
	return logger.NewWithConfig(logger.Config{Level: logger.ERROR, Output: io.Discard})
}

func discardSink() process.Sink {
	return process.SinkFunc(func(process.Stream, string) {})
}

func ferrisRequest() provision.Request {
	return provision.Request{
		Jail: iocage.JailSpec{
			Name:    "ferris",
			Addr:    "192.168.0.100/24",
			Gateway: "192.168.0.1",
			Release: "13.1-RELEASE",
		},
	}
}

func ferrisIdentity() *identity.Identity {
	return &identity.Identity{
		Username: "ferris",
		UID:      1001,
		Group:    "ferris",
		GID:      1001,
		Shell:    "/usr/local/bin/bash",
	}
}

func newProvisioner(runner *provisionfakes.FakeCommandRunner, resolver *provisionfakes.FakeIdentityResolver) *provision.Provisioner {
	return provision.New(runner, resolver, iocage.NewBuilder(""), quietLogger())
}

// pkglistArg extracts the value following --pkglist from an argument list.
func pkglistArg(args []string) string {
	for i, arg := range args {
		if arg == "--pkglist" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestProvisionMinimalRunsCreateOnly(t *testing.T) {
	runner := &provisionfakes.FakeCommandRunner{}
	resolver := &provisionfakes.FakeIdentityResolver{}

	var pkglistPath, pkglistContent string
	runner.RunCalls(func(ctx context.Context, inv process.Invocation, sink process.Sink) (process.Outcome, error) {
		// The package list must exist for the duration of the create call.
		pkglistPath = pkglistArg(inv.Args)
		if data, err := os.ReadFile(pkglistPath); err == nil {
			pkglistContent = string(data)
		}
		return process.Outcome{}, nil
	})

	err := newProvisioner(runner, resolver).Provision(context.Background(), ferrisRequest(), discardSink())
	require.NoError(t, err)

	require.Equal(t, 1, runner.RunCallCount())
	assert.Equal(t, 0, resolver.ResolveCallCount())

	_, inv, _ := runner.RunArgsForCall(0)
	require.NotEmpty(t, pkglistPath)
	assert.Equal(t, "iocage", inv.Program)
	assert.Equal(t, []string{
		"create",
		"--name", "ferris",
		"--release", "13.1-RELEASE",
		"--pkglist", pkglistPath,
		"--force",
		"vnet=on",
		"ip4_addr=vnet0|192.168.0.100/24",
		"defaultrouter=192.168.0.1",
		"resolver=none",
		"boot=on",
	}, inv.Args)
	assert.Equal(t, map[string]string{"PYTHONUNBUFFERED": "true"}, inv.Env)
	assert.Nil(t, inv.Stdin)
	assert.Equal(t, `{"pkgs":[]}`, pkglistContent)

	// The package list is gone once the run is over.
	_, statErr := os.Stat(pkglistPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestProvisionWithIdentityStepOrder(t *testing.T) {
	runner := &provisionfakes.FakeCommandRunner{}
	resolver := &provisionfakes.FakeIdentityResolver{}
	resolver.ResolveReturns(ferrisIdentity(), nil)

	req := ferrisRequest()
	req.Username = "ferris"

	err := newProvisioner(runner, resolver).Provision(context.Background(), req, discardSink())
	require.NoError(t, err)

	require.Equal(t, 1, resolver.ResolveCallCount())
	assert.Equal(t, "ferris", resolver.ResolveArgsForCall(0))
	require.Equal(t, 4, runner.RunCallCount())

	_, create, _ := runner.RunArgsForCall(0)
	assert.Equal(t, "create", create.Args[0])

	wantStdins := []string{
		"set -eu\n\necho '%wheel ALL=(ALL) NOPASSWD: ALL' > /usr/local/etc/sudoers.d/wheel\n",
		"set -eu\n\npw groupadd -n 'ferris' -g '1001'\n",
		"set -eu\n\npw useradd -n 'ferris' -u '1001' -g 'ferris' -G wheel -m -s '/usr/local/bin/bash'\n",
	}
	for i, want := range wantStdins {
		_, inv, _ := runner.RunArgsForCall(i + 1)
		assert.Equal(t, []string{"exec", "ferris", "sh"}, inv.Args, "call %d", i+1)
		assert.Equal(t, want, string(inv.Stdin), "call %d", i+1)
		assert.Equal(t, map[string]string{"PYTHONUNBUFFERED": "true"}, inv.Env, "call %d", i+1)
	}
}

func TestProvisionWithSSH(t *testing.T) {
	t.Run("with identity", func(t *testing.T) {
		runner := &provisionfakes.FakeCommandRunner{}
		resolver := &provisionfakes.FakeIdentityResolver{}
		resolver.ResolveReturns(ferrisIdentity(), nil)

		req := ferrisRequest()
		req.Username = "ferris"
		req.SSH = true

		err := newProvisioner(runner, resolver).Provision(context.Background(), req, discardSink())
		require.NoError(t, err)
		require.Equal(t, 5, runner.RunCallCount())

		_, last, _ := runner.RunArgsForCall(4)
		assert.Equal(t, []string{"exec", "ferris", "sh"}, last.Args)
		assert.Equal(t, "set -eu\n\nsysrc -f /etc/rc.conf sshd_enable=\"YES\"\nservice sshd start\n", string(last.Stdin))
	})

	t.Run("without identity", func(t *testing.T) {
		runner := &provisionfakes.FakeCommandRunner{}
		resolver := &provisionfakes.FakeIdentityResolver{}

		req := ferrisRequest()
		req.SSH = true

		err := newProvisioner(runner, resolver).Provision(context.Background(), req, discardSink())
		require.NoError(t, err)
		require.Equal(t, 2, runner.RunCallCount())

		_, last, _ := runner.RunArgsForCall(1)
		assert.Equal(t, []string{"exec", "ferris", "sh"}, last.Args)
		assert.Contains(t, string(last.Stdin), "sshd_enable")
	})
}

func TestProvisionStopsAtFirstFailure(t *testing.T) {
	tests := []struct {
		name     string
		username string
		ssh      bool
		failAt   int
		wantStep provision.Step
	}{
		{"create fails", "ferris", true, 0, provision.StepCreate},
		{"sudo config fails", "ferris", true, 1, provision.StepSudoConfig},
		{"group create fails", "ferris", true, 2, provision.StepCreateGroup},
		{"user create fails", "ferris", true, 3, provision.StepCreateUser},
		{"ssh enable fails", "ferris", true, 4, provision.StepSSHService},
		{"ssh fails without identity", "", true, 1, provision.StepSSHService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &provisionfakes.FakeCommandRunner{}
			resolver := &provisionfakes.FakeIdentityResolver{}
			resolver.ResolveReturns(ferrisIdentity(), nil)
			runner.RunReturnsOnCall(tt.failAt, process.Outcome{Code: 2}, nil)

			req := ferrisRequest()
			req.Username = tt.username
			req.SSH = tt.ssh

			err := newProvisioner(runner, resolver).Provision(context.Background(), req, discardSink())
			require.Error(t, err)

			assert.True(t, provision.IsStep(err, tt.wantStep), "got %v", err)
			assert.Equal(t, tt.failAt+1, runner.RunCallCount())

			var exitErr *process.ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}

func TestProvisionRunnerErrorAttributedToStep(t *testing.T) {
	runner := &provisionfakes.FakeCommandRunner{}
	resolver := &provisionfakes.FakeIdentityResolver{}
	runner.RunReturns(process.Outcome{}, &process.SpawnError{
		Program: "iocage",
		Err:     errors.New("executable file not found"),
	})

	err := newProvisioner(runner, resolver).Provision(context.Background(), ferrisRequest(), discardSink())
	require.Error(t, err)

	assert.True(t, provision.IsStep(err, provision.StepCreate))
	var spawnErr *process.SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, "iocage", spawnErr.Program)
	assert.Equal(t, 1, runner.RunCallCount())
}

func TestProvisionSignaledChildFailsStep(t *testing.T) {
	runner := &provisionfakes.FakeCommandRunner{}
	resolver := &provisionfakes.FakeIdentityResolver{}
	runner.RunReturns(process.Outcome{Code: -1, Signaled: true}, nil)

	err := newProvisioner(runner, resolver).Provision(context.Background(), ferrisRequest(), discardSink())
	require.Error(t, err)

	assert.True(t, provision.IsStep(err, provision.StepCreate))
	var exitErr *process.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.True(t, exitErr.Signaled)
}

func TestProvisionUnknownUserShortCircuits(t *testing.T) {
	runner := &provisionfakes.FakeCommandRunner{}
	resolver := &provisionfakes.FakeIdentityResolver{}
	resolver.ResolveReturns(nil, &identity.UnknownUserError{Username: "ghost"})

	req := ferrisRequest()
	req.Username = "ghost"

	err := newProvisioner(runner, resolver).Provision(context.Background(), req, discardSink())
	require.Error(t, err)

	var unknownErr *identity.UnknownUserError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "ghost", unknownErr.Username)
	assert.Equal(t, 0, runner.RunCallCount(), "no external process may start for an unknown user")
}

func TestProvisionPkglistMatchesIdentity(t *testing.T) {
	tests := []struct {
		name  string
		shell string
		want  string
	}{
		{"bash shell pulls bash", "/usr/local/bin/bash", `{"pkgs":["sudo","bash"]}`},
		{"other shell pulls sudo only", "/bin/sh", `{"pkgs":["sudo"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &provisionfakes.FakeCommandRunner{}
			resolver := &provisionfakes.FakeIdentityResolver{}
			id := ferrisIdentity()
			id.Shell = tt.shell
			resolver.ResolveReturns(id, nil)

			var content string
			runner.RunCalls(func(ctx context.Context, inv process.Invocation, sink process.Sink) (process.Outcome, error) {
				if path := pkglistArg(inv.Args); path != "" {
					data, err := os.ReadFile(path)
					require.NoError(t, err)
					content = string(data)
				}
				return process.Outcome{}, nil
			})

			req := ferrisRequest()
			req.Username = "ferris"

			err := newProvisioner(runner, resolver).Provision(context.Background(), req, discardSink())
			require.NoError(t, err)
			assert.Equal(t, tt.want, content)
		})
	}
}

func TestProvisionPkglistRemovedOnFailure(t *testing.T) {
	runner := &provisionfakes.FakeCommandRunner{}
	resolver := &provisionfakes.FakeIdentityResolver{}

	var pkglistPath string
	runner.RunCalls(func(ctx context.Context, inv process.Invocation, sink process.Sink) (process.Outcome, error) {
		pkglistPath = pkglistArg(inv.Args)
		return process.Outcome{Code: 1}, nil
	})

	err := newProvisioner(runner, resolver).Provision(context.Background(), ferrisRequest(), discardSink())
	require.Error(t, err)

	require.NotEmpty(t, pkglistPath)
	_, statErr := os.Stat(pkglistPath)
	assert.True(t, os.IsNotExist(statErr), "pkglist must be removed on failure paths too")
}

func TestProvisionDeterministicInvocations(t *testing.T) {
	runSequence := func() []process.Invocation {
		runner := &provisionfakes.FakeCommandRunner{}
		resolver := &provisionfakes.FakeIdentityResolver{}
		resolver.ResolveReturns(ferrisIdentity(), nil)

		req := ferrisRequest()
		req.Username = "ferris"
		req.SSH = true

		require.NoError(t, newProvisioner(runner, resolver).Provision(context.Background(), req, discardSink()))

		invs := make([]process.Invocation, runner.RunCallCount())
		for i := range invs {
			_, invs[i], _ = runner.RunArgsForCall(i)
		}
		// The pkglist tempfile name is the one non-deterministic argument.
		for i := range invs {
			for j, arg := range invs[i].Args {
				if arg == "--pkglist" {
					invs[i].Args[j+1] = "<pkglist>"
				}
			}
		}
		return invs
	}

	assert.Equal(t, runSequence(), runSequence())
}

func TestProvisionSinkReachesRunner(t *testing.T) {
	runner := &provisionfakes.FakeCommandRunner{}
	resolver := &provisionfakes.FakeIdentityResolver{}
	sink := &countingSink{}

	err := newProvisioner(runner, resolver).Provision(context.Background(), ferrisRequest(), sink)
	require.NoError(t, err)

	require.Equal(t, 1, runner.RunCallCount())
	_, _, gotSink := runner.RunArgsForCall(0)
	assert.Same(t, sink, gotSink)
}

type countingSink struct {
	calls int
}

func (s *countingSink) Line(process.Stream, string) { s.calls++ }

func TestEnsureRoot(t *testing.T) {
	err := provision.EnsureRoot()
	if os.Geteuid() == 0 {
		assert.NoError(t, err)
	} else {
		assert.ErrorIs(t, err, provision.ErrNotRoot)
	}
}

func TestStepError(t *testing.T) {
	cause := &process.ExitError{Code: 3}
	err := &provision.StepError{Step: provision.StepCreateGroup, Err: cause}

	assert.Equal(t, "provisioning step failed; step=group-create", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, provision.IsStep(err, provision.StepCreateGroup))
	assert.False(t, provision.IsStep(err, provision.StepCreateUser))
	assert.False(t, provision.IsStep(errors.New("plain"), provision.StepCreateGroup))
}

func TestPkglistError(t *testing.T) {
	cause := errors.New("disk full")
	err := &provision.PkglistError{Err: cause}

	assert.Equal(t, "failed to create pkglist json file", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
}
