package provision

import (
	"errors"
	"fmt"
)

// ErrNotRoot is returned when the effective uid is not 0. iocage needs
// root to manage jails.
var ErrNotRoot = errors.New("root privileges required")

// Step identifies one workflow state for error attribution.
type Step string

const (
	StepCreate      Step = "create"
	StepSudoConfig  Step = "sudo-config"
	StepCreateGroup Step = "group-create"
	StepCreateUser  Step = "user-create"
	StepSSHService  Step = "ssh-enable"
)

// StepError attributes a process-level failure to the workflow step that
// produced it. The cause is reachable through Unwrap, never rewritten.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("provisioning step failed; step=%s", e.Step)
}

func (e *StepError) Unwrap() error { return e.Err }

// IsStep reports whether err is a StepError for the given step.
func IsStep(err error, step Step) bool {
	var stepErr *StepError
	return errors.As(err, &stepErr) && stepErr.Step == step
}

// PkglistError reports a package list file that could not be written.
type PkglistError struct {
	Err error
}

func (e *PkglistError) Error() string { return "failed to create pkglist json file" }

func (e *PkglistError) Unwrap() error { return e.Err }
