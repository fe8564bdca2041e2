// Package iocage shapes the external iocage invocations used to provision
// a jail: the create call, in-jail script execution, and the package list
// the create call consumes.
package iocage

import (
	"fmt"

	"jailprov/internal/jailprov/process"
)

// DefaultTool is the iocage binary resolved from PATH when no explicit
// path is configured.
const DefaultTool = "iocage"

// JailSpec describes the jail to create. Addr is "ip/mask" CIDR notation.
// A thick jail gets its own copy of the release instead of a shared base.
type JailSpec struct {
	Name    string
	Addr    string
	Gateway string
	Release string
	Thick   bool
}

// Builder constructs iocage invocations for a configured tool path.
type Builder struct {
	tool string
}

// NewBuilder returns a Builder invoking the given iocage binary. An empty
// path falls back to DefaultTool.
func NewBuilder(tool string) *Builder {
	if tool == "" {
		tool = DefaultTool
	}
	return &Builder{tool: tool}
}

// Create shapes the jail creation call. pkglistPath must point at a file
// written with WritePackageList and stay readable until the call returns.
// The forced create overwrites a stale jail of the same name.
func (b *Builder) Create(spec JailSpec, pkglistPath string) process.Invocation {
	args := []string{
		"create",
		"--name", spec.Name,
		"--release", spec.Release,
		"--pkglist", pkglistPath,
		"--force",
	}
	if spec.Thick {
		args = append(args, "--thickjail")
	}
	args = append(args,
		"vnet=on",
		fmt.Sprintf("ip4_addr=vnet0|%s", spec.Addr),
		fmt.Sprintf("defaultrouter=%s", spec.Gateway),
		"resolver=none",
		"boot=on",
	)

	return process.Invocation{
		Program: b.tool,
		Args:    args,
		Env:     unbufferedEnv(),
	}
}

// Exec shapes a shell script execution inside the jail. The script is fed
// on stdin under set -eu so the first failing command aborts the step.
func (b *Builder) Exec(jail string, script string) process.Invocation {
	return process.Invocation{
		Program: b.tool,
		Args:    []string{"exec", jail, "sh"},
		Env:     unbufferedEnv(),
		Stdin:   []byte("set -eu\n\n" + script),
	}
}

// unbufferedEnv keeps iocage's Python runtime from buffering output, so
// line-by-line relay stays live. Built fresh per invocation; invocations
// never share state.
func unbufferedEnv() map[string]string {
	return map[string]string{"PYTHONUNBUFFERED": "true"}
}
