// Package identity resolves host users and groups into the tuple recreated
// inside a jail.
package identity

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"
)

// defaultShell is used when the user database does not record a login shell.
const defaultShell = "/bin/sh"

// Identity is a resolved host user.
type Identity struct {
	Username string
	UID      uint32
	Group    string
	GID      uint32
	Shell    string
}

// UnknownUserError reports a username missing from the host user database.
type UnknownUserError struct {
	Username string
}

func (e *UnknownUserError) Error() string {
	return fmt.Sprintf("system user not found; user=%s", e.Username)
}

// UnknownGroupError reports a gid with no matching host group.
type UnknownGroupError struct {
	GID uint32
}

func (e *UnknownGroupError) Error() string {
	return fmt.Sprintf("system group id not found; gid=%d", e.GID)
}

// Resolver looks up identities against the host user and group databases.
type Resolver struct {
	passwdPath string
}

// NewResolver returns a Resolver reading the standard host databases.
func NewResolver() *Resolver {
	return &Resolver{passwdPath: "/etc/passwd"}
}

// Resolve looks up username and returns its full identity. The login shell
// comes from the passwd database, since the platform lookup does not expose
// it; a user without a recorded shell gets /bin/sh.
func (r *Resolver) Resolve(username string) (*Identity, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return nil, &UnknownUserError{Username: username}
	}

	uid, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("unexpected uid %q for user %s: %w", u.Uid, username, err)
	}
	gid, err := strconv.ParseUint(u.Gid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("unexpected gid %q for user %s: %w", u.Gid, username, err)
	}

	group, err := user.LookupGroupId(u.Gid)
	if err != nil {
		return nil, &UnknownGroupError{GID: uint32(gid)}
	}

	return &Identity{
		Username: u.Username,
		UID:      uint32(uid),
		Group:    group.Name,
		GID:      uint32(gid),
		Shell:    r.loginShell(u.Username),
	}, nil
}

// loginShell scans the passwd database for the user's shell field. The file
// uses the seven-field V7 layout on both FreeBSD and Linux, with the shell
// last.
func (r *Resolver) loginShell(username string) string {
	f, err := os.Open(r.passwdPath)
	if err != nil {
		return defaultShell
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) < 7 || fields[0] != username {
			continue
		}
		if shell := strings.TrimSpace(fields[6]); shell != "" {
			return shell
		}
		return defaultShell
	}
	return defaultShell
}
