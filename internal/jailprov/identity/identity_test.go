package identity

import (
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePasswd(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "passwd")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoginShell(t *testing.T) {
	passwd := writePasswd(t, `# comment line
root:*:0:0:Charlie Root:/root:/bin/csh
ferris:*:1001:1001:Ferris:/home/ferris:/usr/local/bin/bash
noshell:*:1002:1002:No Shell:/home/noshell:
daemon:*:1:1:Owner of many system processes:/root:/usr/sbin/nologin
`)

	tests := []struct {
		name     string
		username string
		want     string
	}{
		{"bash user", "ferris", "/usr/local/bin/bash"},
		{"csh user", "root", "/bin/csh"},
		{"empty shell field", "noshell", "/bin/sh"},
		{"user not in file", "ghost", "/bin/sh"},
	}

	r := &Resolver{passwdPath: passwd}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.loginShell(tt.username))
		})
	}
}

func TestLoginShellMissingFile(t *testing.T) {
	r := &Resolver{passwdPath: filepath.Join(t.TempDir(), "nope")}
	assert.Equal(t, "/bin/sh", r.loginShell("anyone"))
}

func TestResolveUnknownUser(t *testing.T) {
	r := NewResolver()

	_, err := r.Resolve("jailprov-test-missing-user")

	var unknownErr *UnknownUserError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "jailprov-test-missing-user", unknownErr.Username)
	assert.Equal(t, "system user not found; user=jailprov-test-missing-user", err.Error())
}

func TestResolveCurrentUser(t *testing.T) {
	current, err := user.Current()
	if err != nil {
		t.Skipf("no current user available: %v", err)
	}

	r := NewResolver()
	id, err := r.Resolve(current.Username)
	require.NoError(t, err)

	wantUID, err := strconv.ParseUint(current.Uid, 10, 32)
	require.NoError(t, err)

	assert.Equal(t, current.Username, id.Username)
	assert.Equal(t, uint32(wantUID), id.UID)
	assert.NotEmpty(t, id.Group)
	assert.NotEmpty(t, id.Shell)
}

func TestErrorTypes(t *testing.T) {
	userErr := error(&UnknownUserError{Username: "ferris"})
	groupErr := error(&UnknownGroupError{GID: 1001})

	assert.Equal(t, "system user not found; user=ferris", userErr.Error())
	assert.Equal(t, "system group id not found; gid=1001", groupErr.Error())

	var asUser *UnknownUserError
	assert.True(t, errors.As(userErr, &asUser))
	var asGroup *UnknownGroupError
	assert.True(t, errors.As(groupErr, &asGroup))
}
