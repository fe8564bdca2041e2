package provision

import (
	"fmt"

	"jailprov/internal/jailprov/identity"
)

// Step scripts run inside the jail via `iocage exec <jail> sh` under
// set -eu. Each line is one chain-free command so the shell itself stops
// at the first failure within a step.

func sudoConfigScript() string {
	return "echo '%wheel ALL=(ALL) NOPASSWD: ALL' > /usr/local/etc/sudoers.d/wheel\n"
}

func createGroupScript(id *identity.Identity) string {
	return fmt.Sprintf("pw groupadd -n '%s' -g '%d'\n", id.Group, id.GID)
}

func createUserScript(id *identity.Identity) string {
	return fmt.Sprintf(
		"pw useradd -n '%s' -u '%d' -g '%s' -G wheel -m -s '%s'\n",
		id.Username, id.UID, id.Group, id.Shell,
	)
}

func sshServiceScript() string {
	return "sysrc -f /etc/rc.conf sshd_enable=\"YES\"\nservice sshd start\n"
}
