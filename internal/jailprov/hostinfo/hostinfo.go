// Package hostinfo detects host-derived defaults for jail provisioning:
// the IPv4 default gateway and the OS release tag.
package hostinfo

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrNoDefaultRoute is returned when the routing table has no default
// entry to derive a gateway from.
var ErrNoDefaultRoute = errors.New("default route not found in routing table")

// DefaultGateway queries the host routing table for the IPv4 default route
// gateway. The netstat output is buffered, not streamed; this is a host
// query, not a supervised provisioning command.
func DefaultGateway(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "netstat", "-r", "-n", "-f", "inet").Output()
	if err != nil {
		return "", fmt.Errorf("failed to read routing table: %w", err)
	}
	return parseDefaultGateway(out)
}

func parseDefaultGateway(out []byte) (string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "default" {
			continue
		}
		gateway := fields[1]
		if net.ParseIP(gateway) == nil {
			return "", fmt.Errorf("routing table has malformed gateway %q", gateway)
		}
		return gateway, nil
	}
	return "", ErrNoDefaultRoute
}

// DefaultRelease derives an iocage release tag from the kernel release
// string.
func DefaultRelease() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", fmt.Errorf("failed to read kernel release: %w", err)
	}
	return normalizeRelease(unix.ByteSliceToString(uts.Release[:])), nil
}

// normalizeRelease maps a kernel release string onto the release line
// iocage can fetch: a STABLE tag becomes its RELEASE line and anything past
// the first two dash-separated segments, such as a patch level, is dropped.
// "11.2-STABLE-p4" becomes "11.2-RELEASE", "14.0-CURRENT" stays itself.
func normalizeRelease(release string) string {
	parts := strings.Split(release, "-")
	for i, part := range parts {
		if part == "STABLE" {
			parts[i] = "RELEASE"
		}
	}
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, "-")
}
