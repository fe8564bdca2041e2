package iocage

import (
	"encoding/json"
	"os"
	"path/filepath"

	"jailprov/internal/jailprov/identity"
)

// packageList is the JSON payload iocage consumes via --pkglist.
type packageList struct {
	Pkgs []string `json:"pkgs"`
}

// PackageList renders the package list for the requested identity. No
// identity needs no packages; any identity needs sudo; a bash login shell
// additionally needs bash installed in the jail. The mapping is keyed on
// the shell's basename.
func PackageList(id *identity.Identity) []byte {
	pkgs := []string{}
	if id != nil {
		pkgs = append(pkgs, "sudo")
		if filepath.Base(id.Shell) == "bash" {
			pkgs = append(pkgs, "bash")
		}
	}
	data, _ := json.Marshal(packageList{Pkgs: pkgs})
	return data
}

// WritePackageList writes the package list for id to a uniquely named
// temporary file and returns its path. The caller removes the file once
// the create call no longer needs it.
func WritePackageList(id *identity.Identity) (string, error) {
	f, err := os.CreateTemp("", "pkglist*.json")
	if err != nil {
		return "", err
	}

	_, werr := f.Write(PackageList(id))
	cerr := f.Close()
	if werr != nil {
		_ = os.Remove(f.Name())
		return "", werr
	}
	if cerr != nil {
		_ = os.Remove(f.Name())
		return "", cerr
	}
	return f.Name(), nil
}
