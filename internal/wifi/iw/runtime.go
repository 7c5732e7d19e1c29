package iw

import (
	"os/exec"
)

const Runtime = "iw"

// FindRuntime locates the scanning tool binary in PATH
func FindRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		return "", err
	}

	return binPath, nil
}
