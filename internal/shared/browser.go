package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// browserCommand returns the launcher and arguments that open target on the current platform.
func browserCommand(target string) (string, []string, error) {
	switch rt := getRuntime(); rt {
	case "darwin":
		return "open", []string{target}, nil
	case "linux":
		return "xdg-open", []string{target}, nil
	case "windows":
		return "cmd", []string{"/c", "start", target}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", rt)
	}
}

// OpenBrowser opens the default system browser at target without waiting for it to exit.
func OpenBrowser(target string) error {
	name, args, err := browserCommand(target)
	if err != nil {
		return err
	}

	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}
