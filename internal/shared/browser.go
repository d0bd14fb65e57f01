package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// browserCommand returns the platform launcher for a URL.
var browserCommand = func(url string) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url), nil
	case "linux":
		return exec.Command("xdg-open", url), nil
	case "windows":
		return exec.Command("cmd", "/c", "start", url), nil
	}
	return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
}

// OpenBrowser launches the default browser at url, used by the OAuth login
// flow. The launcher is started without waiting for it to exit.
func OpenBrowser(url string) error {
	cmd, err := browserCommand(url)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
