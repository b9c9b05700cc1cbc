//go:build windows

package execproc

import "os"

// Windows has no SIGTERM; Signal(os.Kill) is the only portable terminate.
func terminateSignal() os.Signal {
	return os.Kill
}
