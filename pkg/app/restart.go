package app

import (
	"os"

	"github.com/golang/glog"
)

// RestartExitCode asks the supervising service manager for a restart.
const RestartExitCode = 3

// ExitRestarter restarts by exiting the process.
type ExitRestarter struct {
	Code int
}

// Restart implements Restarter.
func (r *ExitRestarter) Restart() {
	glog.Warning("[APP] restarting")
	glog.Flush()
	code := r.Code
	if code == 0 {
		code = RestartExitCode
	}
	os.Exit(code)
}
