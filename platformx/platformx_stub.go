//go:build !linux

package platformx

import (
	"runtime"

	"github.com/m-lab/netmon/logging"
)

func maybeEmitWarning() {
	logging.Logger.WithField("os", runtime.GOOS).Warn(
		"This platform is not officially supported. Connection details need procfs and sysfs; only reachability will be reported.")
}
