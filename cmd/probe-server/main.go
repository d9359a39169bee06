// probe-server serves the download and ping endpoints measured by the
// netmon active probes.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/httpx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/go/warnonerror"

	"github.com/m-lab/netmon/access"
	"github.com/m-lab/netmon/logging"
	"github.com/m-lab/netmon/probeserver"
)

var (
	listenAddr    = flag.String("addr", ":8081", "The address and port serving the probe endpoints")
	maxSize       = flag.Int64("max-size", probeserver.DefaultMaxSize, "The largest download, in bytes, a client may request")
	maxConcurrent = flag.Int64("max-concurrent", 0, "Maximum number of concurrent downloads; zero means unlimited")
	procPath      = flag.String("txcontroller.proc", "/proc", "The procfs mount point")
	txDevice      = flag.String("txcontroller.device", "eth0", "Calculate bytes transmitted from this device")
	txMaxRate     = flag.Uint64("txcontroller.max-rate", 0, "Reject downloads while the device transmits more bits per second; zero disables")

	// Context for the whole program.
	ctx, cancel = context.WithCancel(context.Background())
)

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not parse env args")

	promSrv := prometheusx.MustServeMetrics()
	defer warnonerror.Close(promSrv, "Could not stop the metrics server")

	controllers := []access.Controller{&access.MaxController{Max: *maxConcurrent}}
	if *txMaxRate > 0 {
		tx, err := access.NewTxController(*procPath, *txDevice, *txMaxRate)
		rtx.Must(err, "Could not create the tx controller")
		go func() {
			if err := tx.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Logger.WithError(err).Warn("tx controller stopped")
			}
		}()
		controllers = append(controllers, tx)
	}

	srv := &http.Server{
		Addr:         *listenAddr,
		Handler:      logging.MakeAccessLogHandler(probeserver.Mux(probeserver.Handler{MaxSize: *maxSize}, controllers...)),
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}
	logging.Logger.Info("About to listen for probe requests on " + *listenAddr)
	rtx.Must(httpx.ListenAndServeAsync(srv), "Could not start the probe server")
	defer srv.Close()

	<-ctx.Done()
}
