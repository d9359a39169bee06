// netmon-client prints the network snapshot of this host as JSON. It can
// also run the active probes, or follow the snapshots other agents publish
// to Redis.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/go/warnonerror"

	"github.com/m-lab/netmon/host"
	"github.com/m-lab/netmon/logging"
	"github.com/m-lab/netmon/model"
	"github.com/m-lab/netmon/monitor"
	"github.com/m-lab/netmon/probe"
	"github.com/m-lab/netmon/redis"
)

var (
	downloadURL = flag.String("download-url", "", "Run the active probes against this download URL")
	latencyURL  = flag.String("latency-url", "", "Latency probe URL; defaults to the download URL")
	sampleBytes = flag.Int64("sample-bytes", probe.DefaultSampleBytes, "Size of the download probe")
	samples     = flag.Int("samples", probe.DefaultLatencySamples, "Number of latency round trips")
	timeout     = flag.Duration("timeout", time.Minute, "Overall deadline of the measurement")
	redisAddr   = flag.String("redis.addr", "", "Follow the snapshots published to this Redis server instead")
	redisHost   = flag.String("redis.host", "", "With -redis.addr, print the stored snapshot of this host and exit")

	ctx, cancel = context.WithCancel(context.Background())
)

// output is the document printed by a one-shot run.
type output struct {
	Network     model.NetworkInfo        `json:"network"`
	Measurement *model.MeasurementResult `json:"measurement,omitempty"`
	Error       string                   `json:"error,omitempty"`
}

func catchSignals() {
	c := make(chan os.Signal, 1)
	defer signal.Stop(c)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGINT)
	select {
	case <-c:
		cancel()
	case <-ctx.Done():
	}
}

// snapshot measures the local host once and writes the result to w.
func snapshot(ctx context.Context, e any, w io.Writer) error {
	cfg := monitor.Config{}
	if *downloadURL != "" {
		cfg.Prober = probe.New(*downloadURL)
		cfg.LatencyEndpoint = *latencyURL
		cfg.SampleBytes = *sampleBytes
		cfg.LatencySamples = *samples
	}
	m, err := monitor.New(e, cfg)
	if err != nil {
		return err
	}
	defer m.Destroy()

	out := output{Network: m.Current()}
	if cfg.Prober != nil {
		mctx, mcancel := context.WithTimeout(ctx, *timeout)
		defer mcancel()
		res, err := m.MeasurePerformance(mctx)
		if err != nil {
			out.Error = err.Error()
		} else {
			out.Measurement = &res
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// follow prints every change published to Redis until ctx is done.
func follow(ctx context.Context, rc *redis.Client, w io.Writer) error {
	enc := json.NewEncoder(w)
	err := rc.Subscribe(ctx, func(c redis.Change) {
		if err := enc.Encode(c); err != nil {
			logging.Logger.WithError(err).Warn("Could not print change")
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not parse env args")
	go catchSignals()
	defer cancel()

	if *redisAddr == "" {
		rtx.Must(snapshot(ctx, host.New(), os.Stdout), "Could not measure the network")
		return
	}
	rc := redis.NewClient(*redisAddr)
	defer warnonerror.Close(rc, "Could not close the redis client")
	if *redisHost != "" {
		info, err := rc.GetSnapshot(ctx, *redisHost)
		rtx.Must(err, "Could not get the snapshot of %s", *redisHost)
		rtx.Must(json.NewEncoder(os.Stdout).Encode(redis.Change{Host: *redisHost, Info: info}), "Could not print the snapshot")
		return
	}
	rtx.Must(follow(ctx, rc, os.Stdout), "Could not follow the snapshots")
}

