// netmon is an agent that monitors the network of the host it runs on and
// serves the current network snapshot over HTTP.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-lab/go/flagx"
	"github.com/m-lab/go/httpx"
	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/go/warnonerror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m-lab/netmon/api"
	"github.com/m-lab/netmon/config"
	"github.com/m-lab/netmon/logging"
	"github.com/m-lab/netmon/monitor"
	"github.com/m-lab/netmon/platformx"
	"github.com/m-lab/netmon/redis"
)

var (
	// Flags that can be passed in on the command line
	listenAddr  = flag.String("addr", "localhost:8080", "The address and port serving the network API")
	configFile  = flag.String("config", "", "Optional YAML configuration file")
	logLevel    = flag.String("log.level", "info", "The minimum level of emitted log messages")
	downloadURL = flag.String("probe.download-url", "", "Download probe URL; overrides the configuration file")
	latencyURL  = flag.String("probe.latency-url", "", "Latency probe URL; overrides the configuration file")
	redisAddr   = flag.String("redis.addr", "", "Redis address receiving the snapshots; overrides the configuration file")
	redisHost   = flag.String("redis.host", "", "Host name under which snapshots are stored; defaults to the hostname")

	// A metric to use to signal that the agent is shutting down.
	lameDuck = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "netmon_lame_duck",
		Help: "Indicates when the agent is shutting down",
	})

	// Context for the whole program.
	ctx, cancel = context.WithCancel(context.Background())
)

func catchSigterm() {
	lameDuck.Set(0)

	c := make(chan os.Signal, 1)
	defer signal.Stop(c)
	signal.Notify(c, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-c:
		logging.Logger.WithField("signal", sig.String()).Info("Shutting down")
		lameDuck.Set(1)
		cancel()
	case <-ctx.Done():
	}
}

// httpServer creates a new *http.Server with explicit Read timeouts. Write
// timeouts are left unset so that the websocket stream can stay open.
func httpServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
	}
}

// loadConfig applies the command line overrides to the configuration file,
// or to the defaults without one.
func loadConfig() *config.Config {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		rtx.Must(err, "Could not load configuration")
	}
	if *downloadURL != "" {
		cfg.Probe.DownloadURL = *downloadURL
	}
	if *latencyURL != "" {
		cfg.Probe.LatencyURL = *latencyURL
	}
	if *redisAddr != "" {
		cfg.Redis.Addr = *redisAddr
	}
	if *redisHost != "" {
		cfg.Redis.Host = *redisHost
	}
	if cfg.Redis.Host == "" {
		name, err := os.Hostname()
		rtx.Must(err, "Could not get the hostname")
		cfg.Redis.Host = name
	}
	rtx.Must(cfg.Validate(), "Invalid configuration")
	return cfg
}

func main() {
	flag.Parse()
	rtx.Must(flagx.ArgsFromEnv(flag.CommandLine), "Could not parse env args")
	rtx.Must(logging.SetLevel(*logLevel), "Could not set the log level")
	cfg := loadConfig()
	platformx.WarnIfNotFullySupported()

	promSrv := prometheusx.MustServeMetrics()
	defer warnonerror.Close(promSrv, "Could not stop the metrics server")

	go catchSigterm()

	m, err := monitor.New(cfg.Environment(), cfg.MonitorConfig())
	rtx.Must(err, "Could not create the monitor")
	defer m.Destroy()
	logging.Logger.WithFields(logging.Fields(m.Current())).Info("Initial network snapshot")

	if cfg.Redis.Addr != "" {
		rc := redis.NewClient(cfg.Redis.Addr)
		defer warnonerror.Close(rc, "Could not close the redis client")
		sink := redis.NewSink(rc, cfg.Redis.Host, cfg.Redis.Timeout)
		go sink.Run(ctx)
		unsubscribe := m.AddListener(sink.Listen)
		defer unsubscribe()
	}

	srv := httpServer(*listenAddr, logging.MakeAccessLogHandler(api.New(m).Mux()))
	logging.Logger.Info("About to listen for network API requests on " + *listenAddr)
	rtx.Must(httpx.ListenAndServeAsync(srv), "Could not start the network API server")
	defer srv.Close()

	<-ctx.Done()
}
