// Package config loads the netmon agent configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/m-lab/netmon/classify"
	"github.com/m-lab/netmon/host"
	"github.com/m-lab/netmon/monitor"
	"github.com/m-lab/netmon/probe"
)

// Config is the agent configuration.
type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
	Probe   ProbeConfig   `yaml:"probe"`
	Host    HostConfig    `yaml:"host"`
	Redis   RedisConfig   `yaml:"redis"`
}

// MonitorConfig configures the snapshot monitor.
type MonitorConfig struct {
	PollInterval time.Duration      `yaml:"poll_interval"`
	Heuristic    classify.Heuristic `yaml:"heuristic"`
}

// ProbeConfig configures the active measurements. An empty DownloadURL
// disables them.
type ProbeConfig struct {
	DownloadURL     string        `yaml:"download_url"`
	LatencyURL      string        `yaml:"latency_url"`
	SampleBytes     int64         `yaml:"sample_bytes"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	LatencySamples  int           `yaml:"latency_samples"`
	LatencyTimeout  time.Duration `yaml:"latency_timeout"`
	Pacing          time.Duration `yaml:"pacing"`
}

// HostConfig configures the host environment reader.
type HostConfig struct {
	WatchInterval time.Duration `yaml:"watch_interval"`
	SaveData      *bool         `yaml:"save_data"`
}

// RedisConfig configures the snapshot sink. An empty Addr disables it.
type RedisConfig struct {
	Addr    string        `yaml:"addr"`
	Host    string        `yaml:"host"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{
			PollInterval: time.Minute,
			Heuristic:    classify.DefaultHeuristic,
		},
		Probe: ProbeConfig{
			SampleBytes:     probe.DefaultSampleBytes,
			DownloadTimeout: probe.DefaultDownloadTimeout,
			LatencySamples:  probe.DefaultLatencySamples,
			LatencyTimeout:  probe.DefaultLatencyTimeout,
			Pacing:          probe.DefaultPacing,
		},
		Host: HostConfig{
			WatchInterval: host.DefaultWatchInterval,
		},
		Redis: RedisConfig{
			Timeout: time.Second,
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Monitor.PollInterval < 0 {
		errs = append(errs, errors.New("monitor.poll_interval must not be negative"))
	}
	if c.Monitor.Heuristic.MinDownlinkMbps < 0 || c.Monitor.Heuristic.MaxRTTMillis < 0 {
		errs = append(errs, errors.New("monitor.heuristic thresholds must not be negative"))
	}
	for _, u := range []struct{ name, raw string }{
		{"probe.download_url", c.Probe.DownloadURL},
		{"probe.latency_url", c.Probe.LatencyURL},
	} {
		name, raw := u.name, u.raw
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an http(s) URL, got %q", name, raw))
		}
	}
	if c.Probe.SampleBytes < 0 || c.Probe.LatencySamples < 0 {
		errs = append(errs, errors.New("probe sizes must not be negative"))
	}
	if c.Probe.DownloadTimeout < 0 || c.Probe.LatencyTimeout < 0 || c.Probe.Pacing < 0 {
		errs = append(errs, errors.New("probe durations must not be negative"))
	}
	if c.Host.WatchInterval < 0 {
		errs = append(errs, errors.New("host.watch_interval must not be negative"))
	}
	if c.Redis.Addr != "" && c.Redis.Timeout <= 0 {
		errs = append(errs, errors.New("redis.timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Prober returns the prober described by the probe section, or nil when
// no download URL is configured.
func (c *Config) Prober() *probe.Prober {
	if c.Probe.DownloadURL == "" {
		return nil
	}
	p := probe.New(c.Probe.DownloadURL)
	p.Pacing = c.Probe.Pacing
	p.LatencyTimeout = c.Probe.LatencyTimeout
	return p
}

// MonitorConfig returns the monitor settings.
func (c *Config) MonitorConfig() monitor.Config {
	return monitor.Config{
		PollInterval:    c.Monitor.PollInterval,
		Heuristic:       c.Monitor.Heuristic,
		Prober:          c.Prober(),
		LatencyEndpoint: c.Probe.LatencyURL,
		SampleBytes:     c.Probe.SampleBytes,
		DownloadTimeout: c.Probe.DownloadTimeout,
		LatencySamples:  c.Probe.LatencySamples,
	}
}

// Environment returns the host environment described by the host section.
func (c *Config) Environment() *host.Environment {
	e := host.New()
	e.WatchInterval = c.Host.WatchInterval
	e.SaveData = c.Host.SaveData
	return e
}
