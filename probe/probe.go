// Package probe implements the active measurements: a download throughput
// probe and a round-trip latency probe. Probes are independent, stateless
// and safe to run concurrently.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Defaults applied when the caller passes a zero value.
const (
	DefaultSampleBytes     = 1000000
	DefaultDownloadTimeout = 10 * time.Second
	DefaultLatencySamples  = 5
	DefaultPacing          = 200 * time.Millisecond
	DefaultLatencyTimeout  = 5 * time.Second
)

// CacheBustParam is the query parameter carrying a unique token on every
// probe request so that caches along the path never answer for the server.
const CacheBustParam = "cb"

// SizeParam is the query parameter telling the server how many bytes the
// download probe wants.
const SizeParam = "size"

// Errors returned by the probes. They are wrapped, use errors.Is.
var (
	ErrTimeout     = errors.New("probe timed out")
	ErrProbeFailed = errors.New("probe failed")
	ErrNoSamples   = errors.New("no successful latency samples")
)

// Prober runs active measurements against HTTP endpoints.
type Prober struct {
	// Client performs the requests. Nil means http.DefaultClient.
	Client *http.Client

	// Clock measures durations and paces latency samples. Nil means the
	// wall clock.
	Clock clock.Clock

	// DownloadURL serves a payload of the size given in SizeParam.
	DownloadURL string

	// Pacing is the delay between two latency round trips. Zero disables
	// pacing.
	Pacing time.Duration

	// LatencyTimeout bounds each latency round trip. Zero means
	// DefaultLatencyTimeout.
	LatencyTimeout time.Duration
}

// New returns a Prober with default settings downloading from downloadURL.
func New(downloadURL string) *Prober {
	return &Prober{
		Client:         &http.Client{},
		Clock:          clock.New(),
		DownloadURL:    downloadURL,
		Pacing:         DefaultPacing,
		LatencyTimeout: DefaultLatencyTimeout,
	}
}

func (p *Prober) client() *http.Client {
	if p.Client == nil {
		return http.DefaultClient
	}
	return p.Client
}

func (p *Prober) clock() clock.Clock {
	if p.Clock == nil {
		return clock.New()
	}
	return p.Clock
}

// cacheBust returns raw with the extra query values and a fresh cache
// busting token.
func cacheBust(raw string, extra url.Values) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, vs := range extra {
		q[k] = vs
	}
	q.Set(CacheBustParam, uuid.NewString())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// classify wraps err with ErrTimeout when the deadline of ctx expired or the
// transport reported a timeout, and with ErrProbeFailed otherwise.
func classify(ctx context.Context, err error) error {
	var ne net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrProbeFailed, err)
}

// errorLabel returns the metric label for a probe error.
func errorLabel(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNoSamples):
		return "no-samples"
	default:
		return "probe-failed"
	}
}
