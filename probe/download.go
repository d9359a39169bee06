package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/m-lab/go/warnonerror"

	"github.com/m-lab/netmon/logging"
	"github.com/m-lab/netmon/metrics"
)

// MeasureDownloadSpeed downloads a cache busted payload of sampleBytes bytes
// and returns the throughput in Mbps, timed from issuing the request to the
// end of the body. A zero sampleBytes or timeout selects the default.
//
// The rate is computed over the bytes actually received, which equals
// sampleBytes for a conforming server.
func (p *Prober) MeasureDownloadSpeed(ctx context.Context, sampleBytes int64, timeout time.Duration) (float64, error) {
	mbps, err := p.measureDownloadSpeed(ctx, sampleBytes, timeout)
	if err != nil {
		metrics.ProbeCount.WithLabelValues("download", "error").Inc()
		metrics.ProbeErrors.WithLabelValues("download", errorLabel(err)).Inc()
		return 0, err
	}
	metrics.ProbeCount.WithLabelValues("download", "ok").Inc()
	metrics.DownloadRate.Observe(mbps)
	return mbps, nil
}

func (p *Prober) measureDownloadSpeed(ctx context.Context, sampleBytes int64, timeout time.Duration) (float64, error) {
	if sampleBytes <= 0 {
		sampleBytes = DefaultSampleBytes
	}
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	target, err := cacheBust(p.DownloadURL, url.Values{
		SizeParam: {strconv.FormatInt(sampleBytes, 10)},
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	clk := p.clock()
	start := clk.Now()
	resp, err := p.client().Do(req)
	if err != nil {
		return 0, classify(ctx, err)
	}
	defer warnonerror.Close(resp.Body, "download: ignoring resp.Body.Close result")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: unexpected status %q", ErrProbeFailed, resp.Status)
	}
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return 0, classify(ctx, err)
	}
	elapsed := clk.Since(start)
	if n == 0 || elapsed <= 0 {
		return 0, fmt.Errorf("%w: received %d bytes in %s", ErrProbeFailed, n, elapsed)
	}
	if n != sampleBytes {
		logging.Logger.WithFields(log.Fields{
			"requested": sampleBytes,
			"received":  n,
		}).Warn("download: payload size differs from the requested size")
	}
	mbps := float64(n) / 1e6 * 8 / elapsed.Seconds()
	logging.Logger.WithFields(log.Fields{
		"bytes":   n,
		"elapsed": elapsed.Seconds(),
		"mbps":    mbps,
	}).Debug("download: done")
	return mbps, nil
}
