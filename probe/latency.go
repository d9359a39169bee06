package probe

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/m-lab/go/warnonerror"

	"github.com/m-lab/netmon/logging"
	"github.com/m-lab/netmon/metrics"
)

// MeasureLatency performs samples sequential HEAD round trips to endpoint
// and returns the mean round-trip time in milliseconds. A failed round trip
// is logged and left out; it is not retried. When more than two round trips
// succeed the fastest and the slowest are discarded before averaging.
//
// It fails with ErrNoSamples when no round trip succeeds. A canceled or
// expired ctx aborts the whole measurement.
func (p *Prober) MeasureLatency(ctx context.Context, endpoint string, samples int) (float64, error) {
	ms, err := p.measureLatency(ctx, endpoint, samples)
	if err != nil {
		metrics.ProbeCount.WithLabelValues("latency", "error").Inc()
		metrics.ProbeErrors.WithLabelValues("latency", errorLabel(err)).Inc()
		return 0, err
	}
	metrics.ProbeCount.WithLabelValues("latency", "ok").Inc()
	return ms, nil
}

func (p *Prober) measureLatency(ctx context.Context, endpoint string, samples int) (float64, error) {
	if samples <= 0 {
		samples = DefaultLatencySamples
	}
	rtts := make([]float64, 0, samples)
	for i := 0; i < samples; i++ {
		if i > 0 && p.Pacing > 0 {
			if err := p.sleep(ctx, p.Pacing); err != nil {
				return 0, classify(ctx, err)
			}
		}
		if err := ctx.Err(); err != nil {
			return 0, classify(ctx, err)
		}
		rtt, err := p.roundTrip(ctx, endpoint)
		if err != nil {
			logging.Logger.WithError(err).WithField("attempt", i).Warn("latency: round trip failed")
			continue
		}
		metrics.RoundTrip.Observe(rtt.Seconds())
		rtts = append(rtts, float64(rtt)/float64(time.Millisecond))
	}
	if len(rtts) == 0 {
		return 0, fmt.Errorf("%w: %d attempts to %s", ErrNoSamples, samples, endpoint)
	}
	mean := TrimmedMean(rtts)
	logging.Logger.WithFields(log.Fields{
		"samples":  len(rtts),
		"attempts": samples,
		"mean_ms":  mean,
	}).Debug("latency: done")
	return mean, nil
}

// roundTrip times one cache busted HEAD request. Any HTTP response counts
// as a completed round trip.
func (p *Prober) roundTrip(ctx context.Context, endpoint string) (time.Duration, error) {
	target, err := cacheBust(endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	timeout := p.LatencyTimeout
	if timeout <= 0 {
		timeout = DefaultLatencyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
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
	elapsed := clk.Since(start)
	warnonerror.Close(resp.Body, "latency: ignoring resp.Body.Close result")
	return elapsed, nil
}

// sleep waits for d on the prober clock or until ctx is done.
func (p *Prober) sleep(ctx context.Context, d time.Duration) error {
	t := p.clock().Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
