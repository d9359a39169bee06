package access

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/procfs"

	"github.com/m-lab/netmon/logging"
)

// TxController rejects probes while the named device transmits faster than
// a limit, so download probes do not compete with each other for the link.
type TxController struct {
	period  time.Duration
	device  string
	current uint64
	limit   uint64
	pfs     procfs.FS
}

// NewTxController creates a TxController that samples device under procPath
// every second. Callers should run Watch in a goroutine to regularly update
// the current rate. A zero rate accepts every request.
func NewTxController(procPath, device string, rate uint64) (*TxController, error) {
	pfs, err := procfs.NewFS(procPath)
	if err != nil {
		return nil, err
	}
	// Read the device once to verify that the device exists.
	if _, err := readNetDevLine(pfs, device); err != nil {
		return nil, err
	}
	return &TxController{
		device: device,
		limit:  rate,
		pfs:    pfs,
		period: time.Second,
	}, nil
}

// Limit enforces that the TxController rate limit is respected before running
// the next handler.
func (tx *TxController) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.LoadUint64(&tx.current)
		if tx.limit > 0 && cur > tx.limit {
			accessRequests.WithLabelValues("tx", "rejected").Inc()
			// 503 - https://tools.ietf.org/html/rfc7231#section-6.6.4
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		accessRequests.WithLabelValues("tx", "accepted").Inc() // accepted != success.
		next.ServeHTTP(w, r)
	})
}

// Current returns the last sampled transmit rate in bits per period.
func (tx *TxController) Current() uint64 {
	return atomic.LoadUint64(&tx.current)
}

// Watch updates the current rate every period. If the context is cancelled,
// the context error is returned. If the rate limit is zero, Watch returns
// immediately.
func (tx *TxController) Watch(ctx context.Context) error {
	if tx.limit == 0 {
		return nil
	}
	t := time.NewTicker(tx.period)
	defer t.Stop()

	v, err := readNetDevLine(tx.pfs, tx.device)
	if err != nil {
		return err
	}
	for prev := v.TxBytes; ; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		v, err := readNetDevLine(tx.pfs, tx.device)
		if err != nil {
			logging.Logger.WithError(err).Warn("access: cannot read /proc/net/dev")
			continue
		}
		// A counter reset reads as zero rather than wrapping.
		var cur uint64
		if v.TxBytes >= prev {
			cur = (v.TxBytes - prev) * 8
		}
		atomic.StoreUint64(&tx.current, cur)
		prev = v.TxBytes
	}
}

func readNetDevLine(pfs procfs.FS, device string) (procfs.NetDevLine, error) {
	nd, err := pfs.NetDev()
	if err != nil {
		return procfs.NetDevLine{}, err
	}
	v, ok := nd[device]
	if !ok {
		return procfs.NetDevLine{}, fmt.Errorf("access: device not found: %q", device)
	}
	return v, nil
}
