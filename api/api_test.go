package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-lab/go/rtx"

	"github.com/m-lab/netmon/env/envtest"
	"github.com/m-lab/netmon/model"
	"github.com/m-lab/netmon/monitor"
	"github.com/m-lab/netmon/probe"
	"github.com/m-lab/netmon/probeserver"
)

func newMonitor(t *testing.T, e *envtest.Environment, cfg monitor.Config) *monitor.Monitor {
	t.Helper()
	m, err := monitor.New(e, cfg)
	rtx.Must(err, "Could not create monitor")
	t.Cleanup(m.Destroy)
	return m
}

func decode[T any](t *testing.T, rw *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	rtx.Must(json.Unmarshal(rw.Body.Bytes(), &v), "Could not decode %q", rw.Body.String())
	return v
}

func TestHandler_NetworkAndRefresh(t *testing.T) {
	e := envtest.New(&model.Descriptor{Type: model.String("ethernet"), Downlink: model.Float(100)})
	mux := New(newMonitor(t, e, monitor.Config{})).Mux()

	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, NetworkPath, nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("GET %s = %d", NetworkPath, rw.Code)
	}
	got := decode[model.NetworkInfo](t, rw)
	if got.Type != model.TypeEthernet || got.Speed != model.SpeedExcellent {
		t.Errorf("GET %s = %+v", NetworkPath, got)
	}

	e.SetDescriptor(model.Descriptor{Type: model.String("wifi"), Downlink: model.Float(1)})
	rw = httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, RefreshPath, nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("POST %s = %d", RefreshPath, rw.Code)
	}
	got = decode[model.NetworkInfo](t, rw)
	if got.Type != model.TypeWiFi || got.Speed != model.SpeedModerate {
		t.Errorf("POST %s = %+v", RefreshPath, got)
	}
}

func TestHandler_Methods(t *testing.T) {
	mux := New(newMonitor(t, envtest.New(nil), monitor.Config{})).Mux()
	for _, tt := range []struct{ method, path string }{
		{http.MethodPost, NetworkPath},
		{http.MethodGet, RefreshPath},
		{http.MethodGet, MeasurePath},
	} {
		rw := httptest.NewRecorder()
		mux.ServeHTTP(rw, httptest.NewRequest(tt.method, tt.path, nil))
		if rw.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s = %d, want 405", tt.method, tt.path, rw.Code)
		}
	}
}

func TestHandler_Measure(t *testing.T) {
	probes := httptest.NewServer(probeserver.Mux(probeserver.Handler{}))
	defer probes.Close()

	p := probe.New(probes.URL + probeserver.DownloadPath)
	p.Pacing = time.Millisecond
	m := newMonitor(t, envtest.New(nil), monitor.Config{
		Prober:          p,
		LatencyEndpoint: probes.URL + probeserver.PingPath,
		SampleBytes:     100000,
		LatencySamples:  3,
	})
	mux := New(m).Mux()

	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, MeasurePath, nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("POST %s = %d: %s", MeasurePath, rw.Code, rw.Body.String())
	}
	res := decode[model.MeasurementResult](t, rw)
	if res.DownloadSpeedMbps <= 0 || res.LatencyMs < 0 {
		t.Errorf("POST %s = %+v", MeasurePath, res)
	}
}

func TestHandler_MeasureWithoutProber(t *testing.T) {
	mux := New(newMonitor(t, envtest.New(nil), monitor.Config{})).Mux()
	rw := httptest.NewRecorder()
	mux.ServeHTTP(rw, httptest.NewRequest(http.MethodPost, MeasurePath, nil))
	if rw.Code != http.StatusNotImplemented {
		t.Errorf("POST %s = %d, want 501", MeasurePath, rw.Code)
	}
	if got := decode[errorResponse](t, rw); got.Error == "" {
		t.Error("error response has no message")
	}
}

func TestMeasureStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{monitor.ErrNoProber, http.StatusNotImplemented},
		{fmt.Errorf("%w: deadline", probe.ErrTimeout), http.StatusGatewayTimeout},
		{fmt.Errorf("%w: 500", probe.ErrProbeFailed), http.StatusBadGateway},
		{errors.New("other"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := measureStatus(tt.err); got != tt.want {
			t.Errorf("measureStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
