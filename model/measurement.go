package model

// MeasurementResult is the outcome of an active measurement. It is handed
// to the caller and never folded into a NetworkInfo snapshot.
type MeasurementResult struct {
	// DownloadSpeedMbps is the measured download throughput.
	DownloadSpeedMbps float64 `json:"downloadSpeedMbps"`

	// LatencyMs is the trimmed mean round-trip time.
	LatencyMs float64 `json:"latencyMs"`
}
