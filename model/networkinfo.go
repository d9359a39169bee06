// Package model contains the data structures exchanged by netmon: the raw
// connection descriptor read from the host, the network snapshot derived
// from it and the result of an active measurement.
package model

// The NetworkInfo struct is a snapshot of the host's network state. A
// snapshot is never modified once produced. This structure is meant to
// be serialised as JSON and its field names must not change.
type NetworkInfo struct {
	// Online is the host reachability flag.
	Online bool `json:"online"`

	// Type is the classified link type.
	Type NetworkType `json:"type"`

	// Speed is the classified downlink band.
	Speed NetworkSpeed `json:"speed"`

	// Downlink is the downlink estimate in Mbps, when known.
	Downlink *float64 `json:"downlink,omitempty"`

	// RTT is the round-trip estimate in milliseconds, when known.
	RTT *float64 `json:"rtt,omitempty"`

	// EffectiveType is the raw effective generation string (e.g. "4g"),
	// when known.
	EffectiveType *string `json:"effectiveType,omitempty"`

	// SaveData is the user's reduced data usage preference, when known.
	SaveData *bool `json:"saveData,omitempty"`
}

// Equal reports whether n and o are field-wise equal. Optional fields are
// equal only when both are absent or both are present with the same value.
func (n NetworkInfo) Equal(o NetworkInfo) bool {
	return n.Online == o.Online &&
		n.Type == o.Type &&
		n.Speed == o.Speed &&
		equalPtr(n.Downlink, o.Downlink) &&
		equalPtr(n.RTT, o.RTT) &&
		equalPtr(n.EffectiveType, o.EffectiveType) &&
		equalPtr(n.SaveData, o.SaveData)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
