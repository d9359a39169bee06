package model

// Descriptor is the partially populated connection record exposed by the
// host. Every field may be absent.
type Descriptor struct {
	// Type is the physical link type ("ethernet", "wifi", "cellular", ...).
	Type *string `json:"type,omitempty"`

	// EffectiveType is the effective generation ("slow-2g", "2g", "3g", "4g").
	EffectiveType *string `json:"effectiveType,omitempty"`

	// Downlink is the downlink estimate in Mbps.
	Downlink *float64 `json:"downlink,omitempty"`

	// RTT is the round-trip estimate in milliseconds.
	RTT *float64 `json:"rtt,omitempty"`

	// SaveData is the reduced data usage preference.
	SaveData *bool `json:"saveData,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Equal reports whether d and o are field-wise equal, absent fields
// included.
func (d Descriptor) Equal(o Descriptor) bool {
	return equalPtr(d.Type, o.Type) &&
		equalPtr(d.EffectiveType, o.EffectiveType) &&
		equalPtr(d.Downlink, o.Downlink) &&
		equalPtr(d.RTT, o.RTT) &&
		equalPtr(d.SaveData, o.SaveData)
}
