// Package classify maps raw connection descriptors to the closed NetworkType
// and NetworkSpeed enumerations, and composes snapshots from an environment.
// All functions are pure.
package classify

import (
	"math"
	"strings"

	"github.com/m-lab/netmon/env"
	"github.com/m-lab/netmon/model"
)

// Heuristic holds the thresholds used to guess a 5G link when the host
// exposes neither a link type nor an effective generation. No host reports
// 5G explicitly, so this is an approximation that may need recalibration
// per deployment.
type Heuristic struct {
	// MinDownlinkMbps is the inclusive downlink lower bound.
	MinDownlinkMbps float64 `yaml:"min_downlink_mbps"`
	// MaxRTTMillis is the exclusive round-trip upper bound.
	MaxRTTMillis float64 `yaml:"max_rtt_ms"`
}

// DefaultHeuristic is used by the package level functions.
var DefaultHeuristic = Heuristic{MinDownlinkMbps: 50, MaxRTTMillis: 30}

// Speed band upper bounds in Mbps.
const (
	slowBelow     = 0.5
	moderateBelow = 2
	goodBelow     = 10
)

// Type classifies the link type with DefaultHeuristic.
func Type(online bool, d model.Descriptor, ok bool) model.NetworkType {
	return DefaultHeuristic.Type(online, d, ok)
}

// Type classifies the link type. The ok argument tells whether a descriptor
// is available at all.
func (h Heuristic) Type(online bool, d model.Descriptor, ok bool) model.NetworkType {
	if !online {
		return model.TypeOffline
	}
	if !ok {
		return model.TypeUnknown
	}
	if d.Type != nil {
		switch normalize(*d.Type) {
		case "ethernet":
			return model.TypeEthernet
		case "wifi":
			return model.TypeWiFi
		case "cellular":
			if d.EffectiveType != nil {
				if t, found := generation(*d.EffectiveType); found {
					return t
				}
			}
			return model.TypeCellular
		}
		return model.TypeUnknown
	}
	if d.EffectiveType != nil {
		if t, found := generation(*d.EffectiveType); found {
			return t
		}
		return model.TypeUnknown
	}
	if d.Downlink != nil && d.RTT != nil &&
		*d.Downlink >= h.MinDownlinkMbps && *d.RTT < h.MaxRTTMillis {
		return model.TypeCellular5G
	}
	return model.TypeUnknown
}

// generation maps an effective type string to a cellular generation.
func generation(effectiveType string) (model.NetworkType, bool) {
	switch normalize(effectiveType) {
	case "slow-2g", "2g":
		return model.TypeCellular2G, true
	case "3g":
		return model.TypeCellular3G, true
	case "4g":
		return model.TypeCellular4G, true
	}
	return model.TypeUnknown, false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Speed classifies the downlink band. It is unknown when the host is offline
// or the downlink estimate is absent or not a finite number.
func Speed(online bool, d model.Descriptor, ok bool) model.NetworkSpeed {
	if !online || !ok || d.Downlink == nil {
		return model.SpeedUnknown
	}
	if v := *d.Downlink; math.IsNaN(v) || math.IsInf(v, 0) {
		return model.SpeedUnknown
	}
	switch v := *d.Downlink; {
	case v < slowBelow:
		return model.SpeedSlow
	case v < moderateBelow:
		return model.SpeedModerate
	case v < goodBelow:
		return model.SpeedGood
	default:
		return model.SpeedExcellent
	}
}

// Snapshot reads e and builds a snapshot with DefaultHeuristic.
func Snapshot(e any) model.NetworkInfo {
	return DefaultHeuristic.Snapshot(e)
}

// Snapshot reads e and builds a snapshot. Descriptor fields are copied
// through unchanged; absent fields stay absent.
func (h Heuristic) Snapshot(e any) model.NetworkInfo {
	online := env.IsOnline(e)
	d, ok := env.ReadDescriptor(e)
	info := model.NetworkInfo{
		Online: online,
		Type:   h.Type(online, d, ok),
		Speed:  Speed(online, d, ok),
	}
	if ok {
		info.Downlink = copyPtr(d.Downlink)
		info.RTT = copyPtr(d.RTT)
		info.EffectiveType = copyPtr(d.EffectiveType)
		info.SaveData = copyPtr(d.SaveData)
	}
	return info
}

// copyPtr detaches the snapshot from memory the environment may reuse.
func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
