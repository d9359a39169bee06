package model

// NetworkType is the class of link the host is currently using. The string
// values are part of the public data contract and are serialized as-is.
type NetworkType string

// Known network types.
const (
	TypeUnknown    NetworkType = "unknown"
	TypeEthernet   NetworkType = "ethernet"
	TypeWiFi       NetworkType = "wifi"
	TypeCellular   NetworkType = "cellular"
	TypeCellular2G NetworkType = "cellular_2g"
	TypeCellular3G NetworkType = "cellular_3g"
	TypeCellular4G NetworkType = "cellular_4g"
	TypeCellular5G NetworkType = "cellular_5g"
	TypeOffline    NetworkType = "offline"
)

// Valid reports whether t is one of the known network types.
func (t NetworkType) Valid() bool {
	switch t {
	case TypeUnknown, TypeEthernet, TypeWiFi, TypeCellular, TypeCellular2G,
		TypeCellular3G, TypeCellular4G, TypeCellular5G, TypeOffline:
		return true
	}
	return false
}

// IsCellular reports whether t is any cellular type, with or without a
// known generation.
func (t NetworkType) IsCellular() bool {
	switch t {
	case TypeCellular, TypeCellular2G, TypeCellular3G, TypeCellular4G, TypeCellular5G:
		return true
	}
	return false
}

// NetworkSpeed is a coarse band over the downlink throughput.
type NetworkSpeed string

// Known speed bands. Bounds are in Mbps; upper bounds are exclusive.
const (
	SpeedUnknown   NetworkSpeed = "unknown"   // no data
	SpeedSlow      NetworkSpeed = "slow"      // < 0.5
	SpeedModerate  NetworkSpeed = "moderate"  // [0.5, 2)
	SpeedGood      NetworkSpeed = "good"      // [2, 10)
	SpeedExcellent NetworkSpeed = "excellent" // >= 10
)

// Valid reports whether s is one of the known speed bands.
func (s NetworkSpeed) Valid() bool {
	switch s {
	case SpeedUnknown, SpeedSlow, SpeedModerate, SpeedGood, SpeedExcellent:
		return true
	}
	return false
}
