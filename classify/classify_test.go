package classify

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/m-lab/netmon/env"
	"github.com/m-lab/netmon/env/envtest"
	"github.com/m-lab/netmon/model"
)

func TestType(t *testing.T) {
	tests := []struct {
		name   string
		online bool
		desc   model.Descriptor
		ok     bool
		want   model.NetworkType
	}{
		{
			name: "offline-overrides-everything",
			desc: model.Descriptor{Type: model.String("ethernet"), Downlink: model.Float(100), RTT: model.Float(5)},
			ok:   true,
			want: model.TypeOffline,
		},
		{
			name:   "no-descriptor",
			online: true,
			want:   model.TypeUnknown,
		},
		{
			name:   "ethernet",
			online: true,
			desc:   model.Descriptor{Type: model.String("ethernet")},
			ok:     true,
			want:   model.TypeEthernet,
		},
		{
			name:   "wifi-ignores-effective-type",
			online: true,
			desc:   model.Descriptor{Type: model.String("wifi"), EffectiveType: model.String("2g")},
			ok:     true,
			want:   model.TypeWiFi,
		},
		{
			name:   "cellular-without-generation",
			online: true,
			desc:   model.Descriptor{Type: model.String("cellular")},
			ok:     true,
			want:   model.TypeCellular,
		},
		{
			name:   "cellular-slow-2g",
			online: true,
			desc:   model.Descriptor{Type: model.String("cellular"), EffectiveType: model.String("slow-2g")},
			ok:     true,
			want:   model.TypeCellular2G,
		},
		{
			name:   "cellular-3g",
			online: true,
			desc:   model.Descriptor{Type: model.String("cellular"), EffectiveType: model.String("3g")},
			ok:     true,
			want:   model.TypeCellular3G,
		},
		{
			name:   "cellular-4g-mixed-case",
			online: true,
			desc:   model.Descriptor{Type: model.String("Cellular"), EffectiveType: model.String(" 4G ")},
			ok:     true,
			want:   model.TypeCellular4G,
		},
		{
			name:   "cellular-unrecognized-generation",
			online: true,
			desc:   model.Descriptor{Type: model.String("cellular"), EffectiveType: model.String("5g")},
			ok:     true,
			want:   model.TypeCellular,
		},
		{
			name:   "other-type",
			online: true,
			desc:   model.Descriptor{Type: model.String("bluetooth"), Downlink: model.Float(100), RTT: model.Float(5)},
			ok:     true,
			want:   model.TypeUnknown,
		},
		{
			name:   "effective-type-only-2g",
			online: true,
			desc:   model.Descriptor{EffectiveType: model.String("2g")},
			ok:     true,
			want:   model.TypeCellular2G,
		},
		{
			name:   "effective-type-only-4g",
			online: true,
			desc:   model.Descriptor{EffectiveType: model.String("4g")},
			ok:     true,
			want:   model.TypeCellular4G,
		},
		{
			name:   "effective-type-only-unrecognized-skips-heuristic",
			online: true,
			desc:   model.Descriptor{EffectiveType: model.String("unknown"), Downlink: model.Float(100), RTT: model.Float(5)},
			ok:     true,
			want:   model.TypeUnknown,
		},
		{
			name:   "heuristic-5g",
			online: true,
			desc:   model.Descriptor{Downlink: model.Float(50), RTT: model.Float(29.9)},
			ok:     true,
			want:   model.TypeCellular5G,
		},
		{
			name:   "heuristic-rtt-at-bound",
			online: true,
			desc:   model.Descriptor{Downlink: model.Float(80), RTT: model.Float(30)},
			ok:     true,
			want:   model.TypeUnknown,
		},
		{
			name:   "heuristic-downlink-below-bound",
			online: true,
			desc:   model.Descriptor{Downlink: model.Float(49.9), RTT: model.Float(10)},
			ok:     true,
			want:   model.TypeUnknown,
		},
		{
			name:   "heuristic-needs-rtt",
			online: true,
			desc:   model.Descriptor{Downlink: model.Float(500)},
			ok:     true,
			want:   model.TypeUnknown,
		},
		{
			name:   "empty-descriptor",
			online: true,
			ok:     true,
			want:   model.TypeUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Type(tt.online, tt.desc, tt.ok)
			if got != tt.want {
				t.Errorf("Type() = %q, want %q", got, tt.want)
			}
			if again := Type(tt.online, tt.desc, tt.ok); again != got {
				t.Errorf("Type() is not deterministic: %q then %q", got, again)
			}
		})
	}
}

func TestHeuristic_Type(t *testing.T) {
	h := Heuristic{MinDownlinkMbps: 20, MaxRTTMillis: 50}
	d := model.Descriptor{Downlink: model.Float(25), RTT: model.Float(40)}
	if got := h.Type(true, d, true); got != model.TypeCellular5G {
		t.Errorf("Heuristic.Type() = %q, want %q", got, model.TypeCellular5G)
	}
	if got := Type(true, d, true); got != model.TypeUnknown {
		t.Errorf("Type() = %q, want %q", got, model.TypeUnknown)
	}
}

func TestSpeed(t *testing.T) {
	tests := []struct {
		downlink float64
		want     model.NetworkSpeed
	}{
		{0, model.SpeedSlow},
		{0.49, model.SpeedSlow},
		{0.5, model.SpeedModerate},
		{1.99, model.SpeedModerate},
		{2.0, model.SpeedGood},
		{9.99, model.SpeedGood},
		{10.0, model.SpeedExcellent},
		{1000, model.SpeedExcellent},
	}
	for _, tt := range tests {
		d := model.Descriptor{Downlink: model.Float(tt.downlink)}
		if got := Speed(true, d, true); got != tt.want {
			t.Errorf("Speed(%v) = %q, want %q", tt.downlink, got, tt.want)
		}
	}
	if got := Speed(false, model.Descriptor{Downlink: model.Float(50)}, true); got != model.SpeedUnknown {
		t.Errorf("Speed(offline) = %q, want unknown", got)
	}
	if got := Speed(true, model.Descriptor{RTT: model.Float(50)}, true); got != model.SpeedUnknown {
		t.Errorf("Speed(no downlink) = %q, want unknown", got)
	}
	if got := Speed(true, model.Descriptor{}, false); got != model.SpeedUnknown {
		t.Errorf("Speed(no descriptor) = %q, want unknown", got)
	}
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := Speed(true, model.Descriptor{Downlink: model.Float(v)}, true); got != model.SpeedUnknown {
			t.Errorf("Speed(%v) = %q, want unknown", v, got)
		}
	}
}

func TestSnapshot(t *testing.T) {
	tests := []struct {
		name string
		env  any
		want model.NetworkInfo
	}{
		{
			name: "no-capabilities",
			env:  envtest.Minimal{},
			want: model.NetworkInfo{Online: true, Type: model.TypeUnknown, Speed: model.SpeedUnknown},
		},
		{
			name: "offline-keeps-descriptor-fields",
			env: env.Funcs{
				OnlineFunc: func() bool { return false },
				ConnectionFunc: func() (model.Descriptor, bool) {
					return model.Descriptor{Type: model.String("wifi"), Downlink: model.Float(20)}, true
				},
			},
			want: model.NetworkInfo{
				Online:   false,
				Type:     model.TypeOffline,
				Speed:    model.SpeedUnknown,
				Downlink: model.Float(20),
			},
		},
		{
			name: "full-descriptor",
			env: envtest.New(&model.Descriptor{
				Type:          model.String("cellular"),
				EffectiveType: model.String("4g"),
				Downlink:      model.Float(7.5),
				RTT:           model.Float(80),
				SaveData:      model.Bool(true),
			}),
			want: model.NetworkInfo{
				Online:        true,
				Type:          model.TypeCellular4G,
				Speed:         model.SpeedGood,
				Downlink:      model.Float(7.5),
				RTT:           model.Float(80),
				EffectiveType: model.String("4g"),
				SaveData:      model.Bool(true),
			},
		},
		{
			name: "non-finite-estimates-absent",
			env: envtest.New(&model.Descriptor{
				Type:     model.String("wifi"),
				Downlink: model.Float(math.NaN()),
				RTT:      model.Float(math.Inf(1)),
			}),
			want: model.NetworkInfo{
				Online: true,
				Type:   model.TypeWiFi,
				Speed:  model.SpeedUnknown,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Snapshot(tt.env)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Snapshot() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSnapshot_DetachedFromDescriptor(t *testing.T) {
	dl := 3.0
	e := env.Funcs{ConnectionFunc: func() (model.Descriptor, bool) {
		return model.Descriptor{Downlink: &dl}, true
	}}
	info := Snapshot(e)
	dl = 99
	if *info.Downlink != 3.0 {
		t.Errorf("snapshot changed with the descriptor: downlink = %v", *info.Downlink)
	}
}
