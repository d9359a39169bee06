package env

import (
	"math"
	"testing"

	"github.com/m-lab/netmon/model"
)

type offline struct{}

func (offline) Online() bool { return false }

type wired struct{}

func (wired) Connection() (model.Descriptor, bool) {
	return model.Descriptor{Type: model.String("ethernet")}, true
}

func TestIsOnline(t *testing.T) {
	tests := []struct {
		name string
		env  any
		want bool
	}{
		{name: "nil-environment-fails-open", env: nil, want: true},
		{name: "no-capability-fails-open", env: struct{}{}, want: true},
		{name: "offline", env: offline{}, want: false},
		{name: "funcs-without-online", env: Funcs{}, want: true},
		{name: "funcs-offline", env: Funcs{OnlineFunc: func() bool { return false }}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOnline(tt.env); got != tt.want {
				t.Errorf("IsOnline() = %t, want %t", got, tt.want)
			}
		})
	}
}

func TestReadDescriptor(t *testing.T) {
	if _, ok := ReadDescriptor(nil); ok {
		t.Error("ReadDescriptor(nil) should report no descriptor")
	}
	if _, ok := ReadDescriptor(offline{}); ok {
		t.Error("ReadDescriptor() without ConnectionReader should report no descriptor")
	}
	if _, ok := ReadDescriptor(Funcs{}); ok {
		t.Error("ReadDescriptor(Funcs{}) should report no descriptor")
	}
	d, ok := ReadDescriptor(wired{})
	if !ok || d.Type == nil || *d.Type != "ethernet" {
		t.Errorf("ReadDescriptor() = %+v, %t; want ethernet descriptor", d, ok)
	}
}

func TestReadDescriptor_NonFinite(t *testing.T) {
	tests := []struct {
		name     string
		downlink float64
		rtt      float64
	}{
		{name: "nan", downlink: math.NaN(), rtt: math.NaN()},
		{name: "inf", downlink: math.Inf(1), rtt: math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Funcs{ConnectionFunc: func() (model.Descriptor, bool) {
				return model.Descriptor{
					Type:     model.String("wifi"),
					Downlink: model.Float(tt.downlink),
					RTT:      model.Float(tt.rtt),
				}, true
			}}
			d, ok := ReadDescriptor(e)
			if !ok {
				t.Fatal("ReadDescriptor() dropped the whole descriptor")
			}
			if d.Downlink != nil || d.RTT != nil {
				t.Errorf("ReadDescriptor() = downlink %v, rtt %v; want both absent", d.Downlink, d.RTT)
			}
			if d.Type == nil || *d.Type != "wifi" {
				t.Errorf("ReadDescriptor() type = %v, want wifi", d.Type)
			}
		})
	}
}
