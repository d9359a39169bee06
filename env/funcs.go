package env

import "github.com/m-lab/netmon/model"

// Funcs adapts plain functions to the reader capabilities. Only the non-nil
// fields are consulted; a nil field behaves like a missing capability.
//
// Funcs only implements the reader interfaces. Environments that also emit
// change notifications should implement the notifier interfaces themselves.
type Funcs struct {
	OnlineFunc     func() bool
	ConnectionFunc func() (model.Descriptor, bool)
}

// Online implements OnlineReader.
func (f Funcs) Online() bool {
	if f.OnlineFunc == nil {
		return true
	}
	return f.OnlineFunc()
}

// Connection implements ConnectionReader.
func (f Funcs) Connection() (model.Descriptor, bool) {
	if f.ConnectionFunc == nil {
		return model.Descriptor{}, false
	}
	return f.ConnectionFunc()
}
