// Package envtest provides fake host environments for unit tests.
package envtest

import (
	"sort"
	"sync"

	"github.com/m-lab/netmon/model"
)

// Environment is a mutable fake implementing every env capability. Setters
// fire the matching subscribers synchronously, outside of the internal lock.
type Environment struct {
	mu           sync.Mutex
	online       bool
	desc         model.Descriptor
	hasDesc      bool
	nextID       int
	connectivity map[int]func(bool)
	connection   map[int]func()
}

// New creates an online Environment with the given descriptor. A nil
// descriptor means no descriptor is available.
func New(d *model.Descriptor) *Environment {
	e := &Environment{
		online:       true,
		connectivity: make(map[int]func(bool)),
		connection:   make(map[int]func()),
	}
	if d != nil {
		e.desc, e.hasDesc = *d, true
	}
	return e
}

// Online implements env.OnlineReader.
func (e *Environment) Online() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

// Connection implements env.ConnectionReader.
func (e *Environment) Connection() (model.Descriptor, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.desc, e.hasDesc
}

// NotifyConnectivity implements env.ConnectivityNotifier.
func (e *Environment) NotifyConnectivity(fn func(bool)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.connectivity[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.connectivity, id)
	}
}

// NotifyConnectionChange implements env.ConnectionNotifier.
func (e *Environment) NotifyConnectionChange(fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextID
	e.nextID++
	e.connection[id] = fn
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.connection, id)
	}
}

// SetOnline changes the reachability flag. Connectivity subscribers are
// only fired on a transition.
func (e *Environment) SetOnline(online bool) {
	e.mu.Lock()
	changed := e.online != online
	e.online = online
	e.mu.Unlock()
	if changed {
		e.EmitConnectivity()
	}
}

// SetDescriptor replaces the descriptor and fires connection subscribers.
func (e *Environment) SetDescriptor(d model.Descriptor) {
	e.mu.Lock()
	e.desc, e.hasDesc = d, true
	e.mu.Unlock()
	e.EmitConnectionChange()
}

// ClearDescriptor removes the descriptor and fires connection subscribers.
func (e *Environment) ClearDescriptor() {
	e.mu.Lock()
	e.desc, e.hasDesc = model.Descriptor{}, false
	e.mu.Unlock()
	e.EmitConnectionChange()
}

// EmitConnectivity fires connectivity subscribers with the current flag
// even if nothing changed.
func (e *Environment) EmitConnectivity() {
	e.mu.Lock()
	online := e.online
	fns := make([]func(bool), 0, len(e.connectivity))
	for _, id := range sortedKeys(e.connectivity) {
		fns = append(fns, e.connectivity[id])
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(online)
	}
}

// EmitConnectionChange fires connection subscribers even if nothing changed.
func (e *Environment) EmitConnectionChange() {
	e.mu.Lock()
	fns := make([]func(), 0, len(e.connection))
	for _, id := range sortedKeys(e.connection) {
		fns = append(fns, e.connection[id])
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Subscribers returns the number of live subscriptions of both kinds.
func (e *Environment) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.connectivity) + len(e.connection)
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Minimal is an environment without any capability.
type Minimal struct{}
