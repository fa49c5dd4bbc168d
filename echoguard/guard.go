// Package echoguard suppresses outbound forwarding of pin changes that a
// consumer applies because of a remote notification.
//
// A consumer wraps every remote-sourced update in Apply (one pin) or
// ApplyAll (snapshots). Its local change handlers call Suppressed before
// forwarding and skip the send while the pin is being applied remotely:
//
//	guard.Apply("S0", func() { panel.Set("S0", true) })
//
//	func (p *Panel) onChange(pin string, v bool) {
//		if guard.Suppressed(pin) {
//			return
//		}
//		agent.SendPinToggled(ctx, pin, v)
//	}
//
// Suppression is counted, not flagged, so overlapping applications from
// concurrent notifications never clear each other. It is keyed by pin, so a
// local toggle of one pin still forwards while another pin is being applied.
package echoguard

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/c360/alusync/pins"
)

// Guard is safe for concurrent use. One guard serves one consumer.
type Guard struct {
	all atomic.Int32

	mu    sync.Mutex
	byPin map[string]int
}

// New returns a guard with nothing suppressed.
func New() *Guard {
	return &Guard{byPin: make(map[string]int)}
}

func key(pin string) string {
	if canonical, ok := pins.Normalize(pin); ok {
		return canonical
	}
	return strings.ToUpper(strings.TrimSpace(pin))
}

// Enter suppresses pin until the returned exit func is called. Calling exit
// more than once has no further effect.
func (g *Guard) Enter(pin string) (exit func()) {
	k := key(pin)
	g.mu.Lock()
	g.byPin[k]++
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			if g.byPin[k]--; g.byPin[k] <= 0 {
				delete(g.byPin, k)
			}
			g.mu.Unlock()
		})
	}
}

// EnterAll suppresses every pin until the returned exit func is called.
func (g *Guard) EnterAll() (exit func()) {
	g.all.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { g.all.Add(-1) })
	}
}

// Apply runs fn with pin suppressed. Suppression is lowered when fn
// returns, including by panic.
func (g *Guard) Apply(pin string, fn func()) {
	exit := g.Enter(pin)
	defer exit()
	fn()
}

// ApplyAll runs fn with every pin suppressed.
func (g *Guard) ApplyAll(fn func()) {
	exit := g.EnterAll()
	defer exit()
	fn()
}

// Suppressed reports whether a change to pin must not be forwarded.
func (g *Guard) Suppressed(pin string) bool {
	if g.all.Load() > 0 {
		return true
	}
	k := key(pin)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.byPin[k] > 0
}

// Active reports whether any suppression is in progress.
func (g *Guard) Active() bool {
	if g.all.Load() > 0 {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.byPin) > 0
}
