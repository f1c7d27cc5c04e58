package telemetry

import (
	"sync"

	"github.com/berfenger/solarcharger/internal/core/port"
)

type Diagnostic struct {
	Tag     string
	Message string
}

// FakeSink records diagnostics for tests.
type FakeSink struct {
	mu   sync.Mutex
	sent []Diagnostic
}

var _ port.TelemetrySink = (*FakeSink)(nil)

func NewFakeSink() *FakeSink {
	return &FakeSink{}
}

func (f *FakeSink) Send(tag string, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, Diagnostic{Tag: tag, Message: message})
}

func (f *FakeSink) Sent() []Diagnostic {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Diagnostic(nil), f.sent...)
}

// Count returns how many diagnostics carried the tag.
func (f *FakeSink) Count(tag string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.sent {
		if d.Tag == tag {
			n++
		}
	}
	return n
}
