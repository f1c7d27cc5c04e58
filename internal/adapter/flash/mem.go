package flash

import (
	"sync"

	"github.com/berfenger/solarcharger/internal/core/port"
)

// MemPage keeps the block in memory. Used by tests and the dry-run mode.
type MemPage struct {
	mu   sync.Mutex
	data []byte

	// ReadError, if set, is returned by ReadBlock.
	ReadError error
	// WriteError, if set, is returned by WriteBlock and the stored block is kept.
	WriteError error
	// Writes counts the successful writes.
	Writes int
}

var _ port.BlockStorage = (*MemPage)(nil)

func NewMemPage() *MemPage {
	return &MemPage{}
}

func (p *MemPage) ReadBlock() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ReadError != nil {
		return nil, p.ReadError
	}
	if p.data == nil {
		return nil, port.ErrBlockNotFound
	}
	return append([]byte(nil), p.data...), nil
}

func (p *MemPage) WriteBlock(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.WriteError != nil {
		return p.WriteError
	}
	p.data = append([]byte(nil), data...)
	p.Writes++
	return nil
}

// Set replaces the stored block without counting a write.
func (p *MemPage) Set(data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = append([]byte(nil), data...)
}
