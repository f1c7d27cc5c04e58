package flash

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/berfenger/solarcharger/internal/core/port"
	"github.com/spf13/afero"
)

var ErrPageSize = errors.New("block size does not match page size")

// FilePage emulates one erasable flash page with a file.
// A write lands in a temporary file first and is renamed over the page.
type FilePage struct {
	fs       afero.Fs
	path     string
	pageSize int
}

var _ port.BlockStorage = (*FilePage)(nil)

func NewFilePage(fs afero.Fs, path string, pageSize int) *FilePage {
	return &FilePage{
		fs:       fs,
		path:     path,
		pageSize: pageSize,
	}
}

func NewOsFilePage(path string, pageSize int) *FilePage {
	return NewFilePage(afero.NewOsFs(), path, pageSize)
}

func (p *FilePage) ReadBlock() ([]byte, error) {
	data, err := afero.ReadFile(p.fs, p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, port.ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (p *FilePage) WriteBlock(data []byte) error {
	if len(data) != p.pageSize {
		return fmt.Errorf("%w: %d != %d", ErrPageSize, len(data), p.pageSize)
	}
	if err := p.fs.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	tmp := p.path + ".tmp"
	if err := afero.WriteFile(p.fs, tmp, data, 0o644); err != nil {
		return err
	}
	return p.fs.Rename(tmp, p.path)
}
