// Package persist writes finished capture results to local storage. The
// contract with the capture core is narrow: raw bytes plus an orientation
// and a desired output kind in, a final path or a write error out. The
// buffer is handed off exactly once; the core's ownership ends here.
package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-camkit/pkg/capture"
	"github.com/teslashibe/go-camkit/pkg/device"
)

// Kind selects the output container.
type Kind int

const (
	// KindConverted writes the converted image (JPEG).
	KindConverted Kind = iota
	// KindRawContainer writes the unprocessed sensor dump.
	KindRawContainer
)

// ErrEmptyResult indicates a result with no buffer data.
var ErrEmptyResult = errors.New("persist: empty capture result")

// Writer saves capture results under a fixed directory.
type Writer struct {
	dir string
}

// NewWriter creates a writer rooted at dir, creating it if needed.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("persist: create output dir: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// Save writes the result's bytes and returns the final path. The result is
// still owned by the caller, who releases it after Save returns.
func (w *Writer) Save(res *capture.StillResult, kind Kind) (string, error) {
	if res == nil || res.Buffer == nil || len(res.Buffer.Data) == 0 {
		return "", ErrEmptyResult
	}

	ext := ".jpg"
	if kind == KindRawContainer || res.Format == device.FormatRAW {
		ext = ".raw"
	}
	name := fmt.Sprintf("IMG_%s_%s%s",
		time.Now().Format("20060102_150405"),
		uuid.New().String()[:8],
		ext)
	path := filepath.Join(w.dir, name)

	if err := os.WriteFile(path, res.Buffer.Data, 0o644); err != nil {
		return "", fmt.Errorf("persist: write %s: %w", path, err)
	}
	return path, nil
}
