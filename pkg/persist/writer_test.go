package persist

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/teslashibe/go-camkit/pkg/capture"
	"github.com/teslashibe/go-camkit/pkg/device"
)

func stillResult(format device.PixelFormat, data []byte) *capture.StillResult {
	return &capture.StillResult{
		Buffer: device.NewBuffer(12345, format, 4, 4, data, nil),
		Meta:   &device.Result{Timestamp: 12345},
		Format: format,
	}
}

func TestSaveConverted(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	data := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	path, err := w.Save(stillResult(device.FormatJPEG, data), KindConverted)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if filepath.Dir(path) != dir {
		t.Errorf("saved outside the output dir: %s", path)
	}
	name := filepath.Base(path)
	if !strings.HasPrefix(name, "IMG_") || !strings.HasSuffix(name, ".jpg") {
		t.Errorf("unexpected file name %q", name)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != string(data) {
		t.Error("saved bytes differ from the buffer")
	}
}

func TestSaveRawContainer(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	path, err := w.Save(stillResult(device.FormatRAW, []byte{1, 2, 3}), KindRawContainer)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.HasSuffix(path, ".raw") {
		t.Errorf("raw container saved as %q, want .raw", path)
	}
}

func TestSaveRawFormatForcesRawExtension(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	// A raw-format buffer never masquerades as a JPEG, whatever kind the
	// caller asked for.
	path, err := w.Save(stillResult(device.FormatRAW, []byte{1}), KindConverted)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.HasSuffix(path, ".raw") {
		t.Errorf("raw buffer saved as %q, want .raw", path)
	}
}

func TestSaveEmptyResult(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	for _, res := range []*capture.StillResult{
		nil,
		{},
		stillResult(device.FormatJPEG, nil),
	} {
		if _, err := w.Save(res, KindConverted); !errors.Is(err, ErrEmptyResult) {
			t.Errorf("Save(%+v) error = %v, want ErrEmptyResult", res, err)
		}
	}
}

func TestSaveNamesAreUnique(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		path, err := w.Save(stillResult(device.FormatJPEG, []byte{1}), KindConverted)
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if seen[path] {
			t.Fatalf("duplicate path %s", path)
		}
		seen[path] = true
	}
}
