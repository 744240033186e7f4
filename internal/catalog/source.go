package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aylaurquizo/KTPHackathon/internal/backend"
)

// DefaultFallbackFile is where the local catalog document is read from when none is configured.
const DefaultFallbackFile = "public/data/supplements.json"

// ErrSourceUnavailable marks a source that cannot be consulted at all (e.g. no backend configured).
var ErrSourceUnavailable = errors.New("catalog: source unavailable")

// ErrSourceEmpty marks a source that answered with no rows. Only the backend reports it: an empty
// backend is treated as unavailable, while an empty local document is a valid (empty) catalog.
var ErrSourceEmpty = errors.New("catalog: source returned no products")

// Source is one step of the fallback chain.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Product, error)
}

// BoxLister is the slice of the Backend Data Client the catalog needs.
type BoxLister interface {
	MysteryBoxes(ctx context.Context, category string) ([]backend.Box, error)
}

// BackendSource reads every mystery box from the hosted backend.
type BackendSource struct {
	boxes BoxLister
}

// NewBackendSource wraps boxes. A nil lister yields a source that always reports ErrSourceUnavailable.
func NewBackendSource(boxes BoxLister) *BackendSource {
	return &BackendSource{boxes: boxes}
}

func (s *BackendSource) Name() string { return "backend" }

func (s *BackendSource) Fetch(ctx context.Context) ([]Product, error) {
	if s == nil || isNilLister(s.boxes) {
		return nil, ErrSourceUnavailable
	}
	boxes, err := s.boxes.MysteryBoxes(ctx, "")
	if err != nil {
		return nil, err
	}
	if len(boxes) == 0 {
		return nil, ErrSourceEmpty
	}
	products := make([]Product, 0, len(boxes))
	for _, box := range boxes {
		products = append(products, FromBox(box))
	}
	return products, nil
}

// isNilLister catches a typed nil *backend.DataClient stored in the interface.
func isNilLister(l BoxLister) bool {
	if l == nil {
		return true
	}
	dc, ok := l.(*backend.DataClient)
	return ok && dc == nil
}

// FileSource reads a JSON array of products from disk.
type FileSource struct {
	path     string
	readFile func(string) ([]byte, error)
}

// NewFileSource reads from path, or DefaultFallbackFile when path is blank.
func NewFileSource(path string) *FileSource {
	if strings.TrimSpace(path) == "" {
		path = DefaultFallbackFile
	}
	return &FileSource{path: path, readFile: os.ReadFile}
}

func (s *FileSource) Name() string { return "local-file" }

// Path returns the document location.
func (s *FileSource) Path() string { return s.path }

func (s *FileSource) Fetch(ctx context.Context) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := s.readFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", s.path, err)
	}
	var products []Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", s.path, err)
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

// SampleSource serves the built-in boxes. It cannot fail.
type SampleSource struct{}

func (SampleSource) Name() string { return "sample" }

func (SampleSource) Fetch(context.Context) ([]Product, error) {
	return SampleBoxes(), nil
}
