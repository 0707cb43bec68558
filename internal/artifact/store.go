// Package artifact stores rendered documents under their document number,
// e.g. BDC-2025-004.pdf. Saving is all-or-nothing: a failed render or write
// never leaves a partial artifact behind.
package artifact

import (
	"context"
	"fmt"
	"io"

	"github.com/atelier-erp/atelier-erp/internal/shared"
)

// ErrNotFound indicates the artifact does not exist.
var ErrNotFound = fmt.Errorf("artifact: %w", shared.ErrNotFound)

// Store persists rendered documents by name.
type Store interface {
	Save(ctx context.Context, name string, data []byte) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
}
