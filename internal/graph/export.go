package graph

import (
	"context"
	"io"
)

// Exporter serializes a bundle's graph (nodes, edges and module texts) to a
// writer.
type Exporter interface {
	Export(ctx context.Context, w io.Writer) error
}

// Importer replaces a bundle's graph with data read from r.
type Importer interface {
	Import(ctx context.Context, r io.Reader) error
}
