// Package graph defines the module dependency graph of a webpack bundle and
// the persistence interface for it.
package graph

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a node or module text does not exist.
var ErrNotFound = errors.New("not found")

// Direction specifies the traversal direction for edge queries.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// NodeFilter specifies criteria for querying nodes.
type NodeFilter struct {
	Type        NodeType
	FilePath    string
	IDPattern   string // glob pattern matched against ID
	Flux        *bool
	ExportsName string // node must export this name
}

// Store is the interface for dependency graph persistence.
type Store interface {
	// PutNode inserts or replaces a node (matched by ID).
	PutNode(ctx context.Context, node *Node) error

	// DeleteNode removes a node by ID along with its connected edges and
	// its module text.
	DeleteNode(ctx context.Context, id string) error

	// GetNode retrieves a single node by ID.
	GetNode(ctx context.Context, id string) (*Node, error)

	// QueryNodes returns all nodes matching the given filter.
	QueryNodes(ctx context.Context, filter NodeFilter) ([]*Node, error)

	// AddEdge inserts an edge, replacing an edge with the same ID.
	AddEdge(ctx context.Context, edge *Edge) error

	// DeleteEdges removes the edges leaving nodeID. If edgeType is empty,
	// all outgoing edges are removed.
	DeleteEdges(ctx context.Context, nodeID string, edgeType EdgeType) error

	// GetEdges returns edges connected to nodeID with the given type in the
	// given direction. If edgeType is empty, all edge types are returned.
	GetEdges(ctx context.Context, nodeID string, edgeType EdgeType, direction Direction) ([]*Edge, error)

	// PutModuleText stores the text of a module.
	PutModuleText(ctx context.Context, id, text string) error

	// ModuleText returns the stored text of a module, or ErrNotFound.
	ModuleText(ctx context.Context, id string) (string, error)

	// DeleteModuleText removes the stored text of a module, if any.
	DeleteModuleText(ctx context.Context, id string) error

	// DeleteByFile removes all nodes (and their edges) associated with the
	// given file path.
	DeleteByFile(ctx context.Context, filePath string) error

	// Stats returns aggregate statistics about the graph.
	Stats(ctx context.Context) (*GraphStats, error)

	// Close releases resources held by the store.
	Close() error
}
