package graph

import (
	"crypto/sha256"
	"fmt"
)

// NodeType represents the kind of entity in the dependency graph.
type NodeType string

const (
	NodeModule NodeType = "Module"
	// NodeExternal is a module that is required but has no text in the
	// indexed directory.
	NodeExternal NodeType = "External"
)

// EdgeType represents a relationship between two modules.
type EdgeType string

const (
	// EdgeRequiresSync: source calls require(target) directly.
	EdgeRequiresSync EdgeType = "RequiresSync"
	// EdgeRequiresLazy: source binds require to target for later loading.
	EdgeRequiresLazy EdgeType = "RequiresLazy"
	// EdgeReExports: source re-exports the whole of target as its
	// module.exports.
	EdgeReExports EdgeType = "ReExports"
)

// Property keys for Node.Properties.
const (
	PropBundle   = "bundle"
	PropFluxName = "flux_export"
)

// Node is one module of the bundle.
type Node struct {
	ID         string            `json:"id"`
	Type       NodeType          `json:"type"`
	FilePath   string            `json:"file_path,omitempty"`
	Size       int               `json:"size"`
	Exports    []string          `json:"exports,omitempty"`
	Flux       bool              `json:"flux,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Edge is a require or re-export relationship between two modules.
type Edge struct {
	ID         string            `json:"id"`
	Type       EdgeType          `json:"type"`
	SourceID   string            `json:"source_id"`
	TargetID   string            `json:"target_id"`
	Properties map[string]string `json:"properties,omitempty"`
}

// GraphStats holds aggregate statistics about the dependency graph.
type GraphStats struct {
	NodeCount   int64              `json:"node_count"`
	EdgeCount   int64              `json:"edge_count"`
	TextCount   int64              `json:"text_count"`
	NodesByType map[NodeType]int64 `json:"nodes_by_type"`
	EdgesByType map[EdgeType]int64 `json:"edges_by_type"`
}

// NewEdgeID generates a deterministic edge ID from the type and endpoints,
// so re-indexing a module overwrites its edges instead of duplicating them.
func NewEdgeID(edgeType EdgeType, sourceID, targetID string) string {
	raw := fmt.Sprintf("%s:%s:%s", edgeType, sourceID, targetID)
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h[:12])
}
