// Package embedded implements graph.Store on BadgerDB.
package embedded

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/imyousuf/PackEagle/internal/graph"
)

// Key prefixes for the BadgerDB key scheme.
const (
	prefixNode           = "n:"
	prefixEdge           = "e:"
	prefixText           = "t:"
	prefixIdxType        = "idx:type:"
	prefixIdxFile        = "idx:file:"
	prefixIdxEdge        = "idx:edge:"
	prefixIdxReverseEdge = "idx:redge:"
)

// DefaultBundle is the namespace used when none is given.
const DefaultBundle = "default"

// BundleStore implements graph.Store using BadgerDB with bundle-aware key
// prefixes. Every key carries a bundle name, typically a build id, so the
// graphs of several builds can live in one database.
type BundleStore struct {
	db          *badger.DB
	writeBundle string
	readBundles []string // ordered by priority; first bundle wins for duplicate IDs
}

// NewBundleStore opens (or creates) a BadgerDB-backed graph store at dbPath
// that writes to writeBundle and reads from readBundles in order.
func NewBundleStore(dbPath, writeBundle string, readBundles []string) (*BundleStore, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // suppress badger logs
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &BundleStore{db: db, writeBundle: writeBundle, readBundles: readBundles}, nil
}

// NewStore opens a store that reads and writes only the default bundle.
func NewStore(dbPath string) (*BundleStore, error) {
	return NewBundleStore(dbPath, DefaultBundle, []string{DefaultBundle})
}

// WriteBundle returns the bundle used for write operations.
func (s *BundleStore) WriteBundle() string { return s.writeBundle }

// ReadBundles returns the ordered list of bundles used for read operations.
func (s *BundleStore) ReadBundles() []string { return s.readBundles }

// --- bundle-aware key functions ---

func nodeKey(bundle, id string) []byte { return []byte(prefixNode + bundle + ":" + id) }

func edgeKey(bundle, id string) []byte { return []byte(prefixEdge + bundle + ":" + id) }

func textKey(bundle, id string) []byte { return []byte(prefixText + bundle + ":" + id) }

func indexTypeKey(bundle string, nodeType graph.NodeType, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%s", prefixIdxType, bundle, nodeType, id))
}

// indexFileKey returns a secondary index key for file path lookup. Paths
// may contain colons, so the ID is always the last segment.
func indexFileKey(bundle, filePath, id string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%s", prefixIdxFile, bundle, filePath, id))
}

func indexEdgeKey(bundle, sourceID string, edgeType graph.EdgeType, edgeID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%s:%s", prefixIdxEdge, bundle, sourceID, edgeType, edgeID))
}

func indexReverseEdgeKey(bundle, targetID string, edgeType graph.EdgeType, edgeID string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s:%s:%s", prefixIdxReverseEdge, bundle, targetID, edgeType, edgeID))
}

func (s *BundleStore) PutNode(_ context.Context, node *graph.Node) error {
	b := s.writeBundle
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		// Remove stale indexes if an existing node changed type or file.
		if old, err := getNodeInTxn(txn, b, node.ID); err == nil {
			if old.Type != node.Type {
				_ = txn.Delete(indexTypeKey(b, old.Type, old.ID))
			}
			if old.FilePath != node.FilePath && old.FilePath != "" {
				_ = txn.Delete(indexFileKey(b, old.FilePath, old.ID))
			}
		}
		if err := txn.Set(nodeKey(b, node.ID), data); err != nil {
			return err
		}
		if err := txn.Set(indexTypeKey(b, node.Type, node.ID), nil); err != nil {
			return err
		}
		if node.FilePath != "" {
			if err := txn.Set(indexFileKey(b, node.FilePath, node.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BundleStore) DeleteNode(_ context.Context, id string) error {
	b := s.writeBundle
	return s.db.Update(func(txn *badger.Txn) error {
		return deleteNodeInTxn(txn, b, id)
	})
}

// deleteNodeInTxn removes a node, all its edges and its text within a
// transaction.
func deleteNodeInTxn(txn *badger.Txn, bundle, id string) error {
	node, err := getNodeInTxn(txn, bundle, id)
	if err != nil {
		return err
	}
	for _, prefix := range []string{prefixIdxEdge, prefixIdxReverseEdge} {
		edgeIDs, err := scanIndexPrefix(txn, []byte(fmt.Sprintf("%s%s:%s:", prefix, bundle, id)))
		if err != nil {
			return err
		}
		for _, eid := range edgeIDs {
			if err := deleteEdgeInTxn(txn, bundle, eid); err != nil {
				return err
			}
		}
	}
	_ = txn.Delete(indexTypeKey(bundle, node.Type, id))
	if node.FilePath != "" {
		_ = txn.Delete(indexFileKey(bundle, node.FilePath, id))
	}
	_ = txn.Delete(textKey(bundle, id))
	return txn.Delete(nodeKey(bundle, id))
}

func (s *BundleStore) GetNode(_ context.Context, id string) (*graph.Node, error) {
	var node *graph.Node
	err := s.db.View(func(txn *badger.Txn) error {
		n, err := getNodeFromBundles(txn, s.readBundles, id)
		node = n
		return err
	})
	return node, err
}

func getNodeInTxn(txn *badger.Txn, bundle, id string) (*graph.Node, error) {
	item, err := txn.Get(nodeKey(bundle, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("get node %s: %w", id, graph.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", id, err)
	}
	var node graph.Node
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &node)
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal node %s: %w", id, err)
	}
	return &node, nil
}

// getNodeFromBundles tries to get a node from the first bundle that has it.
func getNodeFromBundles(txn *badger.Txn, bundles []string, id string) (*graph.Node, error) {
	for _, b := range bundles {
		n, err := getNodeInTxn(txn, b, id)
		if err == nil {
			tagNodeBundle(n, b)
			return n, nil
		}
	}
	return nil, fmt.Errorf("node %s: %w", id, graph.ErrNotFound)
}

func (s *BundleStore) QueryNodes(_ context.Context, filter graph.NodeFilter) ([]*graph.Node, error) {
	seen := make(map[string]struct{})
	var results []*graph.Node

	err := s.db.View(func(txn *badger.Txn) error {
		for _, bundle := range s.readBundles {
			var ids []string
			var err error
			switch {
			case filter.FilePath != "":
				ids, err = scanIndexPrefix(txn, []byte(fmt.Sprintf("%s%s:%s:", prefixIdxFile, bundle, filter.FilePath)))
			case filter.Type != "":
				ids, err = scanIndexPrefix(txn, []byte(fmt.Sprintf("%s%s:%s:", prefixIdxType, bundle, filter.Type)))
			default:
				scanBundleNodes(txn, bundle, func(node *graph.Node) bool {
					if _, ok := seen[node.ID]; ok {
						return true // an earlier bundle already has this ID
					}
					if matchesFilter(node, filter) {
						seen[node.ID] = struct{}{}
						tagNodeBundle(node, bundle)
						results = append(results, node)
					}
					return true
				})
				continue
			}
			if err != nil {
				return err
			}
			for _, id := range ids {
				if _, ok := seen[id]; ok {
					continue
				}
				node, err := getNodeInTxn(txn, bundle, id)
				if err != nil {
					continue // index entry for deleted node; skip
				}
				if matchesFilter(node, filter) {
					seen[id] = struct{}{}
					tagNodeBundle(node, bundle)
					results = append(results, node)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *BundleStore) AddEdge(_ context.Context, edge *graph.Edge) error {
	b := s.writeBundle
	data, err := json.Marshal(edge)
	if err != nil {
		return fmt.Errorf("marshal edge: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(edgeKey(b, edge.ID), data); err != nil {
			return err
		}
		if err := txn.Set(indexEdgeKey(b, edge.SourceID, edge.Type, edge.ID), nil); err != nil {
			return err
		}
		return txn.Set(indexReverseEdgeKey(b, edge.TargetID, edge.Type, edge.ID), nil)
	})
}

func (s *BundleStore) DeleteEdges(_ context.Context, nodeID string, edgeType graph.EdgeType) error {
	b := s.writeBundle
	return s.db.Update(func(txn *badger.Txn) error {
		ids, err := scanIndexPrefix(txn, buildEdgeIndexPrefix(prefixIdxEdge, b, nodeID, edgeType))
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := deleteEdgeInTxn(txn, b, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func deleteEdgeInTxn(txn *badger.Txn, bundle, id string) error {
	edge, err := getEdgeInTxn(txn, bundle, id)
	if err != nil {
		return err
	}
	_ = txn.Delete(indexEdgeKey(bundle, edge.SourceID, edge.Type, edge.ID))
	_ = txn.Delete(indexReverseEdgeKey(bundle, edge.TargetID, edge.Type, edge.ID))
	return txn.Delete(edgeKey(bundle, id))
}

func (s *BundleStore) GetEdges(_ context.Context, nodeID string, edgeType graph.EdgeType, direction graph.Direction) ([]*graph.Edge, error) {
	seen := make(map[string]struct{})
	var results []*graph.Edge

	var prefixes []string
	if direction == graph.Outgoing || direction == graph.Both {
		prefixes = append(prefixes, prefixIdxEdge)
	}
	if direction == graph.Incoming || direction == graph.Both {
		prefixes = append(prefixes, prefixIdxReverseEdge)
	}

	err := s.db.View(func(txn *badger.Txn) error {
		for _, bundle := range s.readBundles {
			for _, prefix := range prefixes {
				ids, err := scanIndexPrefix(txn, buildEdgeIndexPrefix(prefix, bundle, nodeID, edgeType))
				if err != nil {
					return err
				}
				for _, eid := range ids {
					if _, ok := seen[eid]; ok {
						continue
					}
					seen[eid] = struct{}{}
					e, err := getEdgeInTxn(txn, bundle, eid)
					if err != nil {
						continue
					}
					results = append(results, e)
				}
			}
		}
		return nil
	})
	return results, err
}

func (s *BundleStore) PutModuleText(_ context.Context, id, text string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(textKey(s.writeBundle, id), []byte(text))
	})
}

func (s *BundleStore) ModuleText(_ context.Context, id string) (string, error) {
	var text string
	err := s.db.View(func(txn *badger.Txn) error {
		for _, bundle := range s.readBundles {
			item, err := txn.Get(textKey(bundle, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			text = string(data)
			return nil
		}
		return fmt.Errorf("module text %s: %w", id, graph.ErrNotFound)
	})
	return text, err
}

func (s *BundleStore) DeleteModuleText(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(textKey(s.writeBundle, id))
	})
}

func (s *BundleStore) DeleteByFile(_ context.Context, filePath string) error {
	b := s.writeBundle
	var nodeIDs []string
	err := s.db.View(func(txn *badger.Txn) error {
		ids, err := scanIndexPrefix(txn, []byte(fmt.Sprintf("%s%s:%s:", prefixIdxFile, b, filePath)))
		nodeIDs = ids
		return err
	})
	if err != nil {
		return err
	}
	for _, id := range nodeIDs {
		err := s.db.Update(func(txn *badger.Txn) error {
			return deleteNodeInTxn(txn, b, id)
		})
		if err != nil {
			return fmt.Errorf("delete node %s for file %s: %w", id, filePath, err)
		}
	}
	return nil
}

func (s *BundleStore) Stats(_ context.Context) (*graph.GraphStats, error) {
	stats := &graph.GraphStats{
		NodesByType: make(map[graph.NodeType]int64),
		EdgesByType: make(map[graph.EdgeType]int64),
	}
	seenNodes := make(map[string]struct{})
	seenEdges := make(map[string]struct{})
	seenTexts := make(map[string]struct{})

	err := s.db.View(func(txn *badger.Txn) error {
		for _, bundle := range s.readBundles {
			scanBundleNodes(txn, bundle, func(node *graph.Node) bool {
				if _, ok := seenNodes[node.ID]; ok {
					return true
				}
				seenNodes[node.ID] = struct{}{}
				stats.NodeCount++
				stats.NodesByType[node.Type]++
				return true
			})
			scanBundleEdges(txn, bundle, func(edge *graph.Edge) bool {
				if _, ok := seenEdges[edge.ID]; ok {
					return true
				}
				seenEdges[edge.ID] = struct{}{}
				stats.EdgeCount++
				stats.EdgesByType[edge.Type]++
				return true
			})
			for _, id := range scanKeys(txn, []byte(prefixText+bundle+":")) {
				if _, ok := seenTexts[id]; !ok {
					seenTexts[id] = struct{}{}
					stats.TextCount++
				}
			}
		}
		return nil
	})
	return stats, err
}

func (s *BundleStore) Close() error {
	return s.db.Close()
}

// DeleteBundle removes all keys belonging to the given bundle from the DB.
func (s *BundleStore) DeleteBundle(bundle string) error {
	prefixes := []string{
		prefixNode + bundle + ":",
		prefixEdge + bundle + ":",
		prefixText + bundle + ":",
		prefixIdxType + bundle + ":",
		prefixIdxFile + bundle + ":",
		prefixIdxEdge + bundle + ":",
		prefixIdxReverseEdge + bundle + ":",
	}
	for _, prefix := range prefixes {
		if err := s.deleteKeysByPrefix([]byte(prefix)); err != nil {
			return fmt.Errorf("delete bundle %s prefix %s: %w", bundle, prefix, err)
		}
	}
	return nil
}

// deleteKeysByPrefix removes all keys with the given prefix.
func (s *BundleStore) deleteKeysByPrefix(prefix []byte) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Delete in batches to avoid transaction size limits.
	const batchSize = 1000
	for batch := range slices.Chunk(keys, batchSize) {
		err := s.db.Update(func(txn *badger.Txn) error {
			for _, key := range batch {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ListBundles discovers the bundle names present in the DB by scanning node
// key prefixes.
func (s *BundleStore) ListBundles() ([]string, error) {
	set := make(map[string]struct{})
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixNode)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			// Key format: n:<bundle>:<nodeID>
			rest := string(it.Item().Key())[len(prefixNode):]
			if idx := strings.Index(rest, ":"); idx > 0 {
				set[rest[:idx]] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	bundles := make([]string, 0, len(set))
	for b := range set {
		bundles = append(bundles, b)
	}
	slices.Sort(bundles)
	return bundles, nil
}

// --- helpers ---

// buildEdgeIndexPrefix constructs the prefix for scanning edge indexes.
// If edgeType is empty, it scans all edge types for the given nodeID.
func buildEdgeIndexPrefix(prefix, bundle, nodeID string, edgeType graph.EdgeType) []byte {
	if edgeType == "" {
		return []byte(fmt.Sprintf("%s%s:%s:", prefix, bundle, nodeID))
	}
	return []byte(fmt.Sprintf("%s%s:%s:%s:", prefix, bundle, nodeID, edgeType))
}

// scanIndexPrefix scans all keys with the given prefix and extracts the
// trailing ID segment (the last colon-separated part).
func scanIndexPrefix(txn *badger.Txn, prefix []byte) ([]string, error) {
	return scanKeys(txn, prefix), nil
}

func scanKeys(txn *badger.Txn, prefix []byte) []string {
	var ids []string
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.Valid(); it.Next() {
		key := string(it.Item().Key())
		if idx := strings.LastIndex(key, ":"); idx >= 0 && idx < len(key)-1 {
			ids = append(ids, key[idx+1:])
		}
	}
	return ids
}

// scanBundleNodes calls fn for every node of a bundle. Return false from fn
// to stop iteration.
func scanBundleNodes(txn *badger.Txn, bundle string, fn func(*graph.Node) bool) {
	scanValues(txn, []byte(prefixNode+bundle+":"), func(val []byte) bool {
		var node graph.Node
		if err := json.Unmarshal(val, &node); err != nil {
			return true
		}
		return fn(&node)
	})
}

func scanBundleEdges(txn *badger.Txn, bundle string, fn func(*graph.Edge) bool) {
	scanValues(txn, []byte(prefixEdge+bundle+":"), func(val []byte) bool {
		var edge graph.Edge
		if err := json.Unmarshal(val, &edge); err != nil {
			return true
		}
		return fn(&edge)
	})
}

func scanValues(txn *badger.Txn, prefix []byte, fn func([]byte) bool) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Seek(prefix); it.Valid(); it.Next() {
		var more bool
		err := it.Item().Value(func(val []byte) error {
			more = fn(val)
			return nil
		})
		if err != nil {
			continue
		}
		if !more {
			break
		}
	}
}

func getEdgeInTxn(txn *badger.Txn, bundle, id string) (*graph.Edge, error) {
	item, err := txn.Get(edgeKey(bundle, id))
	if err != nil {
		return nil, fmt.Errorf("get edge %s: %w", id, err)
	}
	var edge graph.Edge
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &edge)
	})
	if err != nil {
		return nil, fmt.Errorf("unmarshal edge %s: %w", id, err)
	}
	return &edge, nil
}

// matchesFilter checks whether a node matches all non-zero fields in the filter.
func matchesFilter(node *graph.Node, filter graph.NodeFilter) bool {
	if filter.Type != "" && node.Type != filter.Type {
		return false
	}
	if filter.FilePath != "" && node.FilePath != filter.FilePath {
		return false
	}
	if filter.IDPattern != "" {
		matched, err := filepath.Match(filter.IDPattern, node.ID)
		if err != nil || !matched {
			return false
		}
	}
	if filter.Flux != nil && node.Flux != *filter.Flux {
		return false
	}
	if filter.ExportsName != "" && !slices.Contains(node.Exports, filter.ExportsName) {
		return false
	}
	return true
}

// tagNodeBundle records which bundle a node was read from. Set on reads
// only, never persisted.
func tagNodeBundle(n *graph.Node, bundle string) {
	if n.Properties == nil {
		n.Properties = make(map[string]string)
	}
	n.Properties[graph.PropBundle] = bundle
}
