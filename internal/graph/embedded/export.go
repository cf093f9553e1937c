package embedded

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"

	"github.com/imyousuf/PackEagle/internal/graph"
)

var (
	_ graph.Store    = (*BundleStore)(nil)
	_ graph.Exporter = (*BundleStore)(nil)
	_ graph.Importer = (*BundleStore)(nil)
)

// exportRecord is the JSON-lines format for export/import.
type exportRecord struct {
	Kind string          `json:"kind"` // "node", "edge" or "text"
	Data json.RawMessage `json:"data"`
}

type textRecord struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Export writes the nodes, edges and module texts of the write bundle to w in
// JSON-lines format.
func (s *BundleStore) Export(_ context.Context, w io.Writer) error {
	b := s.writeBundle
	enc := json.NewEncoder(w)
	return s.db.View(func(txn *badger.Txn) error {
		var encErr error
		emit := func(kind string, v any) bool {
			data, err := json.Marshal(v)
			if err != nil {
				return true // skip bad records
			}
			if err := enc.Encode(exportRecord{Kind: kind, Data: data}); err != nil {
				encErr = fmt.Errorf("encode %s: %w", kind, err)
				return false
			}
			return true
		}

		scanBundleNodes(txn, b, func(node *graph.Node) bool { return emit("node", node) })
		if encErr != nil {
			return encErr
		}
		scanBundleEdges(txn, b, func(edge *graph.Edge) bool { return emit("edge", edge) })
		if encErr != nil {
			return encErr
		}

		prefix := []byte(prefixText + b + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.Valid(); it.Next() {
			item := it.Item()
			id := string(item.Key()[len(prefix):])
			val, err := item.ValueCopy(nil)
			if err != nil {
				continue
			}
			if !emit("text", textRecord{ID: id, Text: string(val)}) {
				return encErr
			}
		}
		return nil
	})
}

// Import reads JSON-lines from r, clears the write bundle, and inserts all
// records into it.
func (s *BundleStore) Import(ctx context.Context, r io.Reader) error {
	if err := s.DeleteBundle(s.writeBundle); err != nil {
		return fmt.Errorf("clear bundle: %w", err)
	}

	scanner := bufio.NewScanner(r)
	// Module texts can be large.
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec exportRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("unmarshal record: %w", err)
		}

		switch rec.Kind {
		case "node":
			var node graph.Node
			if err := json.Unmarshal(rec.Data, &node); err != nil {
				return fmt.Errorf("unmarshal node: %w", err)
			}
			if err := s.PutNode(ctx, &node); err != nil {
				return fmt.Errorf("import node %s: %w", node.ID, err)
			}
		case "edge":
			var edge graph.Edge
			if err := json.Unmarshal(rec.Data, &edge); err != nil {
				return fmt.Errorf("unmarshal edge: %w", err)
			}
			if err := s.AddEdge(ctx, &edge); err != nil {
				return fmt.Errorf("import edge %s: %w", edge.ID, err)
			}
		case "text":
			var text textRecord
			if err := json.Unmarshal(rec.Data, &text); err != nil {
				return fmt.Errorf("unmarshal text: %w", err)
			}
			if err := s.PutModuleText(ctx, text.ID, text.Text); err != nil {
				return fmt.Errorf("import text %s: %w", text.ID, err)
			}
		default:
			return fmt.Errorf("unknown record kind: %q", rec.Kind)
		}
	}

	return scanner.Err()
}
