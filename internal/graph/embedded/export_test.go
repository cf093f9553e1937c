package embedded

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/imyousuf/PackEagle/internal/graph"
)

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()

	src := newTestStore(t)
	nodes := []*graph.Node{
		moduleNode("1", "/b/1.js", "a"),
		moduleNode("2", "/b/2.js"),
		{ID: "3", Type: graph.NodeExternal},
	}
	for _, n := range nodes {
		if err := src.PutNode(ctx, n); err != nil {
			t.Fatalf("PutNode %s: %v", n.ID, err)
		}
	}
	edges := []*graph.Edge{requires("1", "2"), requires("2", "3")}
	for _, e := range edges {
		if err := src.AddEdge(ctx, e); err != nil {
			t.Fatalf("AddEdge %s: %v", e.ID, err)
		}
	}
	if err := src.PutModuleText(ctx, "1", "module one\nwith lines"); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := src.Export(ctx, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("Export produced empty output")
	}

	dst := newTestStore(t)
	if err := dst.Import(ctx, &buf); err != nil {
		t.Fatalf("Import: %v", err)
	}

	for _, want := range nodes {
		got, err := dst.GetNode(ctx, want.ID)
		if err != nil {
			t.Errorf("GetNode %s after import: %v", want.ID, err)
			continue
		}
		if got.Type != want.Type || got.FilePath != want.FilePath {
			t.Errorf("node %s = %+v, want %+v", want.ID, got, want)
		}
	}

	got, err := dst.GetEdges(ctx, "2", "", graph.Both)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"1->2", "2->3"}, edgeIDs(got)); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}

	text, err := dst.ModuleText(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if text != "module one\nwith lines" {
		t.Errorf("ModuleText = %q", text)
	}

	srcStats, _ := src.Stats(ctx)
	dstStats, _ := dst.Stats(ctx)
	if diff := cmp.Diff(srcStats, dstStats); diff != "" {
		t.Errorf("stats mismatch (-src +dst):\n%s", diff)
	}
}

func TestImportClearsExistingData(t *testing.T) {
	ctx := context.Background()

	dst := newTestStore(t)
	if err := dst.PutNode(ctx, moduleNode("old", "old.js")); err != nil {
		t.Fatal(err)
	}

	src := newTestStore(t)
	if err := src.PutNode(ctx, moduleNode("new", "new.js")); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := src.Export(ctx, &buf); err != nil {
		t.Fatal(err)
	}
	if err := dst.Import(ctx, &buf); err != nil {
		t.Fatal(err)
	}

	if _, err := dst.GetNode(ctx, "old"); err == nil {
		t.Error("old node should have been cleared by import")
	}
	if _, err := dst.GetNode(ctx, "new"); err != nil {
		t.Fatalf("new node not found after import: %v", err)
	}
}

func TestExportEmptyStore(t *testing.T) {
	s := newTestStore(t)

	var buf bytes.Buffer
	if err := s.Export(context.Background(), &buf); err != nil {
		t.Fatalf("Export empty store: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected empty export, got %d bytes", buf.Len())
	}
}
