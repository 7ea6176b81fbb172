package storage

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"BookPublisher/internal/ports"
)

func openTestIndex(t *testing.T) *SQLIndex {
	t.Helper()
	idx, err := OpenSQLIndex(context.Background(), "sqlite", filepath.Join(t.TempDir(), "store", "chapters.db"))
	if err != nil {
		t.Fatalf("OpenSQLIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestSQLIndexUpsertQueryGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := openTestIndex(t)

	docs := []ports.IndexDocument{
		{ID: "c1", Text: "The sea was calm.", Metadata: map[string]string{"title": "One"}, Embedding: []float32{1, 0, 0}},
		{ID: "c2", Text: "The storm broke.", Metadata: map[string]string{"title": "Two"}, Embedding: []float32{0, 1, 0}},
		{ID: "c3", Text: "Calm seas again.", Metadata: map[string]string{"title": "Three"}, Embedding: []float32{0.9, 0.1, 0}},
	}
	for _, doc := range docs {
		if err := idx.Upsert(ctx, doc); err != nil {
			t.Fatalf("Upsert %s: %v", doc.ID, err)
		}
	}

	matches, err := idx.Query(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "c1" || matches[1].ID != "c3" {
		t.Fatalf("unexpected order: %s, %s", matches[0].ID, matches[1].ID)
	}
	if matches[0].Distance != 0 {
		t.Fatalf("identical vector should have distance 0, got %v", matches[0].Distance)
	}
	for _, m := range matches {
		if m.Distance < 0 || m.Distance > 1 {
			t.Fatalf("distance out of [0,1]: %v", m.Distance)
		}
	}
	if matches[0].Metadata["title"] != "One" || matches[0].Text != "The sea was calm." {
		t.Fatalf("unexpected match payload %+v", matches[0])
	}

	got, ok, err := idx.Get(ctx, "c2")
	if err != nil || !ok {
		t.Fatalf("Get c2: ok=%v err=%v", ok, err)
	}
	if got.Metadata["title"] != "Two" {
		t.Fatalf("unexpected metadata %+v", got.Metadata)
	}

	if _, ok, err := idx.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v", ok, err)
	}
}

func TestSQLIndexUpsertOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := openTestIndex(t)

	first := ports.IndexDocument{ID: "c1", Text: "draft", Metadata: map[string]string{"comments": "final"}, Embedding: []float32{1, 0}}
	second := ports.IndexDocument{ID: "c1", Text: "revised", Metadata: map[string]string{"comments": "FINAL"}, Embedding: []float32{0, 1}}
	if err := idx.Upsert(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := idx.Upsert(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	matches, err := idx.Query(ctx, []float32{0, 1}, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("re-adding the same id must not duplicate, got %d", len(matches))
	}
	if matches[0].Text != "revised" || matches[0].Metadata["comments"] != "FINAL" {
		t.Fatalf("document not replaced: %+v", matches[0])
	}
}

func TestSQLIndexRejectsDimensionMismatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	idx := openTestIndex(t)
	if err := idx.Upsert(ctx, ports.IndexDocument{ID: "c1", Text: "x", Embedding: []float32{1, 0, 0}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := idx.Query(ctx, []float32{1, 0}, 1); err == nil {
		t.Fatalf("expected dimension error")
	}
	if err := idx.Upsert(ctx, ports.IndexDocument{ID: "c2", Text: "x"}); err == nil {
		t.Fatalf("expected empty embedding error")
	}
}

func TestOpenSQLIndexUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := OpenSQLIndex(context.Background(), "mongo", "x"); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestVectorCodecAndDistance(t *testing.T) {
	t.Parallel()

	in := []float32{0.25, -1.5, 3}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("codec mismatch at %d: %v != %v", i, in[i], out[i])
		}
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected length error")
	}

	if d := cosineDistance([]float32{1, 0}, []float32{-1, 0}); math.Abs(d-1) > 1e-9 {
		t.Fatalf("opposite vectors should be at distance 1, got %v", d)
	}
	if d := cosineDistance([]float32{1, 0}, []float32{0, 1}); math.Abs(d-0.5) > 1e-9 {
		t.Fatalf("orthogonal vectors should be at distance 0.5, got %v", d)
	}
}
