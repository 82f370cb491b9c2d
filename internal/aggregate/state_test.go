package aggregate

import (
	"context"
	"path/filepath"
	"testing"
)

func TestFileStateStoreKeepsNamedEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	hourly := &FileStateStore{Path: path, Name: "aggregator:3600"}
	daily := &FileStateStore{Path: path, Name: "aggregator:86400"}

	if _, ok, err := hourly.Load(ctx); err != nil || ok {
		t.Fatalf("empty load: ok=%v err=%v", ok, err)
	}
	if err := hourly.Save(ctx, 7_200); err != nil {
		t.Fatalf("save hourly: %v", err)
	}
	if err := daily.Save(ctx, 86_400); err != nil {
		t.Fatalf("save daily: %v", err)
	}

	if ts, ok, err := hourly.Load(ctx); err != nil || !ok || ts != 7_200 {
		t.Fatalf("hourly = %d %v %v", ts, ok, err)
	}
	if ts, ok, err := daily.Load(ctx); err != nil || !ok || ts != 86_400 {
		t.Fatalf("daily = %d %v %v", ts, ok, err)
	}

	var disabled *FileStateStore
	if err := disabled.Save(ctx, 1); err != nil {
		t.Fatalf("nil store save: %v", err)
	}
}
