package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestUpdateCreatesManifestWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	err := Update(path, "gending-1", Entry{
		Title:           "Gending Test",
		InstrumentGroup: "GONG_KEBYAR",
		Parts:           []Part{{PartID: "full", File: "gending-1.mid"}},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading manifest: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("parsing manifest: %v", err)
	}
	entry, ok := m.Compositions["gending-1"]
	if !ok {
		t.Fatalf("expected compositions[gending-1] to be present")
	}
	if entry.Title != "Gending Test" || len(entry.Parts) != 1 || entry.Parts[0].File != "gending-1.mid" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestUpdateMergesWithoutDroppingOtherCompositions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	if err := Update(path, "gending-1", Entry{Title: "First"}); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	if err := Update(path, "gending-2", Entry{Title: "Second"}); err != nil {
		t.Fatalf("second Update: %v", err)
	}

	data, _ := os.ReadFile(path)
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("parsing manifest: %v", err)
	}
	if len(m.Compositions) != 2 {
		t.Fatalf("expected 2 compositions, got %d", len(m.Compositions))
	}
	if m.Compositions["gending-1"].Title != "First" {
		t.Fatalf("gending-1 entry was overwritten: %+v", m.Compositions["gending-1"])
	}
}

func TestUpdateOverwritesExistingEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")

	if err := Update(path, "gending-1", Entry{Title: "Old Title"}); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	if err := Update(path, "gending-1", Entry{Title: "New Title"}); err != nil {
		t.Fatalf("second Update: %v", err)
	}

	data, _ := os.ReadFile(path)
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("parsing manifest: %v", err)
	}
	if m.Compositions["gending-1"].Title != "New Title" {
		t.Fatalf("expected overwritten title, got %+v", m.Compositions["gending-1"])
	}
}
