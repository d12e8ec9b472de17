package store

import (
	"path/filepath"
	"testing"
)

type sample struct {
	Name string `json:"name"`
}

func TestWriteJSONAtomicAndReadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "sample.json")

	if err := WriteJSONAtomic(path, &sample{Name: "gopher"}); err != nil {
		t.Fatalf("WriteJSONAtomic: %v", err)
	}

	var got sample
	ok, err := ReadJSON(path, &got)
	if err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if !ok {
		t.Fatal("expected file to exist")
	}
	if got.Name != "gopher" {
		t.Errorf("got %q, want %q", got.Name, "gopher")
	}
}

func TestReadJSONMissingFile(t *testing.T) {
	ok, err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &sample{})
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing file")
	}
}

func TestAppendJSONLAndCountLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.jsonl")

	for i := 0; i < 3; i++ {
		if err := AppendJSONL(path, &sample{Name: "line"}); err != nil {
			t.Fatalf("AppendJSONL: %v", err)
		}
	}

	count, err := CountLines(path)
	if err != nil {
		t.Fatalf("CountLines: %v", err)
	}
	if count != 3 {
		t.Errorf("got %d lines, want 3", count)
	}

	var seen int
	err = ReadJSONLInto(path, func(line []byte) error {
		seen++
		return nil
	})
	if err != nil {
		t.Fatalf("ReadJSONLInto: %v", err)
	}
	if seen != 3 {
		t.Errorf("decoded %d lines, want 3", seen)
	}
}

func TestKeyedMutexPerKey(t *testing.T) {
	km := NewKeyedMutex[string]()
	a := km.For("a")
	b := km.For("b")
	if a == b {
		t.Error("expected distinct mutexes for distinct keys")
	}
	if km.For("a") != a {
		t.Error("expected same mutex on repeated lookup")
	}
}
