package binding

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/backkem/matter-hmi/pkg/clusters/onoff"
)

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "bindings.yaml")
	s := NewFileStore(path)

	entries, err := s.Load()
	if err != nil {
		t.Fatalf("Load of missing file failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}

	want := []Entry{
		Unicast(1, 0x1122, 1, 2, onoff.ClusterID),
		Multicast(2, 7, 1, onoff.ClusterID),
	}
	if err := s.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected temporary file to be gone, got %v", err)
	}
}

func TestFileStore_LoadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"newer version", "version: 9\nbindings: []\n", ErrUnsupportedVersion},
		{"bad kind", "version: 1\nbindings:\n- kind: broadcast\n  fabric: 1\n", ErrInvalidKind},
		{"invalid node", "version: 1\nbindings:\n- kind: unicast\n  fabric: 1\n  cluster: 6\n", ErrInvalidNodeID},
		{"not yaml", "version: [", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := NewFileStore(path).Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRestore(t *testing.T) {
	table := NewTable(TableConfig{Capacity: 2})
	entries := []Entry{
		Unicast(1, 1, 1, 1, onoff.ClusterID),
		Unicast(1, 1, 1, 1, onoff.ClusterID),
		Unicast(1, 2, 1, 1, onoff.ClusterID),
		Unicast(1, 3, 1, 1, onoff.ClusterID),
	}

	n, err := Restore(table, entries)
	if n != 2 {
		t.Errorf("expected 2 restored, got %d", n)
	}
	if !errors.Is(err, ErrDuplicateEntry) || !errors.Is(err, ErrTableFull) {
		t.Errorf("expected duplicate and full errors, got %v", err)
	}
	if table.Size() != 2 {
		t.Errorf("expected size 2, got %d", table.Size())
	}
}
