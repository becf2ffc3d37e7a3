package binding

import (
	"errors"
	"sync"
	"testing"

	"github.com/backkem/matter-hmi/pkg/clusters/onoff"
	"github.com/backkem/matter-hmi/pkg/fabric"
)

func TestNewTable(t *testing.T) {
	t.Run("default capacity", func(t *testing.T) {
		table := NewTable(TableConfig{})
		if table.Capacity() != DefaultCapacity {
			t.Errorf("expected capacity %d, got %d", DefaultCapacity, table.Capacity())
		}
		if table.Size() != 0 {
			t.Errorf("expected 0 entries, got %d", table.Size())
		}
	})

	t.Run("custom capacity", func(t *testing.T) {
		table := NewTable(TableConfig{Capacity: 3})
		if table.Capacity() != 3 {
			t.Errorf("expected capacity 3, got %d", table.Capacity())
		}
	})
}

func TestTable_AddAndGetAt(t *testing.T) {
	table := NewTable(TableConfig{})

	light := Unicast(1, 5, 1, 1, onoff.ClusterID)
	group := Multicast(1, 1, 1, onoff.ClusterID)

	i, err := table.Add(light)
	if err != nil {
		t.Fatalf("Add unicast failed: %v", err)
	}
	if i != 0 {
		t.Errorf("expected index 0, got %d", i)
	}
	i, err = table.Add(group)
	if err != nil {
		t.Fatalf("Add group failed: %v", err)
	}
	if i != 1 {
		t.Errorf("expected index 1, got %d", i)
	}

	got, ok := table.GetAt(0)
	if !ok {
		t.Fatal("GetAt(0) returned false")
	}
	if got != light {
		t.Errorf("GetAt(0) = %+v, expected %+v", got, light)
	}
	got, ok = table.GetAt(1)
	if !ok || got != group {
		t.Errorf("GetAt(1) = %+v, %v, expected %+v", got, ok, group)
	}

	if _, ok := table.GetAt(2); ok {
		t.Error("GetAt past size should return false")
	}
	if _, ok := table.GetAt(-1); ok {
		t.Error("GetAt(-1) should return false")
	}
}

func TestTable_AddErrors(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  error
	}{
		{"invalid fabric", Unicast(0, 5, 1, 1, onoff.ClusterID), ErrInvalidFabricIndex},
		{"invalid node", Unicast(1, 0, 1, 1, onoff.ClusterID), ErrInvalidNodeID},
		{"null group", Multicast(1, 0, 1, onoff.ClusterID), ErrInvalidGroupID},
		{"no kind", Entry{FabricIndex: 1}, ErrInvalidKind},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			table := NewTable(TableConfig{})
			if _, err := table.Add(tc.entry); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}

	t.Run("table full", func(t *testing.T) {
		table := NewTable(TableConfig{Capacity: 2})
		for n := 1; n <= 2; n++ {
			if _, err := table.Add(Unicast(1, fabric.NodeID(n), 1, 1, onoff.ClusterID)); err != nil {
				t.Fatalf("Add %d failed: %v", n, err)
			}
		}
		if _, err := table.Add(Unicast(1, 3, 1, 1, onoff.ClusterID)); err != ErrTableFull {
			t.Errorf("expected ErrTableFull, got %v", err)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		table := NewTable(TableConfig{})
		e := Unicast(1, 5, 1, 1, onoff.ClusterID)
		_, _ = table.Add(e)
		if _, err := table.Add(e); err != ErrDuplicateEntry {
			t.Errorf("expected ErrDuplicateEntry, got %v", err)
		}
	})
}

func TestTable_AddNormalizes(t *testing.T) {
	table := NewTable(TableConfig{})
	e := Multicast(1, 7, 1, onoff.ClusterID)
	e.NodeID = 42
	e.RemoteEndpoint = 3

	if _, err := table.Add(e); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	got, _ := table.GetAt(0)
	if got.NodeID != 0 || got.RemoteEndpoint != 0 {
		t.Errorf("unicast fields not cleared on group entry: %+v", got)
	}
}

func TestTable_Remove(t *testing.T) {
	table := NewTable(TableConfig{})
	for n := 1; n <= 3; n++ {
		_, _ = table.Add(Unicast(1, fabric.NodeID(n), 1, 1, onoff.ClusterID))
	}

	if err := table.Remove(1); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if table.Size() != 2 {
		t.Fatalf("expected 2 entries, got %d", table.Size())
	}
	got, _ := table.GetAt(1)
	if got.NodeID != 3 {
		t.Errorf("expected later entry to shift down, got node %v", got.NodeID)
	}

	if err := table.Remove(5); err != ErrIndexOutOfRange {
		t.Errorf("expected ErrIndexOutOfRange, got %v", err)
	}

	table.Clear()
	if table.Size() != 0 {
		t.Errorf("expected empty table after Clear, got %d", table.Size())
	}
}

func TestTable_EntriesIsCopy(t *testing.T) {
	table := NewTable(TableConfig{})
	_, _ = table.Add(Unicast(1, 5, 1, 1, onoff.ClusterID))

	entries := table.Entries()
	entries[0].NodeID = 99

	got, _ := table.GetAt(0)
	if got.NodeID != 5 {
		t.Error("Entries should return a copy, not a reference")
	}
}

func TestTable_Concurrent(t *testing.T) {
	table := NewTable(TableConfig{Capacity: 100})

	var wg sync.WaitGroup
	for n := 1; n <= 50; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _ = table.Add(Unicast(1, fabric.NodeID(n), 1, 1, onoff.ClusterID))
			_ = table.Size()
			_, _ = table.GetAt(0)
		}(n)
	}
	wg.Wait()

	if table.Size() != 50 {
		t.Errorf("expected 50 entries, got %d", table.Size())
	}
}
