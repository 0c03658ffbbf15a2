package chain

import (
	"slices"
	"testing"
)

func names(c *Chain[string]) []string {
	var out []string
	for _, entry := range c.Snapshot() {
		out = append(out, entry.Fn)
	}
	return out
}

func TestAddOrdersByPriorityThenInsertion(t *testing.T) {
	var c Chain[string]
	c.Add("b", 10)
	c.Add("a", 0)
	c.Add("c", 10)
	c.Add("first", -5)
	c.Add("a2", 0)

	want := []string{"first", "a", "a2", "b", "c"}
	if got := names(&c); !slices.Equal(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestRemove(t *testing.T) {
	var c Chain[string]
	a := c.Add("a", 0)
	b := c.Add("b", 0)

	if !c.Remove(a) {
		t.Fatal("expected first removal to succeed")
	}
	if c.Remove(a) {
		t.Fatal("expected second removal to be a no-op")
	}
	if a.Live() {
		t.Fatal("removed entry still reports live")
	}
	if got := names(&c); !slices.Equal(got, []string{"b"}) {
		t.Fatalf("order = %v, want [b]", got)
	}

	c.Remove(b)
	if !c.Empty() {
		t.Fatalf("Len() = %d, want 0", c.Len())
	}
}

func TestRemoveForeignEntry(t *testing.T) {
	var c, other Chain[string]
	c.Add("a", 0)
	foreign := other.Add("x", 0)

	if c.Remove(foreign) {
		t.Fatal("expected removal of foreign entry to fail")
	}
	if !foreign.Live() {
		t.Fatal("foreign entry must stay live")
	}
	if c.Remove(nil) {
		t.Fatal("expected nil removal to fail")
	}
}

func TestSnapshotIsStableAcrossMutation(t *testing.T) {
	var c Chain[string]
	a := c.Add("a", 0)
	c.Add("b", 0)

	snap := c.Snapshot()
	c.Add("c", 0)
	c.Remove(a)

	if len(snap) != 2 {
		t.Fatalf("snapshot len = %d, want 2", len(snap))
	}
	if snap[0].Live() {
		t.Fatal("entry removed after snapshot should report dead")
	}
	if got := names(&c); !slices.Equal(got, []string{"b", "c"}) {
		t.Fatalf("order = %v, want [b c]", got)
	}
}

func TestClear(t *testing.T) {
	var c Chain[string]
	a := c.Add("a", 0)
	c.Clear()

	if !c.Empty() {
		t.Fatal("expected empty chain after Clear")
	}
	if a.Live() {
		t.Fatal("cleared entry still live")
	}
}

func TestSnapshotDoesNotAllocate(t *testing.T) {
	var c Chain[string]
	c.Add("a", 0)

	allocs := testing.AllocsPerRun(100, func() {
		for _, entry := range c.Snapshot() {
			_ = entry.Live()
		}
	})
	if allocs != 0 {
		t.Fatalf("allocs = %v, want 0", allocs)
	}
}
