package entity

import (
	"slices"
	"testing"
)

func TestValid(t *testing.T) {
	tests := []struct {
		id   ID
		want bool
	}{
		{id: Invalid, want: false},
		{id: 1, want: true},
		{id: -4, want: true},
	}

	for _, tt := range tests {
		if got := tt.id.Valid(); got != tt.want {
			t.Fatalf("ID(%d).Valid() = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestCompareGivesTotalOrder(t *testing.T) {
	ids := []ID{9, -2, 7, Invalid, 3}
	slices.SortFunc(ids, ID.Compare)

	want := []ID{-2, Invalid, 3, 7, 9}
	if !slices.Equal(ids, want) {
		t.Fatalf("sorted = %v, want %v", ids, want)
	}
	if got := ID(5).Compare(5); got != 0 {
		t.Fatalf("Compare(equal) = %d, want 0", got)
	}
}

func TestString(t *testing.T) {
	if got := ID(42).String(); got != "entity(42)" {
		t.Fatalf("String() = %q, want %q", got, "entity(42)")
	}
	if got := Invalid.String(); got != "entity(invalid)" {
		t.Fatalf("String() = %q, want %q", got, "entity(invalid)")
	}
}

func TestAllocatorNeverReturnsInvalid(t *testing.T) {
	var alloc Allocator
	first := alloc.Next()
	second := alloc.Next()

	if !first.Valid() || !second.Valid() {
		t.Fatalf("allocator returned invalid id: %v, %v", first, second)
	}
	if first.Compare(second) >= 0 {
		t.Fatalf("ids not increasing: %v then %v", first, second)
	}
}
