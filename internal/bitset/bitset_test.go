package bitset

import "testing"

func TestSetHasClear(t *testing.T) {
	b := New(4)
	if b.Has(3) {
		t.Error("fresh bitset should be empty")
	}
	b.Set(3)
	b.Set(255)
	if !b.Has(3) || !b.Has(255) {
		t.Error("set bits not visible")
	}
	if b.Count() != 2 {
		t.Errorf("Count = %d, want 2", b.Count())
	}
	b.Clear(3)
	if b.Has(3) {
		t.Error("cleared bit still visible")
	}
	if b.Has(-1) {
		t.Error("negative index should report false")
	}
}

func TestGrowth(t *testing.T) {
	b := New(0)
	b.Set(1000)
	if !b.Has(1000) {
		t.Error("bit beyond initial capacity lost")
	}
	if b.Has(999) || b.Has(1001) {
		t.Error("neighbors should be clear")
	}
}

func TestNextSet(t *testing.T) {
	b := New(4)
	b.Set(7)
	b.Set(64)
	b.Set(200)

	want := []int{7, 64, 200}
	got := []int{}
	for i := b.NextSet(0); i >= 0; i = b.NextSet(i + 1) {
		got = append(got, i)
	}
	if len(got) != len(want) {
		t.Fatalf("NextSet walk = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NextSet walk[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if b.NextSet(201) != -1 {
		t.Error("NextSet past last bit should return -1")
	}
}

func TestForEachEarlyStop(t *testing.T) {
	b := New(1)
	b.Set(1)
	b.Set(2)
	b.Set(3)

	visited := 0
	b.ForEach(func(idx int) bool {
		visited++
		return visited < 2
	})
	if visited != 2 {
		t.Errorf("visited = %d, want 2", visited)
	}
}

func TestUnionAndReset(t *testing.T) {
	a := New(1)
	a.Set(1)
	other := New(2)
	other.Set(100)

	a.Union(other)
	if !a.Has(1) || !a.Has(100) {
		t.Error("union lost bits")
	}

	a.Reset()
	if !a.IsEmpty() {
		t.Error("reset bitset should be empty")
	}
}

func TestClone(t *testing.T) {
	a := New(1)
	a.Set(5)
	cp := a.Clone()
	cp.Set(6)
	if a.Has(6) {
		t.Error("clone must not alias the original")
	}
	if !cp.Has(5) {
		t.Error("clone lost bits")
	}
}
