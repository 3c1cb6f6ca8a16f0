package fastmap

import (
	"math/rand"
	"testing"
)

// Test basic functionality
func TestUint32Map(t *testing.T) {
	m := &Uint32Map[string]{}

	if _, ok := m.Get(1); ok {
		t.Error("Expected miss for empty map")
	}

	m.Set(1, "one")
	m.Set(2, "two")

	if v, ok := m.Get(1); !ok || v != "one" {
		t.Errorf("Get(1) = %q, %v", v, ok)
	}
	if v, ok := m.Get(2); !ok || v != "two" {
		t.Errorf("Get(2) = %q, %v", v, ok)
	}
	if _, ok := m.Get(3); ok {
		t.Error("Get(3) should miss")
	}

	// Update
	m.Set(1, "uno")
	if v, _ := m.Get(1); v != "uno" {
		t.Error("Update failed")
	}

	if m.Len() != 2 {
		t.Errorf("Expected len=2, got %d", m.Len())
	}

	m.Delete(1)
	if m.Len() != 1 {
		t.Error("Delete failed")
	}
	if _, ok := m.Get(1); ok {
		t.Error("Get after delete should miss")
	}
}

// Test with many entries to trigger growth
func TestUint32MapGrowth(t *testing.T) {
	m := &Uint32Map[int]{}

	n := 10000
	for i := 0; i < n; i++ {
		m.Set(uint32(i), i*10)
	}

	if m.Len() != n {
		t.Errorf("Expected len=%d, got %d", n, m.Len())
	}

	for i := 0; i < n; i++ {
		if v, ok := m.Get(uint32(i)); !ok || v != i*10 {
			t.Errorf("Get(%d) = %d, %v", i, v, ok)
		}
	}
}

// Test with key=0
func TestUint32MapZeroKey(t *testing.T) {
	m := &Uint32Map[int]{}

	m.Set(0, 999)
	if v, ok := m.Get(0); !ok || v != 999 {
		t.Error("Zero key failed")
	}
	if m.Len() != 1 {
		t.Error("Len should be 1")
	}
}

func TestUint32MapDelete(t *testing.T) {
	m := &Uint32Map[uint32]{}
	ref := make(map[uint32]uint32)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5000; i++ {
		k := uint32(rng.Intn(512))
		if rng.Intn(3) == 0 {
			m.Delete(k)
			delete(ref, k)
			continue
		}
		m.Set(k, k+1)
		ref[k] = k + 1
	}

	if m.Len() != len(ref) {
		t.Fatalf("Expected len=%d, got %d", len(ref), m.Len())
	}
	for k := uint32(0); k < 512; k++ {
		v, ok := m.Get(k)
		want, wantOK := ref[k]
		if ok != wantOK || v != want {
			t.Fatalf("Get(%d) = %d, %v; want %d, %v", k, v, ok, want, wantOK)
		}
	}
}

// Benchmark: Sequential reads (after populating) - FastMap
func BenchmarkFastMapSeqRead(b *testing.B) {
	m := &Uint32Map[int]{}
	for i := 0; i < 100000; i++ {
		m.Set(uint32(i), i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.Get(uint32(i % 100000))
	}
}

// Benchmark: Sequential reads - Go map
func BenchmarkGoMapSeqRead(b *testing.B) {
	m := make(map[uint32]int)
	for i := 0; i < 100000; i++ {
		m[uint32(i)] = i
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m[uint32(i%100000)]
	}
}
