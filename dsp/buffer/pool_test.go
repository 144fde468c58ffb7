package buffer

import "testing"

func TestPoolGetReturnsZeroed(t *testing.T) {
	p := NewPool()

	b := p.Get(8, 48000)
	if b.Len() != 8 || b.SampleRate() != 48000 {
		t.Fatalf("Len() = %d, SampleRate() = %v", b.Len(), b.SampleRate())
	}

	for i, v := range b.Samples() {
		if v != 0 {
			t.Fatalf("Samples()[%d] = %v, want 0", i, v)
		}
	}

	p.Put(b)
}

func TestPoolReuseIsZeroed(t *testing.T) {
	p := NewPool()

	b := p.Get(4, 1)
	b.Samples()[0] = 42
	b.Samples()[1] = 43
	p.Put(b)

	b2 := p.Get(4, 2)
	for i, v := range b2.Samples() {
		if v != 0 {
			t.Fatalf("reused Samples()[%d] = %v, want 0", i, v)
		}
	}
	if b2.SampleRate() != 2 {
		t.Fatalf("SampleRate() = %v, want 2", b2.SampleRate())
	}

	p.Put(b2)
	p.Put(nil)
}
