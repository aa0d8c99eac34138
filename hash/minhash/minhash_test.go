package minhash

import "testing"

func TestHashTooShortIsNil(t *testing.T) {
	m := New([]byte{1, 2}, 8, 4, 0)
	if h := m.Hash(); h != nil {
		t.Errorf("Hash() on input shorter than shingle size = %v, want nil", h)
	}
}

func TestHashDeterministic(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	a := New(data, 16, 4, 42).Hash()
	b := New(data, 16, 4, 42).Hash()
	if len(a) != 16 || len(b) != 16 {
		t.Fatalf("Hash() length = %d/%d, want 16", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("register %d: %d != %d, same seed should be deterministic", i, a[i], b[i])
		}
	}
}

func TestJaccardSimilarityIdentical(t *testing.T) {
	data := []byte("identical input bytes")
	h := New(data, 32, 4, 7).Hash()
	if got := JaccardSimilarity(h, h); got != 1.0 {
		t.Errorf("JaccardSimilarity(h, h) = %v, want 1.0", got)
	}
}

func TestHexdigestLength(t *testing.T) {
	m := New([]byte("abcdefgh"), 4, 4, 0)
	got := m.Hexdigest()
	if len(got) != 4*8 {
		t.Errorf("Hexdigest length = %d, want %d", len(got), 4*8)
	}
}
