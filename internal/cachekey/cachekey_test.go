package cachekey

import "testing"

func TestDerivePathsZeroSizeHasTwoCandidates(t *testing.T) {
	candidates := DerivePaths("steam", "/depot/2767031/chunk/abc", 0)
	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want 2", len(candidates))
	}
}

func TestDerivePathsCountMatchesSliceFormula(t *testing.T) {
	// ceil(S / 2^20) + 1
	size := int64(2*SliceSize + 1)
	candidates := DerivePaths("steam", "/depot/2767031/chunk/abc", size)
	want := 3 + 1 // 3 slices (2 full + 1 partial byte) + no-range key
	if len(candidates) != want {
		t.Fatalf("candidates = %d, want %d", len(candidates), want)
	}
}

func TestNoRangeKeyIsDeterministic(t *testing.T) {
	a := NoRangeKey("steam", "/depot/1/chunk/a")
	b := NoRangeKey("steam", "/depot/1/chunk/a")
	if a != b {
		t.Fatal("expected deterministic hash")
	}
	if len(a) != 32 {
		t.Fatalf("hash length = %d, want 32", len(a))
	}
}

func TestRelPathLayout(t *testing.T) {
	candidates := DerivePaths("steam", "/x", 0)
	hash := candidates[0].Hash
	want := hash[30:32] + "/" + hash[28:30] + "/" + hash
	if candidates[0].Path != want {
		t.Fatalf("path = %q, want %q", candidates[0].Path, want)
	}
}
