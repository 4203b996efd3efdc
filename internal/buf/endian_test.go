package buf

import "testing"

func TestU64LE(t *testing.T) {
	data := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}

	if got := U64LE(data); got != 0xefcdab8967452301 {
		t.Fatalf("U64LE = 0x%x, want 0xefcdab8967452301", got)
	}
	if U64LE([]byte{0xAA}) != 0 {
		t.Fatalf("short read should return 0")
	}
}
