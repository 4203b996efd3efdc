package format

// Alignment utilities for heap blocks.
// Block sizes are kept in words; growth happens in pages.

// AlignWord returns n aligned up to the next word boundary.
// A zero request still occupies one word.
//
// Example:
//
//	AlignWord(0)  = 8
//	AlignWord(1)  = 8
//	AlignWord(8)  = 8
//	AlignWord(9)  = 16
func AlignWord(n uint64) uint64 {
	if n == 0 {
		return Alignment
	}
	return (n + AlignmentMask) &^ AlignmentMask
}

// AlignPage returns n aligned up to the next multiple of page, which must be
// a power of two.
//
// Example:
//
//	AlignPage(1, 4096)    = 4096
//	AlignPage(4096, 4096) = 4096
//	AlignPage(4097, 4096) = 8192
func AlignPage(n, page uint64) uint64 {
	mask := page - 1
	return (n + mask) &^ mask
}

// PagesFor returns the number of whole pages needed to hold n bytes.
func PagesFor(n, page uint64) uint64 {
	return AlignPage(n, page) / page
}

// IsAligned reports whether n is a multiple of Alignment.
func IsAligned(n uint64) bool {
	return n&AlignmentMask == 0
}

// IsPowerOfTwo reports whether n is a non-zero power of two.
func IsPowerOfTwo(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
