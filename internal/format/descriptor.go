package format

import "fmt"

// Descriptor is the word stored in front of every block.
//
// Layout:
//
//	Bit     Description
//	63      Free flag. 1 => free, 0 => in use.
//	62      Prev-free flag. 1 => the block before this one is free.
//	0..61   Total block size (header + payload) in words.
//
// A free block repeats its descriptor in its last word (the footer), so the
// block after it can find its start without walking the chain.
type Descriptor uint64

// Encode builds a descriptor for a block of units words.
//
// A unit count that reaches into the flag bits cannot be represented; that is
// a configuration error the allocator rules out by capping requests, so Encode
// panics rather than silently truncating the size.
func Encode(units uint64, free bool) Descriptor {
	if units&^UnitMask != 0 {
		panic(fmt.Sprintf("format: block of %d words collides with the flag bits", units))
	}
	d := Descriptor(units)
	if free {
		d |= Descriptor(FreeFlag)
	}
	return d
}

// EncodeBytes builds a descriptor for a block of size bytes. size must be a
// multiple of WordSize.
func EncodeBytes(size uint64, free bool) Descriptor {
	return Encode(size/WordSize, free)
}

// Decode splits a descriptor into its unit count and free flag.
func Decode(d Descriptor) (units uint64, free bool) {
	return d.Units(), d.Free()
}

// Units returns the total block size in words.
func (d Descriptor) Units() uint64 { return uint64(d) & UnitMask }

// Free reports whether the free flag is set.
func (d Descriptor) Free() bool { return uint64(d)&FreeFlag != 0 }

// PrevFree reports whether the block before this one is free.
func (d Descriptor) PrevFree() bool { return uint64(d)&PrevFreeFlag != 0 }

// Size returns the total block size in bytes, header included.
func (d Descriptor) Size() uint64 { return d.Units() * WordSize }

// PayloadSize returns the number of payload bytes following the header.
func (d Descriptor) PayloadSize() uint64 {
	if d.Units() <= 1 {
		return 0
	}
	return d.Size() - HeaderSize
}

// WithFree returns d with the free flag set to free.
func (d Descriptor) WithFree(free bool) Descriptor {
	if free {
		return d | Descriptor(FreeFlag)
	}
	return d &^ Descriptor(FreeFlag)
}

// WithPrevFree returns d with the prev-free flag set to free.
func (d Descriptor) WithPrevFree(free bool) Descriptor {
	if free {
		return d | Descriptor(PrevFreeFlag)
	}
	return d &^ Descriptor(PrevFreeFlag)
}

func (d Descriptor) String() string {
	state := "used"
	if d.Free() {
		state = "free"
	}
	if d.PrevFree() {
		return fmt.Sprintf("%s/%d+pf", state, d.Size())
	}
	return fmt.Sprintf("%s/%d", state, d.Size())
}

// PutDescriptor writes d at off.
func PutDescriptor(b []byte, off int, d Descriptor) {
	PutU64(b, off, uint64(d))
}

// ReadDescriptor reads the descriptor at off.
func ReadDescriptor(b []byte, off int) Descriptor {
	return Descriptor(ReadU64(b, off))
}
