package hll

// storage abstracts over the four representations an Hll can hold
// (Explicit, Sparse, Full; Empty is represented by a nil storage and never
// implements this interface). Hll itself owns the promotion decisions --
// converting from one storage to the next -- since that requires knowledge
// of both types; a storage only needs to know how to manage its own bytes.
type storage interface {

	// overCapacity reports whether this storage has grown past the
	// threshold recorded in settings, signaling that Hll should promote it
	// to the next representation in the hierarchy.
	overCapacity(settings *settings) bool

	// sizeInBytes returns the length of this storage's serialized payload,
	// excluding the three-byte frame header. Hll uses this to size the
	// buffer it passes to writeBytes.
	sizeInBytes(settings *settings) int

	// writeBytes serializes this storage's payload into bytes, which is
	// guaranteed to be at least sizeInBytes(settings) long.
	writeBytes(settings *settings, bytes []byte)

	// fromBytes populates this storage from a previously-serialized
	// payload. It returns an error if bytes is truncated or otherwise
	// malformed for this representation.
	fromBytes(settings *settings, bytes []byte) error

	// copy returns an independent deep copy of this storage.
	copy() storage
}

// registers is implemented by the two probabilistic storages (Sparse,
// Full) in addition to storage; Explicit has no registers and only ever
// satisfies storage.
type registers interface {

	// setIfGreater updates register regnum to value, but only if value
	// exceeds whatever is already stored there -- registers only move
	// forward.
	setIfGreater(settings *settings, regnum int, value byte)

	// indicator computes Z, the HyperLogLog indicator function
	// (sum of 2^-M[j] over every register j), and V, the count of
	// registers still at zero. Cardinality derives the raw estimator and
	// the small-range correction from these two numbers.
	indicator(settings *settings) (float64, int)
}
