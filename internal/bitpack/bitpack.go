// Package bitpack implements the bit-packed register array described by the
// HLL storage spec: a dense vector of fixed-width registers, packed
// contiguously into 64-bit words so that a register may straddle a word
// boundary.
package bitpack

import "fmt"

// Array is a dense vector of count registers, each width bits wide (1..64).
// Registers are numbered 0..count-1; register 0 occupies the least
// significant width bits of word 0, and registers pack consecutively from
// there toward the most significant bit, spanning word boundaries where
// necessary. This mirrors AdRoll/python-hll's BitVector layout rather than a
// big-endian byte dump -- wire serialization is a separate concern, handled
// by packing each register through internal/wordcodec rather than by
// exposing this array's bits directly.
type Array struct {
	words []uint64
	width int
	count int
	mask  uint64
}

// New allocates an Array of count registers, each width bits wide. It panics
// if width is outside 1..64 or count is negative; callers are expected to
// have already validated these against the HLL parameter ranges.
func New(width, count int) *Array {
	if width < 1 || width > 64 {
		panic(fmt.Sprintf("bitpack: width must be 1..64, got %d", width))
	}
	if count < 0 {
		panic(fmt.Sprintf("bitpack: count must be >= 0, got %d", count))
	}

	totalBits := width * count
	nWords := totalBits >> 6
	if totalBits&0x3f != 0 {
		nWords++
	}

	var mask uint64
	if width == 64 {
		mask = ^uint64(0)
	} else {
		mask = (uint64(1) << uint(width)) - 1
	}

	return &Array{
		words: make([]uint64, nWords),
		width: width,
		count: count,
		mask:  mask,
	}
}

// Width returns the bit width of each register.
func (a *Array) Width() int { return a.width }

// Len returns the number of registers in the array.
func (a *Array) Len() int { return a.count }

// Words exposes the backing 64-bit words in ascending order, for deep-copy
// purposes. This is an in-memory layout, not a wire format -- it is not
// meant to be dumped directly as serialized bytes.
func (a *Array) Words() []uint64 { return a.words }

// SetWords replaces the backing words wholesale. The caller must supply
// exactly len(a.Words()) words; this is used to implement a deep copy of an
// existing Array.
func (a *Array) SetWords(words []uint64) {
	copy(a.words, words)
}

// Get reads the value of register i.
func (a *Array) Get(i int) uint64 {
	bitIndex := i * a.width
	firstWordIndex := bitIndex >> 6
	bitRemainder := uint(bitIndex & 0x3f)

	value := a.words[firstWordIndex] >> bitRemainder
	if bitRemainder+uint(a.width) > 64 {
		value |= a.words[firstWordIndex+1] << (64 - bitRemainder)
	}

	return value & a.mask
}

// Set writes v (masked to width bits) into register i, discarding whatever
// value was previously there.
func (a *Array) Set(i int, v uint64) {
	v &= a.mask
	bitIndex := i * a.width
	firstWordIndex := bitIndex >> 6
	bitRemainder := uint(bitIndex & 0x3f)

	fieldMask := a.mask << bitRemainder
	a.words[firstWordIndex] = (a.words[firstWordIndex] &^ fieldMask) | (v << bitRemainder)

	if bitRemainder+uint(a.width) > 64 {
		nBitsLower := 64 - bitRemainder
		upperMask := a.mask >> nBitsLower
		a.words[firstWordIndex+1] = (a.words[firstWordIndex+1] &^ upperMask) | (v >> nBitsLower)
	}
}

// SetMax sets register i to v if v is greater than the register's current
// value. It returns true if v is greater than or equal to the prior value
// (i.e. whether the register's post-call value is v).
func (a *Array) SetMax(i int, v uint64) bool {
	v &= a.mask
	current := a.Get(i)
	if v > current {
		a.Set(i, v)
		return true
	}
	return v == current
}

// Fill sets every register to v.
func (a *Array) Fill(v uint64) {
	for i := 0; i < a.count; i++ {
		a.Set(i, v)
	}
}

// Zero clears every register to 0. It is cheaper than Fill(0) because it
// operates on whole words rather than registers.
func (a *Array) Zero() {
	for i := range a.words {
		a.words[i] = 0
	}
}

// Iterator yields register values in ascending index order.
type Iterator struct {
	a   *Array
	idx int
}

// Iterator returns a fresh Iterator positioned before register 0.
func (a *Array) Iterator() *Iterator {
	return &Iterator{a: a}
}

// Next returns the next register value and true, or (0, false) once every
// register has been yielded.
func (it *Iterator) Next() (uint64, bool) {
	if it.idx >= it.a.count {
		return 0, false
	}
	v := it.a.Get(it.idx)
	it.idx++
	return v, true
}
