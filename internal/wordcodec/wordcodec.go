// Package wordcodec implements the "big-endian ascending word" codec from
// the HLL storage spec: a sequence of fixed-width words is packed MSB-first
// into a byte array, word 0 occupying the highest bits of the first
// non-padding byte, with the final byte zero-padded on the right if
// necessary.
//
// This is deliberately independent of the register bit-packing used by the
// in-memory Full representation (see internal/bitpack): it exists to read
// and write the variable-width words that appear on the wire for the
// Explicit, Sparse and Full representations, where the word width (64 bits,
// regwidth+log2m bits, or regwidth bits) doesn't line up with a convenient
// word-per-word memory layout.
package wordcodec

import "errors"

// ErrBadWordLength is returned when a word length outside 1..64 is supplied
// to a Serializer or Deserializer.
var ErrBadWordLength = errors.New("wordcodec: word length must be 1..64")

// ErrBadPadding is returned when a negative byte padding is supplied.
var ErrBadPadding = errors.New("wordcodec: byte padding must be >= 0")

// ErrCapacityExceeded is returned by WriteWord once the serializer's word
// count has already been reached, and by Bytes if it is called before every
// word has been written.
var ErrCapacityExceeded = errors.New("wordcodec: word capacity exceeded")

// ErrOutOfRange is returned by ReadWord when the next word would read past
// the end of the backing buffer.
var ErrOutOfRange = errors.New("wordcodec: word position out of bounds")

const bitsPerByte = 8

// Serializer writes a fixed-length sequence of fixed-width words into a byte
// array. It is single-use: construct one, call WriteWord exactly wordCount
// times, then call Bytes.
type Serializer struct {
	wordLength int
	wordCount  int
	bytes      []byte

	byteIndex      int
	bitsLeftInByte int
	wordsWritten   int
}

// NewSerializer allocates a Serializer for wordCount words of wordLength
// bits each, preceded by bytePadding leading zero bytes (reserved for a
// caller-written header).
func NewSerializer(wordLength, wordCount, bytePadding int) (*Serializer, error) {
	if wordLength < 1 || wordLength > 64 {
		return nil, ErrBadWordLength
	}
	if wordCount < 0 {
		return nil, errors.New("wordcodec: word count must be >= 0")
	}
	if bytePadding < 0 {
		return nil, ErrBadPadding
	}

	bitsRequired := wordLength * wordCount
	bytesRequired := bitsRequired / bitsPerByte
	if bitsRequired%bitsPerByte != 0 {
		bytesRequired++
	}
	bytesRequired += bytePadding

	return &Serializer{
		wordLength:     wordLength,
		wordCount:      wordCount,
		bytes:          make([]byte, bytesRequired),
		byteIndex:      bytePadding,
		bitsLeftInByte: bitsPerByte,
	}, nil
}

// WriteWord writes the low wordLength bits of word into the backing array.
func (s *Serializer) WriteWord(word uint64) error {
	if s.wordsWritten == s.wordCount {
		return ErrCapacityExceeded
	}

	bitsLeftInWord := s.wordLength

	for bitsLeftInWord > 0 {
		if s.bitsLeftInByte == 0 {
			s.byteIndex++
			s.bitsLeftInByte = bitsPerByte
		}

		var consumedMask uint64
		if bitsLeftInWord == 64 {
			consumedMask = ^uint64(0)
		} else {
			consumedMask = (uint64(1) << uint(bitsLeftInWord)) - 1
		}

		bitsToWrite := s.bitsLeftInByte
		if bitsToWrite > bitsLeftInWord {
			bitsToWrite = bitsLeftInWord
		}
		bitsLeftInByteAfter := s.bitsLeftInByte - bitsToWrite

		remaining := word & consumedMask

		var toWrite uint64
		if bitsLeftInWord > bitsToWrite {
			toWrite = remaining >> uint(bitsLeftInWord-s.bitsLeftInByte)
		} else {
			toWrite = remaining
		}

		aligned := toWrite << uint(bitsLeftInByteAfter)
		s.bytes[s.byteIndex] |= byte(aligned)

		bitsLeftInWord -= bitsToWrite
		s.bitsLeftInByte = bitsLeftInByteAfter
	}

	s.wordsWritten++
	return nil
}

// Bytes returns the backing byte array. It fails if not every word has been
// written yet.
func (s *Serializer) Bytes() ([]byte, error) {
	if s.wordsWritten < s.wordCount {
		return nil, ErrCapacityExceeded
	}
	return s.bytes, nil
}

// Deserializer reads a fixed-width word sequence back out of a byte array.
type Deserializer struct {
	wordLength  int
	bytePadding int
	data        []byte

	dataBits     int
	wordCount    int
	currentIndex int
}

// NewDeserializer builds a Deserializer over data, skipping the leading
// bytePadding bytes that hold a caller-defined header.
func NewDeserializer(wordLength, bytePadding int, data []byte) (*Deserializer, error) {
	if wordLength < 1 || wordLength > 64 {
		return nil, ErrBadWordLength
	}
	if bytePadding < 0 {
		return nil, ErrBadPadding
	}

	dataBytes := len(data) - bytePadding
	if dataBytes < 0 {
		dataBytes = 0
	}
	dataBits := dataBytes * bitsPerByte

	return &Deserializer{
		wordLength:  wordLength,
		bytePadding: bytePadding,
		data:        data,
		dataBits:    dataBits,
		wordCount:   dataBits / wordLength,
	}, nil
}

// TotalWordCount returns the number of words that could be read from the
// buffer; note that for wordLength < 8 this may overcount by one trailing
// all-zero word introduced by byte padding. Callers that know the true
// element count (e.g. Full, which always has exactly m registers) should
// call ReadWord that many times rather than relying on this value.
func (d *Deserializer) TotalWordCount() int {
	return d.wordCount
}

// ReadWord returns the next word in the sequence.
func (d *Deserializer) ReadWord() (uint64, error) {
	value, err := d.readWordAt(d.currentIndex)
	if err != nil {
		return 0, err
	}
	d.currentIndex++
	return value, nil
}

func (d *Deserializer) readWordAt(position int) (uint64, error) {
	firstBitIndex := position * d.wordLength
	firstByteIndex := d.bytePadding + firstBitIndex/bitsPerByte
	firstByteSkipBits := firstBitIndex % bitsPerByte

	lastBitIndex := firstBitIndex + d.wordLength - 1
	lastByteIndex := d.bytePadding + lastBitIndex/bitsPerByte

	bitsAfterByteBoundary := (lastBitIndex + 1) % bitsPerByte
	lastByteBitsToConsume := bitsAfterByteBoundary
	if lastByteBitsToConsume == 0 {
		lastByteBitsToConsume = bitsPerByte
	}

	if lastByteIndex >= len(d.data) {
		return 0, ErrOutOfRange
	}

	var value uint64

	bitsRemainingInFirstByte := bitsPerByte - firstByteSkipBits
	bitsToConsumeInFirstByte := bitsRemainingInFirstByte
	if bitsToConsumeInFirstByte > d.wordLength {
		bitsToConsumeInFirstByte = d.wordLength
	}

	firstByteMask := byte((1 << uint(bitsRemainingInFirstByte)) - 1)
	firstByte := d.data[firstByteIndex] & firstByteMask
	firstByte >>= uint(bitsRemainingInFirstByte - bitsToConsumeInFirstByte)
	value = uint64(firstByte)

	if firstByteIndex == lastByteIndex {
		return value, nil
	}

	for i := firstByteIndex + 1; i < lastByteIndex; i++ {
		value = (value << bitsPerByte) | uint64(d.data[i])
	}

	lastByte := d.data[lastByteIndex]
	lastByte >>= uint(bitsPerByte - lastByteBitsToConsume)
	value = (value << uint(lastByteBitsToConsume)) | uint64(lastByte)

	return value, nil
}
