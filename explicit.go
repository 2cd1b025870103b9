package hll

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/cardinalsketch/hll/internal/wordcodec"
)

// explicitStorage is the exact set of raw values seen so far, kept until the
// set outgrows the configured explicit threshold.
type explicitStorage map[uint64]struct{}

// overCapacity reports whether the set has grown past the point where an
// Explicit representation is still more compact than the probabilistic one
// it would promote to.
func (s explicitStorage) overCapacity(settings *settings) bool {
	return len(s) > settings.explicitThreshold
}

func (s explicitStorage) sizeInBytes(settings *settings) int {
	return 8 * len(s)
}

// writeBytes packs every observed value as a 64-bit word through the same
// big-endian ascending word codec the Sparse and Full representations use,
// one word per value, in ascending order. The storage spec requires the
// values be written in sorted order so a reader can binary-search the
// Explicit payload without decoding it first.
func (s explicitStorage) writeBytes(settings *settings, bytes []byte) {

	sortedValues := make([]uint64, 0, len(s))
	for value := range s {
		sortedValues = append(sortedValues, value)
	}
	sort.Slice(sortedValues, func(i, j int) bool { return sortedValues[i] < sortedValues[j] })

	ser, err := wordcodec.NewSerializer(64, len(sortedValues), 0)
	if err != nil {
		// word length 64 is always valid; this would only fail from a
		// coding error.
		panic(err)
	}

	for _, value := range sortedValues {
		// this serializer was sized for exactly len(sortedValues)
		// words, so WriteWord can only fail here from a coding error --
		// surface it as ErrCapacityViolation (§7) rather than the bare
		// wordcodec error.
		if err := ser.WriteWord(value); err != nil {
			panic(errors.Wrap(ErrCapacityViolation, err.Error()))
		}
	}

	packed, err := ser.Bytes()
	if err != nil {
		panic(errors.Wrap(ErrCapacityViolation, err.Error()))
	}
	copy(bytes, packed)
}

// fromBytes reads a sequence of 64-bit words back into the set. It returns
// an error if the byte slice doesn't divide evenly into 8-byte words; the
// storage spec has no element count, so a partial trailing word can only be
// detected this way, not recovered from.
func (s explicitStorage) fromBytes(settings *settings, bytes []byte) error {

	if len(bytes)%8 != 0 {
		return ErrInsufficientBytes
	}

	deser, err := wordcodec.NewDeserializer(64, 0, bytes)
	if err != nil {
		return ErrInsufficientBytes
	}

	for i := 0; i < deser.TotalWordCount(); i++ {
		value, err := deser.ReadWord()
		if err != nil {
			return ErrInsufficientBytes
		}
		s[value] = struct{}{}
	}

	return nil
}

func (s explicitStorage) copy() storage {
	o := make(explicitStorage, len(s))
	for k, v := range s {
		o[k] = v
	}

	return o
}
