package hll

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/cardinalsketch/hll/internal/wordcodec"
)

// sparseStorage maps a sparsely-populated set of register indexes to their
// values. Indexes absent from the map are implicitly zero.
type sparseStorage map[int32]byte

func (s sparseStorage) overCapacity(settings *settings) bool {
	return len(s) > settings.sparseThreshold
}

func (s sparseStorage) sizeInBytes(settings *settings) int {
	return divideBy8RoundUp(settings.shortWordLength * len(s))
}

// writeBytes packs each (index, value) pair into a single shortWordLength
// word -- index in the high log2m bits, value in the low regwidth
// bits -- and writes the words out in ascending index order, per the storage
// spec's sparse encoding.
func (s sparseStorage) writeBytes(settings *settings, bytes []byte) {

	sortedRegisters := make([]int32, 0, len(s))
	for reg := range s {
		sortedRegisters = append(sortedRegisters, reg)
	}
	sort.Slice(sortedRegisters, func(i, j int) bool { return sortedRegisters[i] < sortedRegisters[j] })

	ser, err := wordcodec.NewSerializer(settings.shortWordLength, len(sortedRegisters), 0)
	if err != nil {
		// settings are validated at construction time, so a bad word length
		// here would indicate a coding error, not bad input.
		panic(err)
	}

	for _, reg := range sortedRegisters {
		word := (uint64(reg) << uint(settings.regwidth)) | uint64(s[reg])
		// this serializer was sized for exactly len(sortedRegisters)
		// words, so WriteWord can only fail here from a coding error --
		// surface it as ErrCapacityViolation (§7) rather than the bare
		// wordcodec error.
		if err := ser.WriteWord(word); err != nil {
			panic(errors.Wrap(ErrCapacityViolation, err.Error()))
		}
	}

	packed, err := ser.Bytes()
	if err != nil {
		panic(errors.Wrap(ErrCapacityViolation, err.Error()))
	}
	copy(bytes, packed)
}

func (s sparseStorage) fromBytes(settings *settings, bytes []byte) error {

	deser, err := wordcodec.NewDeserializer(settings.shortWordLength, 0, bytes)
	if err != nil {
		return ErrInsufficientBytes
	}

	numRegisters := deser.TotalWordCount()

	for i := 0; i < numRegisters; i++ {
		regAndVal, err := deser.ReadWord()
		if err != nil {
			return ErrInsufficientBytes
		}
		// a zero-valued register is equivalent to its absence from the map;
		// storing it would violate the sparse invariant and would also
		// throw off indicator()'s zero-register count.
		if value := byte(regAndVal) & byte(settings.valueMask); value != 0 {
			s[int32(regAndVal>>uint(settings.regwidth))] = value
		}
	}

	return nil
}

func (s sparseStorage) copy() storage {
	o := make(sparseStorage, len(s))
	for k, v := range s {
		o[k] = v
	}

	return o
}

func (s sparseStorage) setIfGreater(settings *settings, regnum int, value byte) {
	if existing := s[int32(regnum)]; value > existing {
		s[int32(regnum)] = value
	}
}

func (s sparseStorage) indicator(settings *settings) (float64, int) {

	sum := float64(0)
	for _, v := range s {
		sum += 1.0 / float64(uint64(1)<<v)
	}

	numberOfZeros := (1 << uint(settings.log2m)) - len(s)
	sum += float64(numberOfZeros)

	return sum, numberOfZeros
}
