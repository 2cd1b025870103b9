package hll

import (
	"github.com/pkg/errors"

	"github.com/cardinalsketch/hll/internal/bitpack"
	"github.com/cardinalsketch/hll/internal/wordcodec"
)

// fullStorage is a dense array of one register per bucket, bit-packed into
// 64-bit words via internal/bitpack. It has no further promotion path.
type fullStorage struct {
	regs *bitpack.Array
}

// newFullStorage allocates a fullStorage instance with m = 2^log2m registers,
// each regwidth bits wide.
func newFullStorage(settings *settings) fullStorage {
	return fullStorage{regs: bitpack.New(settings.regwidth, 1<<uint(settings.log2m))}
}

// overCapacity always returns false for full storage because there is no
// upgrade path beyond it.
func (s fullStorage) overCapacity(settings *settings) bool {
	return false
}

// sizeInBytes returns the number of bytes required to represent every
// register value, which may be fewer than len(s.regs.Words())*8 since the
// final word can be partially used.
func (s fullStorage) sizeInBytes(settings *settings) int {
	return divideBy8RoundUp((1 << uint(settings.log2m)) * settings.regwidth)
}

// writeBytes serializes every register, in ascending index order, through
// the same big-endian ascending word codec Sparse uses. The wire layout is
// therefore independent of bitpack.Array's internal (LSB-first) in-memory
// packing -- one register per regwidth-bit word, MSB-first ascending.
func (s fullStorage) writeBytes(settings *settings, bytes []byte) {

	ser, err := wordcodec.NewSerializer(settings.regwidth, s.regs.Len(), 0)
	if err != nil {
		// settings are validated at construction time, so a bad word length
		// here would indicate a coding error, not bad input.
		panic(err)
	}

	it := s.regs.Iterator()
	for {
		value, ok := it.Next()
		if !ok {
			break
		}
		// this serializer was sized for exactly s.regs.Len() words,
		// so WriteWord can only fail here from a coding error -- surface it
		// as ErrCapacityViolation (§7) rather than the bare wordcodec error.
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

// fromBytes deserializes the binary register values into this storage
// instance.
func (s fullStorage) fromBytes(settings *settings, bytes []byte) error {

	if len(bytes) != divideBy8RoundUp((1<<uint(settings.log2m))*settings.regwidth) {
		return ErrInsufficientBytes
	}

	deser, err := wordcodec.NewDeserializer(settings.regwidth, 0, bytes)
	if err != nil {
		return ErrInsufficientBytes
	}

	for i := 0; i < s.regs.Len(); i++ {
		value, err := deser.ReadWord()
		if err != nil {
			return ErrInsufficientBytes
		}
		s.regs.Set(i, value)
	}

	return nil
}

func (s fullStorage) copy() storage {
	cp := bitpack.New(s.regs.Width(), s.regs.Len())
	cp.SetWords(append([]uint64(nil), s.regs.Words()...))
	return fullStorage{regs: cp}
}

// indicator computes the HyperLogLog indicator function Z and the number of
// zero-valued registers V in a single linear pass.
func (s fullStorage) indicator(settings *settings) (float64, int) {

	sum := float64(0)
	numberOfZeros := 0

	it := s.regs.Iterator()
	for {
		value, ok := it.Next()
		if !ok {
			break
		}
		sum += 1.0 / float64(uint64(1)<<value)
		if value == 0 {
			numberOfZeros++
		}
	}

	return sum, numberOfZeros
}

func (s fullStorage) setIfGreater(settings *settings, regnum int, value byte) {
	s.regs.SetMax(regnum, uint64(value))
}

// union merges other into the receiver in place, taking the max of each
// corresponding register. Both must share identical regwidth and log2m,
// which fullUnion enforces before calling this.
func (s fullStorage) union(settings *settings, other fullStorage) {
	it := other.regs.Iterator()
	i := 0
	for {
		value, ok := it.Next()
		if !ok {
			break
		}
		s.regs.SetMax(i, value)
		i++
	}
}

// get extracts a single register value. It is used to union two full
// storage instances with differing settings, one register at a time.
func (s fullStorage) get(regnum int) byte {
	return byte(s.regs.Get(regnum))
}
