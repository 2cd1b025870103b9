package hll

import (
	"math"
	"math/bits"

	"github.com/pkg/errors"
)

// storageType is an enum whose values match the type ordinal in the storage
// spec's header byte. The spec calls the dense, bit-packed representation
// "full"; we keep that name here too since it's more descriptive than
// "dense" once Sparse is also backed by packed words.
type storageType int

const (
	undefined storageType = iota
	empty
	explicit
	sparse
	full
)

// Hll is a probabilistic set of hashed elements. It supports add and union
// operations in addition to estimating the cardinality. The zero value is an
// empty set, provided that Defaults has been invoked with default settings.
// Otherwise, operations on the zero value will cause a panic as it would be a
// coding error to attempt operations without first configuring the library.
type Hll struct {
	settings *settings
	storage  storage
}

// NewHll creates a new Hll with the provided settings. It will return an
// error if the settings are invalid. Since an application usually deals with
// homogeneous Hlls, it's preferable to install default settings and use the
// zero value. This function is provided in case an application must juggle
// different configurations.
func NewHll(s Settings) (Hll, error) {

	settings, err := s.toInternal()
	if err != nil {
		return Hll{}, err
	}

	return Hll{settings: settings}, nil
}

// FromBytes deserializes the provided byte slice into an Hll. It will return
// an error if the schema version is anything other than 1, if the leading
// bytes specify an invalid configuration, or if the byte slice is truncated.
func FromBytes(data []byte) (Hll, error) {

	if len(data) < 3 {
		return Hll{}, ErrInsufficientBytes
	}

	version, storageType := int(data[0]>>4), storageType(data[0]&0xf)
	if version != 1 {
		return Hll{}, errors.Wrapf(ErrCorruptEncoding, "unsupported schema version: %d", version)
	}

	// NOTE: this means undefined cannot be instantiated from bytes, even
	// though nothing in the header format itself prevents encoding it.
	if storageType < empty || storageType > full {
		return Hll{}, errors.Wrapf(ErrCorruptEncoding, "invalid storage type ordinal: %d", storageType)
	}

	regwidth, log2m := (data[1]>>5)+1, data[1]&0x1f

	sparseEnabled, explicitThreshold := unpackCutoffByte(data[2])

	settings := Settings{
		Log2m:             int(log2m),
		Regwidth:          int(regwidth),
		SparseEnabled:     sparseEnabled,
		ExplicitThreshold: explicitThreshold,
	}

	internalSettings, err := settings.toInternal()
	if err != nil {
		return Hll{}, errors.Wrap(ErrCorruptEncoding, err.Error())
	}

	h := Hll{settings: internalSettings}

	switch storageType {
	case explicit:
		h.storage = make(explicitStorage)
	case sparse:
		h.storage = make(sparseStorage)
	case full:
		h.storage = newFullStorage(h.settings)
	}

	storageBytes := data[3:]
	if h.storage != nil {
		err = h.storage.fromBytes(h.settings, storageBytes)
	}

	if err != nil {
		return Hll{}, err
	}

	return h, nil
}

// Settings returns the Settings for this Hll.
func (h *Hll) Settings() Settings {
	h.initOrPanic()
	return h.settings.toExternal()
}

// AddRaw adds the observed value into the Hll. The value must already have
// been hashed with a well-distributed 64-bit hash function; hashing raw
// input items is outside this package's scope. If the value does not have
// sufficient entropy, the resulting cardinality estimates will not be
// accurate.
//
// A raw value of 0 is only a no-op in the probabilistic (sparse or full)
// representations, where p(0x0) is undefined and the target register is
// already zero. An Explicit set still stores 0 like any other value.
func (h *Hll) AddRaw(value uint64) {

	h.initOrPanic()

	// bootstrap case...if this is an empty HLL, it needs storage so we can
	// add to it.
	if h.storage == nil {
		if h.settings.explicitThreshold > 0 {
			h.storage = make(explicitStorage)
		} else if h.settings.sparseEnabled {
			h.storage = make(sparseStorage)
		} else {
			h.storage = newFullStorage(h.settings)
		}
	}

	switch s := h.storage.(type) {
	case explicitStorage:
		s[value] = struct{}{}
	case registers:
		// p(w): position of the least significant set bit (one-indexed).
		// By contract: p(w) <= 2^regwidth - 1 (the max register value).
		//
		// By construction of pwMaxMask, lsb(pwMaxMask) = 2^regwidth - 2, so
		// lsb(any_long | pwMaxMask) <= 2^regwidth - 2, so
		// 1 + lsb(any_long | pwMaxMask) <= 2^regwidth - 1.
		substreamValue := value >> uint(h.settings.log2m)
		if substreamValue == 0 {
			// p(0x0) is undefined; the original registers are already zero,
			// so treating this as a no-op is equivalent to ignoring it. The
			// probability of this happening is 1/(2^(2^regwidth)).
			return
		}

		// trailing zeros == the 0-based index of the least significant 1
		// bit, so no further +1 for 0-based indexing is needed here.
		pW := byte(1 + bits.TrailingZeros64(substreamValue|h.settings.pwMaxMask))
		i := int(value & h.settings.mBitsMask)

		s.setIfGreater(h.settings, i, pW)
	}

	if h.storage.overCapacity(h.settings) {
		h.upgrade()
	}
}

// Cardinality estimates the number of distinct values that have been added
// to this Hll.
func (h *Hll) Cardinality() uint64 {

	h.initOrPanic()

	switch s := h.storage.(type) {
	case explicitStorage:
		return uint64(len(s))
	case registers:
		sum, numberOfZeros /*"V" in the paper*/ := s.indicator(h.settings)

		estimator := h.settings.alphaMSquared / sum

		if numberOfZeros != 0 && estimator < h.settings.smallEstimatorCutoff {
			// the "small range correction" formula. Only appropriate if the
			// estimator is smaller than (5/2)*m and there are still
			// registers with the zero value.
			m := 1 << uint(h.settings.log2m)
			smallEstimator := float64(m) * math.Log(float64(m)/float64(numberOfZeros))
			return uint64(math.Ceil(smallEstimator))
		}

		if estimator <= h.settings.largeEstimatorCutoff {
			return uint64(math.Ceil(estimator))
		}

		// the "large range correction" formula, adapted for 64-bit hashes.
		// Only appropriate for estimators whose value exceeds the cutoff.
		logArg := 1.0 - (estimator / h.settings.twoToL)
		if logArg <= 0 {
			// estimator >= 2^L: outside ln's domain. This can only happen
			// with an astronomically unlikely run of hash collisions: treat
			// it defensively rather than propagate -Inf/NaN.
			return 0
		}

		largeEstimator := -1 * h.settings.twoToL * math.Log(logArg)
		return uint64(math.Ceil(largeEstimator))

	default:
		// nil case: an Empty Hll has seen nothing.
		return 0
	}
}

// Union calculates the union of this Hll and the other Hll and stores the
// result into the receiver.
//
// Unlike StrictUnion, it allows unions between Hlls with different settings
// to be combined, though doing so is not recommended because it will result
// in a loss of accuracy.
//
// As long as your application uses a single group of settings, it is safe to
// use this function. If there is a possibility that you may union two Hlls
// with incompatible settings, then it's safer to use StrictUnion and check
// for errors.
func (h *Hll) Union(other Hll) {
	if err := h.union(other, false); err != nil {
		// since the above union call passes false to strict, the only way
		// an error could surface here is a bug in this package.
		panic(err)
	}
}

// StrictUnion calculates the union of this Hll and the other Hll and stores
// the result into the receiver. It returns an error if the two Hlls are not
// compatible, where compatibility means having the same register width and
// log2m. Explicit and sparse thresholds don't factor into compatibility.
func (h *Hll) StrictUnion(other Hll) error {
	return h.union(other, true)
}

func (h *Hll) union(other Hll, strict bool) error {

	h.initOrPanic()
	other.initOrPanic()

	sameSettings := h.settings.regwidth == other.settings.regwidth && h.settings.log2m == other.settings.log2m

	if strict && !sameSettings {
		return ErrIncompatible
	}

	// other is empty...there's nothing to do.
	if other.storage == nil {
		return nil
	}

	// if this one is empty, deep copy the other's storage. Fall through to
	// the capacity check below rather than returning directly -- the clone
	// is still subject to this Hll's own promotion thresholds (e.g. a
	// smaller explicitThreshold than the source used), per spec §4.5.
	if h.storage == nil {
		if otherSparse, ok := other.storage.(sparseStorage); ok {
			if h.settings.sparseEnabled {
				h.storage = other.storage.copy()
			} else {
				// edge case: the other hll is sparse but this one does not
				// have sparse enabled.
				h.storage = sparseToFull(h.settings, otherSparse)
			}
		} else {
			h.storage = other.storage.copy()
		}
	} else {
		switch otherStorage := other.storage.(type) {
		case explicitStorage:
			// regardless of the type of the hll we're union-ing into, add
			// the other's identifiers into this one.
			h.addFromExplicit(otherStorage)
		case sparseStorage:
			switch thisStorage := h.storage.(type) {
			case explicitStorage:
				// if this is explicit, make a deep copy of the sparse
				// storage and add all the values from the explicit set. If
				// sparse is not enabled, go straight to full storage and
				// copy the sparse registers first.
				if h.settings.sparseEnabled {
					h.storage = otherStorage.copy()
				} else {
					h.storage = sparseToFull(h.settings, otherStorage)
				}
				h.addFromExplicit(thisStorage)
			case registers:
				// iterate over the sparse storage and copy over larger
				// register values.
				for k, v := range otherStorage {
					// mask the value against this Hll's register width so a
					// non-strict union between mismatched regwidths can't
					// overflow the destination register.
					v = v & byte(h.settings.valueMask)
					thisStorage.setIfGreater(h.settings, int(k), v)
				}
			}
		case fullStorage:
			switch thisStorage := h.storage.(type) {
			case explicitStorage:
				// if this hll is explicit, make a deep copy of the full
				// storage and add all the values from the explicit set.
				h.storage = otherStorage.copy()
				h.addFromExplicit(thisStorage)
			case sparseStorage:
				// if this hll is sparse, upgrade it to full and then do a
				// full union.
				h.upgrade()
				fullUnion(h.storage.(fullStorage), otherStorage, h.settings, other.settings)
			case fullStorage:
				fullUnion(thisStorage, otherStorage, h.settings, other.settings)
			}
		}
	}

	if h.storage.overCapacity(h.settings) {
		h.upgrade()
	}

	return nil
}

// ToBytes returns a byte slice with the serialized Hll value per the storage
// spec's schema version 1 header format.
func (h *Hll) ToBytes() []byte {

	h.initOrPanic()

	var storageType storageType

	switch h.storage.(type) {
	case explicitStorage:
		storageType = explicit
	case sparseStorage:
		storageType = sparse
	case fullStorage:
		storageType = full
	case nil:
		storageType = empty
	}

	bytesNeeded := 0
	if h.storage != nil {
		bytesNeeded = h.storage.sizeInBytes(h.settings)
	}

	data := make([]byte, 3 /*header bytes*/ +bytesNeeded)

	data[0] = (1 << 4) | byte(storageType)
	data[1] = byte(((h.settings.regwidth - 1) << 5) | h.settings.log2m)
	data[2] = packCutoffByte(h.settings)

	if h.storage != nil {
		h.storage.writeBytes(h.settings, data[3:])
	}

	return data
}

// Clear resets this Hll. Unlike some other implementations that leave the
// backing storage allocated in place, this resets the Hll all the way back
// to the empty, zero value.
func (h *Hll) Clear() {
	h.initOrPanic()
	h.storage = nil
}

// initOrPanic lazily initializes a zero value to an empty Hll (given default
// settings have been installed), or panics if there are no defaults to fall
// back on.
func (h *Hll) initOrPanic() {

	if h.settings != nil {
		return
	}

	defaults := getDefaults()
	if defaults == nil {
		panic("attempted operation on empty Hll without default settings")
	}

	h.settings = defaults
}

// upgrade bumps the storage to the next tier per the promotion hierarchy
// (Explicit -> Sparse|Full, Sparse -> Full), depending on the configured
// settings. It's assumed the caller has already verified the current storage
// is over capacity.
func (h *Hll) upgrade() {

	switch s := h.storage.(type) {
	case explicitStorage:
		if h.settings.sparseEnabled {
			h.storage = make(sparseStorage)
		} else {
			h.storage = newFullStorage(h.settings)
		}

		for value := range s {
			h.AddRaw(value)
		}
	case sparseStorage:
		fs := newFullStorage(h.settings)
		h.storage = fs
		for regnum, value := range s {
			fs.setIfGreater(h.settings, int(regnum), value)
		}
	}
}

// addFromExplicit loops over every value in explicit and adds it to this
// Hll.
func (h *Hll) addFromExplicit(explicit explicitStorage) {
	for k := range explicit {
		h.AddRaw(k)
	}
}

// sparseToFull converts the provided sparse storage to full.
func sparseToFull(settings *settings, sparse sparseStorage) fullStorage {
	full := newFullStorage(settings)
	for k, v := range sparse {
		full.setIfGreater(settings, int(k), v)
	}
	return full
}

// fullUnion unions two full storage instances. If the two settings have
// the same regwidth and log2m, fullStorage.union merges them register by
// register. Otherwise each of this Hll's registers is compared with the
// other's register of the same index, masked to this Hll's register width,
// taking the larger of each pair.
func fullUnion(thisStorage, otherStorage fullStorage, thisSettings, otherSettings *settings) {
	if thisSettings.log2m == otherSettings.log2m && thisSettings.regwidth == otherSettings.regwidth {
		thisStorage.union(thisSettings, otherStorage)
	} else {
		for i := 0; i < 1<<uint(thisSettings.log2m); i++ {
			regVal := otherStorage.get(i) & byte(thisSettings.valueMask)
			thisStorage.setIfGreater(thisSettings, i, regVal)
		}
	}
}

// packCutoffByte serializes the byte that carries the sparse-enabled flag
// and explicit threshold exponent.
func packCutoffByte(settings *settings) byte {

	var threshold byte
	if settings.explicitAuto {
		threshold = 63
	} else if settings.explicitThreshold == 0 {
		threshold = 0
	} else {
		// pack as an exponent of 2, n, such that the decoded threshold is
		// 1 << (n-1) -- see unpackCutoffByte. This is a destructive
		// transformation if the threshold is not a power of 2, rounding
		// down in that case.
		threshold = byte(bits.Len32(uint32(settings.explicitThreshold)))
	}

	cutoff := threshold
	if settings.sparseEnabled {
		cutoff |= 1 << 6
	}

	return cutoff
}

// unpackCutoffByte deserializes the byte that carries the sparse-enabled
// flag and explicit threshold exponent.
func unpackCutoffByte(b byte) (bool, int) {

	sparseEnabled := b>>6 == 1
	expThreshold := b & 0x3f

	if expThreshold == 0 {
		return sparseEnabled, 0
	}

	if expThreshold == 63 {
		return sparseEnabled, -1
	}

	return sparseEnabled, 1 << (expThreshold - 1)
}
