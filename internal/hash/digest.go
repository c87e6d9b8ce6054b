// Package hash provides stable xxh3 digests shared by every process of a run.
package hash

import (
	"encoding/binary"
	"strconv"

	"github.com/zeebo/xxh3"
)

// fingerprintMask keeps digests exactly representable as float64 so they can
// travel through floating point reductions unchanged.
const fingerprintMask = 1<<52 - 1

// Ints hashes a sequence of integers with the given seed.
//
// The encoding is fixed-width little endian, so equal sequences hash equally on
// every process regardless of platform word size.
//
// Parameters:
//   - seed: Hash seed (0 for unseeded)
//   - values: Integers to hash, in order
//
// Returns:
//   - uint64: xxh3 digest of the encoded sequence
func Ints(seed uint64, values ...int) uint64 {
	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], uint64(v)) //nolint:gosec // two's complement encoding is intended
	}
	if seed == 0 {
		return xxh3.Hash(buf)
	}

	return xxh3.HashSeed(buf, seed)
}

// Fingerprint folds a digest into 52 bits.
func Fingerprint(digest uint64) uint64 {
	return digest & fingerprintMask
}

// GroupKey returns a compact, KV-key-safe identifier for a sorted rank set.
//
// Parameters:
//   - ranks: Sorted global ranks
//
// Returns:
//   - string: Base-36 digest prefixed with the group size, e.g. "g4-1x3k9..."
func GroupKey(ranks []int) string {
	return "g" + strconv.Itoa(len(ranks)) + "-" + strconv.FormatUint(Ints(0, ranks...), 36)
}
