package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInts(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		require.Equal(t, Ints(0, 1, 2, 3), Ints(0, 1, 2, 3))
		require.Equal(t, Ints(7, 1, 2, 3), Ints(7, 1, 2, 3))
	})

	t.Run("order and seed sensitive", func(t *testing.T) {
		require.NotEqual(t, Ints(0, 1, 2, 3), Ints(0, 3, 2, 1))
		require.NotEqual(t, Ints(0, 1, 2, 3), Ints(9, 1, 2, 3))
	})
}

func TestFingerprint(t *testing.T) {
	d := Ints(0, 4, 0, 1, 2, 4)
	fp := Fingerprint(d)
	require.LessOrEqual(t, fp, uint64(fingerprintMask))
	require.Equal(t, fp, uint64(float64(fp)), "fingerprint must survive float64 round trip")
}

func TestGroupKey(t *testing.T) {
	k1 := GroupKey([]int{0, 1, 2, 3})
	k2 := GroupKey([]int{0, 1, 2, 3})
	k3 := GroupKey([]int{0, 2})

	require.Equal(t, k1, k2)
	require.NotEqual(t, k1, k3)
	require.Regexp(t, `^g4-[0-9a-z]+$`, k1)
	require.Regexp(t, `^g2-[0-9a-z]+$`, k3)
}
