package chain

import "math/big"

// Reel slice bit offsets within the seed. Each reel reads 16 bits.
var reelOffsets = [4]uint{0, 16, 32, 48}

// Draw37 maps a seed onto a roulette number in [0,36].
func Draw37(seed Hash) int {
	n := new(big.Int).SetBytes(seed[:])
	return int(new(big.Int).Mod(n, big.NewInt(37)).Int64())
}

// ReelPositions derives four independent 16-bit reel values from slices of
// the seed, least significant bits first.
func ReelPositions(seed Hash) [4]uint16 {
	n := new(big.Int).SetBytes(seed[:])
	var out [4]uint16
	mask := big.NewInt(0xffff)
	for i, off := range reelOffsets {
		v := new(big.Int).Rsh(n, off)
		out[i] = uint16(v.And(v, mask).Uint64())
	}
	return out
}
