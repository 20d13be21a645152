// Package hashid implements identifier arithmetic for the ring: 160-bit
// SHA-1 identifiers and the interval predicates Chord routing is built on.
package hashid

import (
	"crypto/sha1"
	"fmt"
	"math/big"
)

// M is the size of the identifier space in bits (2^160).
const M = 160

var (
	ringSize = new(big.Int).Exp(big.NewInt(2), big.NewInt(M), nil)
	zero     = big.NewInt(0)
	one      = big.NewInt(1)
)

// Hash maps arbitrary data onto the ring via SHA-1, which natively produces
// 20 bytes (160 bits) and needs no truncation.
func Hash(data []byte) *big.Int {
	sum := sha1.Sum(data)
	return new(big.Int).SetBytes(sum[:])
}

// HashString hashes a string to a ring identifier.
func HashString(s string) *big.Int {
	return Hash([]byte(s))
}

// HashAddress hashes a node's network address to its ring identifier.
func HashAddress(host string, port int) *big.Int {
	return HashString(fmt.Sprintf("%s:%d", host, port))
}

// InRange reports whether id falls in (start, end], wrapping around the
// ring when start > end. start == end means the whole ring but start.
func InRange(id, start, end *big.Int) bool {
	if id == nil || start == nil || end == nil {
		return false
	}
	id, start, end = mod(id), mod(start), mod(end)

	switch start.Cmp(end) {
	case -1:
		return id.Cmp(start) > 0 && id.Cmp(end) <= 0
	case 1:
		return id.Cmp(start) > 0 || id.Cmp(end) <= 0
	default:
		return id.Cmp(start) != 0
	}
}

// Between reports whether id falls in (start, end), exclusive on both ends,
// wrapping around the ring when start > end.
func Between(id, start, end *big.Int) bool {
	if id == nil || start == nil || end == nil {
		return false
	}
	id, start, end = mod(id), mod(start), mod(end)

	switch start.Cmp(end) {
	case -1:
		return id.Cmp(start) > 0 && id.Cmp(end) < 0
	case 1:
		return id.Cmp(start) > 0 || id.Cmp(end) < 0
	default:
		return id.Cmp(start) != 0
	}
}

// Distance returns the clockwise distance from start to end: (end-start) mod 2^M.
func Distance(start, end *big.Int) *big.Int {
	if start == nil || end == nil {
		return new(big.Int)
	}
	d := new(big.Int).Sub(mod(end), mod(start))
	return mod(d)
}

// PowerOfTwo returns 2^exponent.
func PowerOfTwo(exponent int) *big.Int {
	if exponent < 0 {
		return new(big.Int)
	}
	return new(big.Int).Exp(big.NewInt(2), big.NewInt(int64(exponent)), nil)
}

// AddPow2 computes (n + 2^exponent) mod 2^M, used for finger[i].start.
func AddPow2(n *big.Int, exponent int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	sum := new(big.Int).Add(mod(n), PowerOfTwo(exponent))
	return mod(sum)
}

func mod(x *big.Int) *big.Int {
	r := new(big.Int).Mod(x, ringSize)
	if r.Sign() < 0 {
		r.Add(r, ringSize)
	}
	return r
}

// RingSize returns 2^M.
func RingSize() *big.Int { return new(big.Int).Set(ringSize) }

// MaxID returns 2^M - 1, the largest valid identifier.
func MaxID() *big.Int { return new(big.Int).Sub(ringSize, one) }

// IsValidID reports whether id lies in [0, 2^M).
func IsValidID(id *big.Int) bool {
	if id == nil {
		return false
	}
	return id.Cmp(zero) >= 0 && id.Cmp(ringSize) < 0
}
