package random

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// Random is the source used for secret-word draws.
type Random interface {
	// Intn returns a random int in [0, n)
	Intn(n int) int
}

type CryptoRandom struct {
	src io.Reader
}

func New() *CryptoRandom {
	return &CryptoRandom{src: rand.Reader}
}

// Intn panics if the entropy source fails.
func (r *CryptoRandom) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	v, err := rand.Int(r.src, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("random: read entropy: %v", err))
	}
	return int(v.Int64())
}

// Fixed returns queued values in order, then 0. Used by tests.
type Fixed struct {
	Values []int
	i      int
}

var _ Random = (*Fixed)(nil)

func (r *Fixed) Intn(n int) int {
	if r.i >= len(r.Values) {
		return 0
	}
	v := r.Values[r.i]
	r.i++
	if n > 0 {
		v %= n
	}
	return v
}
