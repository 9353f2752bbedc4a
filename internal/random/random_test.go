package random

import (
	"errors"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
)

func TestCryptoRandom_Range(t *testing.T) {
	r := New()
	for i := 0; i < 200; i++ {
		v := r.Intn(3)
		assert.True(t, v >= 0 && v < 3, "got %d", v)
	}
	assert.Equal(t, 0, r.Intn(0))
}

func TestCryptoRandom_PanicsOnSourceFailure(t *testing.T) {
	r := &CryptoRandom{src: iotest.ErrReader(errors.New("entropy exhausted"))}
	assert.Panics(t, func() { r.Intn(10) })
}

func TestFixed(t *testing.T) {
	r := &Fixed{Values: []int{1, 7}}
	assert.Equal(t, 1, r.Intn(5))
	assert.Equal(t, 2, r.Intn(5))
	assert.Equal(t, 0, r.Intn(5))
}
