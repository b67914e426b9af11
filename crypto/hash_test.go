package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHash(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", Hash(nil))
	assert.Len(t, Hash([]byte("x")), 64)
}

func TestBlake2_128Concat(t *testing.T) {
	a := Blake2_128Concat([]byte("alice"))
	assert.Len(t, a, Blake2_128Size+len("alice"))
	assert.True(t, bytes.HasSuffix(a, []byte("alice")))
	assert.Equal(t, a, Blake2_128Concat([]byte("alice")))
	assert.NotEqual(t, a[:Blake2_128Size], Blake2_128Concat([]byte("bob"))[:Blake2_128Size])
}
