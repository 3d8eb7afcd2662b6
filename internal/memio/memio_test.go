package memio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tetratelabs/wazero/experimental/wazerotest"
)

func TestReadString_Success(t *testing.T) {
	mem := wazerotest.NewMemory(64)
	mem.WriteString(0, "hello")
	mod := wazerotest.NewModule(mem)

	s, ok := ReadString(mod, 0, 5)
	assert.True(t, ok)
	assert.Equal(t, "hello", s)
}

func TestReadString_ZeroLength(t *testing.T) {
	mem := wazerotest.NewMemory(64)
	mod := wazerotest.NewModule(mem)

	s, ok := ReadString(mod, 0, 0)
	assert.True(t, ok)
	assert.Equal(t, "", s)
}

func TestReadString_NoMemory(t *testing.T) {
	mod := wazerotest.NewModule(nil)

	_, ok := ReadString(mod, 0, 5)
	assert.False(t, ok)
}

func TestReadString_OutOfBounds(t *testing.T) {
	mem := wazerotest.NewMemory(64)
	mod := wazerotest.NewModule(mem)

	_, ok := ReadString(mod, mem.Size()-4, 100)
	assert.False(t, ok)
}

func TestReadString_InvalidUTF8(t *testing.T) {
	mem := wazerotest.NewMemory(64)
	mem.Write(0, []byte{0xff, 0xfe, 0xfd})
	mod := wazerotest.NewModule(mem)

	_, ok := ReadString(mod, 0, 3)
	assert.False(t, ok)
}
