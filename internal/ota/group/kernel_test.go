package group

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCmdline(t *testing.T) {
	p := ParseCmdline("ghaf.revision=25.12.1 storehash=deadbeefcafebabe root=fstab")
	assert.Equal(t, "deadbeefcafebabe", p.StoreHash)
	assert.Equal(t, "25.12.1", p.Revision)
}

func TestParseCmdlineAbsentParams(t *testing.T) {
	p := ParseCmdline("root=fstab loglevel=4")
	assert.Empty(t, p.StoreHash)
	assert.Empty(t, p.Revision)
	assert.Empty(t, p.VerityHashFragment())
}

func TestVerityHashFragment(t *testing.T) {
	p := KernelParams{StoreHash: "3da5ea13e714f917cc9588038dd4ba3f"}
	assert.Equal(t, "3da5ea13e714f917", p.VerityHashFragment())

	short := KernelParams{StoreHash: "abcd"}
	assert.Equal(t, "abcd", short.VerityHashFragment())
}
