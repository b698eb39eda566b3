package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Contains(t, String(), "anistrm v"+Version)
	assert.NotContains(t, String(), "()")

	Commit = "abc123"
	t.Cleanup(func() { Commit = "" })
	assert.Contains(t, String(), "(abc123)")
}
