package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	in := "  \r\n# Title  \r\n\r\n\r\n\r\nBody line\t\r\nnext\r"
	assert.Equal(t, "# Title\n\nBody line\nnext", Normalize(in))
}

func TestFingerprint(t *testing.T) {
	t.Run("ignores incidental whitespace", func(t *testing.T) {
		a := Fingerprint("# Hooks\n\nuseEffect runs after render.\n")
		b := Fingerprint("\r\n# Hooks   \r\n\r\n\r\nuseEffect runs after render.\r\n\r\n")
		assert.Equal(t, a, b)
	})

	t.Run("case is significant", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint("Hooks"), Fingerprint("hooks"))
	})

	t.Run("content change is significant", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint("v1.0 released"), Fingerprint("v1.1 released"))
	})

	t.Run("inner spacing is significant", func(t *testing.T) {
		assert.NotEqual(t, Fingerprint("a b"), Fingerprint("a  b"))
	})
}
