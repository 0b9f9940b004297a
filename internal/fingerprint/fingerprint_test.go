package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualIgnoresMarker(t *testing.T) {
	a := "<!--VERSION:1.0.0 LAST_MODIFIED:2025-01-01T00:00:00Z-->\nHello"
	b := "<!--VERSION:1.0.1 LAST_MODIFIED:2025-02-02T00:00:00Z-->\nHello"

	assert.True(t, Equal(a, b))
	assert.True(t, Equal(a, "Hello"))
}

func TestEqualIgnoresSurroundingWhitespace(t *testing.T) {
	assert.True(t, Equal("Hello\n", "\nHello"))
	assert.True(t, Equal("  Hello  ", "Hello"))
}

func TestEqualDetectsContentChange(t *testing.T) {
	a := "<!--VERSION:1.0.0 LAST_MODIFIED:2025-01-01T00:00:00Z-->\nHello"
	b := "<!--VERSION:1.0.0 LAST_MODIFIED:2025-01-01T00:00:00Z-->\nHello world"

	assert.False(t, Equal(a, b))
}

func TestSumDeterministic(t *testing.T) {
	text := "# Guide\n\nsome body text\n"

	assert.Equal(t, Sum(text), Sum(text))
	assert.Len(t, Sum(text), 64)
}

func TestSumEmptyVariantsCollapse(t *testing.T) {
	// Marker-only and empty documents share a digest: both have no content.
	assert.Equal(t, Sum(""), Sum("<!--VERSION:1.0.0 LAST_MODIFIED:-->"))
}
