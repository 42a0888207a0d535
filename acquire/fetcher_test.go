package acquire

import (
	"errors"
	"testing"

	"github.com/poiesic/doccache/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("python/cpython/Doc/library/asyncio.rst@3.12")
	require.NoError(t, err)
	assert.Equal(t, Location{Owner: "python", Repo: "cpython", Path: "Doc/library/asyncio.rst", Ref: "3.12"}, loc)
	assert.Equal(t, "python/cpython/Doc/library/asyncio.rst@3.12", loc.String())

	loc, err = ParseLocation("/golang/go/README.md/")
	require.NoError(t, err)
	assert.Equal(t, "README.md", loc.Path)
	assert.Empty(t, loc.Ref)

	for _, bad := range []string{"", "golang", "golang/go", "golang//README.md"} {
		_, err := ParseLocation(bad)
		assert.ErrorIs(t, err, ErrUnsupportedTarget, bad)
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		code      int
		notFound  bool
		transient bool
	}{
		{404, true, false},
		{410, true, false},
		{403, true, false},
		{429, false, true},
		{503, false, true},
		{408, false, true},
		{400, false, false},
	}
	for _, tt := range tests {
		err := error(&StatusError{URL: "https://example.com", Code: tt.code})
		assert.Equal(t, tt.notFound, errors.Is(err, core.ErrSourceNotFound), tt.code)
		assert.Equal(t, tt.transient, errors.Is(err, core.ErrTransient), tt.code)
	}
	assert.NoError(t, checkStatus("u", 204))
	assert.Equal(t, core.ClassPermanent, core.Classify(checkStatus("u", 404)))
	assert.Equal(t, core.ClassTransient, core.Classify(checkStatus("u", 502)))
}

func TestRawContentSource(t *testing.T) {
	assert.Equal(t, core.SourceCodeHost, (&CodeHostContent{}).Source())
	assert.Equal(t, core.SourceWeb, (&ScrapedContent{}).Source())
	assert.Equal(t, core.SourceManual, (&ManualContent{}).Source())
}
