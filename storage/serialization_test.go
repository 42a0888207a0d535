package storage

import (
	"testing"
	"time"

	"github.com/poiesic/doccache/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheEntryCodec(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	tests := []struct {
		name  string
		entry *core.CacheEntry
	}{
		{
			name: "json payload",
			entry: &core.CacheEntry{
				Key:         "search:results:abc",
				Value:       []byte(`{"results":[]}`),
				CreatedAt:   now,
				ExpiresAt:   now.Add(time.Hour),
				AccessCount: 7,
			},
		},
		{
			name: "binary payload",
			entry: &core.CacheEntry{
				Key:       "content:processed:x",
				Value:     []byte{0, 1, 2, 255},
				CreatedAt: now,
				ExpiresAt: now,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := UnmarshalCacheEntry(MarshalCacheEntry(tt.entry))
			require.NoError(t, err)
			assert.Equal(t, tt.entry, decoded)
		})
	}
}

func TestDocumentCodec(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	doc := &Document{
		ContentID:      "c1",
		Title:          "Hooks",
		Body:           "# Hooks\n\nuseEffect",
		ContentHash:    "h1",
		Technology:     "react",
		DocumentType:   core.DocumentTypeReference,
		SourceProvider: "web",
		Partition:      "react-docs",
		CreatedAt:      now,
		ExpiresAt:      now.Add(24 * time.Hour),
	}

	decoded, err := UnmarshalDocument(MarshalDocument(doc))
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

func TestCandidateCodec(t *testing.T) {
	c := &core.WorkspaceCandidate{
		ID:             "python-docs",
		Technology:     "python",
		RelevanceScore: 0.875,
		LastUpdated:    time.Now().UTC().Truncate(time.Microsecond),
	}
	decoded, err := UnmarshalCandidate(MarshalCandidate(c))
	require.NoError(t, err)
	assert.Equal(t, c, decoded)

	zero := &core.WorkspaceCandidate{ID: "z"}
	decoded, err = UnmarshalCandidate(MarshalCandidate(zero))
	require.NoError(t, err)
	assert.True(t, decoded.LastUpdated.IsZero())
}

func TestUnmarshal_Invalid(t *testing.T) {
	valid := MarshalCacheEntry(&core.CacheEntry{Key: "k", Value: []byte("v")})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated", valid[:len(valid)-2]},
		{"trailing bytes", append(append([]byte{}, valid...), 0x01)},
		{"unknown version", append([]byte{0x09}, valid[1:]...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalCacheEntry(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}
