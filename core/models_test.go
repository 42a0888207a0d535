package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIDFromContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "same content produces same ID", content: "test content"},
		{name: "empty string", content: ""},
		{name: "long content", content: "This is a much longer piece of content that should still hash consistently"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, IDFromContent(tt.content), IDFromContent(tt.content))
		})
	}
}

func TestIDFromContent_Different(t *testing.T) {
	assert.NotEqual(t, IDFromContent("content1"), IDFromContent("content2"))
}

func TestHashHex(t *testing.T) {
	h := HashHex("hello")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashHex("hello"))
	assert.NotEqual(t, h, HashHex("Hello"))
}

func TestCacheEntry_TTLAndExpired(t *testing.T) {
	now := time.Now()
	entry := &CacheEntry{
		Key:       "k",
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}

	assert.Equal(t, time.Minute, entry.TTL())
	assert.False(t, entry.Expired(now))
	assert.True(t, entry.Expired(now.Add(time.Minute)))
	assert.True(t, entry.Expired(now.Add(2*time.Minute)))
}
