package badger

import (
	"encoding/binary"
	"strings"
	"time"
)

// Key prefixes
const (
	cacheEntryPrefix   = "cache"
	indexDocPrefix     = "idxdoc"
	indexExpiryPrefix  = "idxexp"
	indexHashPrefix    = "idxhash"
	workspacePrefix    = "wsp"
	keyFieldSeparator  = ":"
	expiryTimestampLen = 8
)

// makeCacheKey generates a key for a cache entry.
func makeCacheKey(key string) []byte {
	return []byte(cacheEntryPrefix + keyFieldSeparator + key)
}

// makeDocPrefix generates the prefix of every document in a partition.
// Format: prefix:partition:
func makeDocPrefix(partition string) []byte {
	return []byte(indexDocPrefix + keyFieldSeparator + partition + keyFieldSeparator)
}

// makeDocKey generates a key for a document.
// Format: prefix:partition:contentID
func makeDocKey(partition, contentID string) []byte {
	return append(makeDocPrefix(partition), contentID...)
}

// makeExpiryPrefix generates the prefix of a partition's expiry index.
func makeExpiryPrefix(partition string) []byte {
	return []byte(indexExpiryPrefix + keyFieldSeparator + partition + keyFieldSeparator)
}

// makeExpiryKey generates a composite key for the expiry index.
// Format: prefix:partition:timestamp:contentID
func makeExpiryKey(partition string, expiresAt time.Time, contentID string) []byte {
	prefix := makeExpiryPrefix(partition)
	buf := make([]byte, len(prefix)+expiryTimestampLen+len(contentID))
	offset := copy(buf, prefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(expiresAt.UnixMicro()))
	offset += expiryTimestampLen
	copy(buf[offset:], contentID)
	return buf
}

// parseExpiryKey extracts the expiry timestamp and content id from an expiry key.
func parseExpiryKey(partition string, key []byte) (time.Time, string, bool) {
	rest := key[len(makeExpiryPrefix(partition)):]
	if len(rest) < expiryTimestampLen {
		return time.Time{}, "", false
	}
	micros := int64(binary.BigEndian.Uint64(rest[:expiryTimestampLen]))
	return time.UnixMicro(micros).UTC(), string(rest[expiryTimestampLen:]), true
}

// makeHashKey generates a key for the content hash index.
// Format: prefix:partition:hash
func makeHashKey(partition, hash string) []byte {
	return []byte(indexHashPrefix + keyFieldSeparator + partition + keyFieldSeparator + hash)
}

// partitionFromDocKey extracts the partition from a document key.
func partitionFromDocKey(key []byte) (string, bool) {
	rest := strings.TrimPrefix(string(key), indexDocPrefix+keyFieldSeparator)
	partition, _, ok := strings.Cut(rest, keyFieldSeparator)
	return partition, ok && partition != ""
}

// makeWorkspaceKey generates a key for a workspace candidate.
func makeWorkspaceKey(id string) []byte {
	return []byte(workspacePrefix + keyFieldSeparator + id)
}
