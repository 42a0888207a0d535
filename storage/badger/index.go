package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/quality"
	"github.com/poiesic/doccache/storage"
)

const snippetLength = 240

// IndexStore is a keyword-scored storage.IndexStore on badger.
//
// Each partition keeps three key families: the documents themselves, an
// expiry index ordered by expiry timestamp, and a content hash index so a
// re-upload of identical content replaces the earlier copy.
type IndexStore struct {
	backend *Backend
	now     func() time.Time
}

var _ storage.IndexStore = (*IndexStore)(nil)

// NewIndexStore creates a new IndexStore.
func NewIndexStore(backend *Backend) *IndexStore {
	return &IndexStore{backend: backend, now: time.Now}
}

// Close is a no-op; the backend is closed by its owner.
func (s *IndexStore) Close() error {
	return nil
}

func checkPartition(partition string) error {
	if partition == "" {
		return storage.ErrPartitionRequired
	}
	if strings.Contains(partition, keyFieldSeparator) {
		return fmt.Errorf("%w: partition %q contains %q", storage.ErrInvalidQuery, partition, keyFieldSeparator)
	}
	return nil
}

// Search scores every live document in partition against the query terms.
// Documents that match no term are omitted.
func (s *IndexStore) Search(ctx context.Context, partition string, query core.NormalizedQuery, limit int) (*core.PartialResult, error) {
	if err := checkPartition(partition); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	now := s.now()
	result := &core.PartialResult{Partition: partition}
	err := s.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeDocPrefix(partition), func(_, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := storage.UnmarshalDocument(val)
			if err != nil {
				return err
			}
			if !now.Before(doc.ExpiresAt) {
				return nil
			}
			score := documentScore(doc, query.Text)
			if score == 0 {
				return nil
			}
			result.Hits = append(result.Hits, core.SearchHit{
				ContentID:   doc.ContentID,
				Title:       doc.Title,
				Snippet:     snippet(doc.Body, query.Text),
				Score:       score,
				RawScore:    score,
				ContentHash: doc.ContentHash,
				Technology:  doc.Technology,
				Partition:   partition,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(result.Hits, func(a, b core.SearchHit) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ContentID, b.ContentID)
	})
	if len(result.Hits) > limit {
		result.Hits = result.Hits[:limit]
	}
	return result, nil
}

// documentScore weights title matches above body matches.
func documentScore(doc *storage.Document, text string) float64 {
	title := quality.KeywordScore(doc.Title, text)
	body := quality.KeywordScore(doc.Body, text)
	return 0.3*title + 0.7*body
}

// snippet returns a window of body around the first query term it contains.
func snippet(body, text string) string {
	lower := strings.ToLower(body)
	start := 0
	for _, term := range quality.Tokenize(text) {
		if i := strings.Index(lower, term); i >= 0 {
			start = max(0, i-snippetLength/4)
			break
		}
	}
	// Trim to a rune boundary
	for start > 0 && start < len(body) && !isRuneStart(body[start]) {
		start--
	}
	end := min(len(body), start+snippetLength)
	for end < len(body) && !isRuneStart(body[end]) {
		end++
	}
	return strings.TrimSpace(body[start:end])
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// Upload indexes doc in partition. CreatedAt, ExpiresAt, Partition and
// SourceProvider are set on doc.
func (s *IndexStore) Upload(ctx context.Context, partition string, doc *storage.Document, ttl time.Duration, sourceProvider string) error {
	if err := checkPartition(partition); err != nil {
		return err
	}
	if doc == nil || doc.ContentID == "" || doc.ContentHash == "" {
		return fmt.Errorf("%w: document requires content id and hash", core.ErrMalformedContent)
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: ttl must be positive", storage.ErrInvalidQuery)
	}

	return s.backend.Update(func(tx *badger.Txn) error {
		// Replace whatever currently holds this hash or this id.
		if val, err := getValue(tx, makeHashKey(partition, doc.ContentHash)); err == nil {
			if err := s.remove(tx, partition, string(val)); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return err
			}
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if err := s.remove(tx, partition, doc.ContentID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		now := s.now().UTC()
		doc.Partition = partition
		doc.SourceProvider = sourceProvider
		doc.CreatedAt = now
		doc.ExpiresAt = now.Add(ttl)

		if err := tx.Set(makeDocKey(partition, doc.ContentID), storage.MarshalDocument(doc)); err != nil {
			return err
		}
		if err := tx.Set(makeExpiryKey(partition, doc.ExpiresAt, doc.ContentID), []byte(doc.ContentID)); err != nil {
			return err
		}
		return tx.Set(makeHashKey(partition, doc.ContentHash), []byte(doc.ContentID))
	})
}

// FindExpired walks the expiry index up to now.
func (s *IndexStore) FindExpired(ctx context.Context, partition string, now time.Time, limit int) ([]*storage.Document, error) {
	if err := checkPartition(partition); err != nil {
		return nil, err
	}

	var docs []*storage.Document
	errDone := errors.New("done")
	err := s.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, makeExpiryPrefix(partition), func(key, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			expiresAt, _, ok := parseExpiryKey(partition, key)
			if !ok {
				return nil
			}
			if expiresAt.After(now) || (limit > 0 && len(docs) >= limit) {
				return errDone
			}
			raw, err := getValue(tx, makeDocKey(partition, string(val)))
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			doc, err := storage.UnmarshalDocument(raw)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	if err != nil && !errors.Is(err, errDone) {
		return nil, err
	}
	return docs, nil
}

// DeleteExpired removes a document and its index entries.
func (s *IndexStore) DeleteExpired(ctx context.Context, partition string, contentID string) error {
	if err := checkPartition(partition); err != nil {
		return err
	}
	return s.backend.Update(func(tx *badger.Txn) error {
		return s.remove(tx, partition, contentID)
	})
}

func (s *IndexStore) remove(tx *badger.Txn, partition, contentID string) error {
	key := makeDocKey(partition, contentID)
	raw, err := getValue(tx, key)
	if err != nil {
		return err
	}
	doc, err := storage.UnmarshalDocument(raw)
	if err != nil {
		return err
	}
	if err := tx.Delete(key); err != nil {
		return err
	}
	if err := tx.Delete(makeExpiryKey(partition, doc.ExpiresAt, contentID)); err != nil {
		return err
	}
	hashKey := makeHashKey(partition, doc.ContentHash)
	if owner, err := getValue(tx, hashKey); err == nil && bytes.Equal(owner, []byte(contentID)) {
		return tx.Delete(hashKey)
	}
	return nil
}

// Partitions lists every partition holding at least one document, sorted.
func (s *IndexStore) Partitions(ctx context.Context) ([]string, error) {
	var partitions []string
	err := s.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(indexDocPrefix + keyFieldSeparator)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			p, ok := partitionFromDocKey(iter.Item().Key())
			if !ok {
				continue
			}
			if n := len(partitions); n == 0 || partitions[n-1] != p {
				partitions = append(partitions, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(partitions)
	return partitions, nil
}
