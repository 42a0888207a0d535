// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"fmt"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/doccache/core"
)

// Records are encoded as a fixed field sequence of mus-go primitives.
// Timestamps are Unix microseconds; floats are their IEEE-754 bits.
// The leading version byte allows the layout to evolve.
const codecVersion uint64 = 1

type writer struct {
	buf []byte
	n   int
}

func (w *writer) str(v string) { w.n += ord.String.Marshal(v, w.buf[w.n:]) }
func (w *writer) u64(v uint64) { w.n += varint.Uint64.Marshal(v, w.buf[w.n:]) }
func (w *writer) i64(v int64)  { w.n += varint.Int64.Marshal(v, w.buf[w.n:]) }
func (w *writer) f64(v float64) {
	w.u64(math.Float64bits(v))
}
func (w *writer) time(v time.Time) { w.i64(timeMicros(v)) }

type reader struct {
	buf []byte
	n   int
	err error
}

func (r *reader) str() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.buf[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.buf[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) i64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.buf[r.n:])
	r.n += n
	r.err = err
	return v
}

func (r *reader) f64() float64 { return math.Float64frombits(r.u64()) }

func (r *reader) time() time.Time {
	us := r.i64()
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func (r *reader) done(what string) error {
	if r.err == nil && r.n != len(r.buf) {
		r.err = ErrTruncatedData
	}
	if r.err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSerializationFailed, what, r.err)
	}
	return nil
}

func (r *reader) version(what string) {
	if v := r.u64(); r.err == nil && v != codecVersion {
		r.err = fmt.Errorf("unsupported %s codec version %d", what, v)
	}
}

func timeMicros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro()
}

// MarshalCacheEntry serializes a CacheEntry to bytes.
func MarshalCacheEntry(entry *core.CacheEntry) []byte {
	value := string(entry.Value)
	size := varint.Uint64.Size(codecVersion) +
		ord.String.Size(entry.Key) +
		ord.String.Size(value) +
		varint.Int64.Size(timeMicros(entry.CreatedAt)) +
		varint.Int64.Size(timeMicros(entry.ExpiresAt)) +
		varint.Uint64.Size(entry.AccessCount)

	w := &writer{buf: make([]byte, size)}
	w.u64(codecVersion)
	w.str(entry.Key)
	w.str(value)
	w.time(entry.CreatedAt)
	w.time(entry.ExpiresAt)
	w.u64(entry.AccessCount)
	return w.buf
}

// UnmarshalCacheEntry deserializes a CacheEntry from bytes.
func UnmarshalCacheEntry(data []byte) (*core.CacheEntry, error) {
	r := &reader{buf: data}
	r.version("cache entry")
	entry := &core.CacheEntry{
		Key:   r.str(),
		Value: []byte(r.str()),
	}
	entry.CreatedAt = r.time()
	entry.ExpiresAt = r.time()
	entry.AccessCount = r.u64()
	if err := r.done("cache entry"); err != nil {
		return nil, err
	}
	return entry, nil
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *Document) []byte {
	strs := []string{
		doc.ContentID, doc.Title, doc.Body, doc.ContentHash, doc.Technology,
		string(doc.DocumentType), doc.SourceProvider, doc.Partition,
	}
	size := varint.Uint64.Size(codecVersion) +
		varint.Int64.Size(timeMicros(doc.CreatedAt)) +
		varint.Int64.Size(timeMicros(doc.ExpiresAt))
	for _, s := range strs {
		size += ord.String.Size(s)
	}

	w := &writer{buf: make([]byte, size)}
	w.u64(codecVersion)
	for _, s := range strs {
		w.str(s)
	}
	w.time(doc.CreatedAt)
	w.time(doc.ExpiresAt)
	return w.buf
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*Document, error) {
	r := &reader{buf: data}
	r.version("document")
	doc := &Document{}
	doc.ContentID = r.str()
	doc.Title = r.str()
	doc.Body = r.str()
	doc.ContentHash = r.str()
	doc.Technology = r.str()
	doc.DocumentType = core.DocumentType(r.str())
	doc.SourceProvider = r.str()
	doc.Partition = r.str()
	doc.CreatedAt = r.time()
	doc.ExpiresAt = r.time()
	if err := r.done("document"); err != nil {
		return nil, err
	}
	return doc, nil
}

// MarshalCandidate serializes a WorkspaceCandidate to bytes.
func MarshalCandidate(c *core.WorkspaceCandidate) []byte {
	size := varint.Uint64.Size(codecVersion) +
		ord.String.Size(c.ID) +
		ord.String.Size(c.Technology) +
		varint.Uint64.Size(math.Float64bits(c.RelevanceScore)) +
		varint.Int64.Size(timeMicros(c.LastUpdated))

	w := &writer{buf: make([]byte, size)}
	w.u64(codecVersion)
	w.str(c.ID)
	w.str(c.Technology)
	w.f64(c.RelevanceScore)
	w.time(c.LastUpdated)
	return w.buf
}

// UnmarshalCandidate deserializes a WorkspaceCandidate from bytes.
func UnmarshalCandidate(data []byte) (*core.WorkspaceCandidate, error) {
	r := &reader{buf: data}
	r.version("candidate")
	c := &core.WorkspaceCandidate{}
	c.ID = r.str()
	c.Technology = r.str()
	c.RelevanceScore = r.f64()
	c.LastUpdated = r.time()
	if err := r.done("candidate"); err != nil {
		return nil, err
	}
	return c, nil
}
