package core

import (
	"encoding/binary"
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a compact identifier derived from content.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// HashHex returns the hex encoded 256-bit BLAKE2b digest of text.
func HashHex(text string) string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizedQuery is the canonical form of a user query.
// It is created once per request and never mutated.
type NormalizedQuery struct {
	Raw        string // Text as received from the caller
	Text       string // Canonicalized text used for search and hashing
	Hash       string // Stable hash of Text and Technology
	Technology string // Optional technology hint, lowercased
}

// WorkspaceCandidate is a content partition eligible for search.
type WorkspaceCandidate struct {
	ID             string
	Technology     string
	RelevanceScore float64
	LastUpdated    time.Time
}

// SearchHit is a single search result from one partition.
type SearchHit struct {
	ContentID   string  `json:"content_id"`
	Title       string  `json:"title"`
	Snippet     string  `json:"snippet"`
	Score       float64 `json:"score"`     // Ranking score; boosted once aggregated
	RawScore    float64 `json:"raw_score"` // Score as reported by the partition
	ContentHash string  `json:"content_hash"`
	Technology  string  `json:"technology,omitempty"`
	Partition   string  `json:"partition"`
}

// PartialResult holds one partition's raw search hits.
type PartialResult struct {
	Partition string
	Hits      []SearchHit
}

// AggregatedResult is the deduplicated, ranked result set for a query.
type AggregatedResult struct {
	Results          []SearchHit   `json:"results"`
	TotalConsidered  int           `json:"total_considered"`
	ExecutionTime    time.Duration `json:"execution_time"`
	Partitions       []string      `json:"partitions,omitempty"`        // Partitions that answered
	FailedPartitions []string      `json:"failed_partitions,omitempty"` // Partitions that errored or timed out
	Partial          bool          `json:"partial"`
	NoSources        bool          `json:"no_sources"`
}

// EvaluationVerdict is the output of the evaluation gate.
type EvaluationVerdict struct {
	Sufficiency     float64  `json:"sufficiency"`
	Confidence      float64  `json:"confidence"`
	MissingAspects  []string `json:"missing_aspects,omitempty"`
	NeedsEnrichment bool     `json:"needs_enrichment"`
	Rationale       string   `json:"rationale,omitempty"`
}

// SourceKind identifies an acquisition collaborator.
type SourceKind string

const (
	// SourceCodeHost is a code-hosting API (repository files).
	SourceCodeHost SourceKind = "code-host"
	// SourceWeb is a scraped web page.
	SourceWeb SourceKind = "web"
	// SourceManual is content pushed directly by an operator.
	SourceManual SourceKind = "manual"
)

// AcquisitionTarget is one item an enrichment strategy wants fetched.
type AcquisitionTarget struct {
	Kind         SourceKind   `json:"kind" yaml:"kind"`
	Location     string       `json:"location" yaml:"location"` // "owner/repo/path[@ref]" for code hosts, URL for web
	Technology   string       `json:"technology,omitempty" yaml:"technology,omitempty"`
	DocumentType DocumentType `json:"document_type,omitempty" yaml:"document_type,omitempty"`
	Version      string       `json:"version,omitempty" yaml:"version,omitempty"`
	Partition    string       `json:"partition,omitempty" yaml:"partition,omitempty"`
}

// EnrichmentStrategy describes what to acquire for an under-covered query.
type EnrichmentStrategy struct {
	QueryHash  string              `json:"query_hash"`
	Query      string              `json:"query"`
	Technology string              `json:"technology,omitempty"`
	Targets    []AcquisitionTarget `json:"targets"`
	Reason     string              `json:"reason,omitempty"`
}

// DocumentType classifies documentation for TTL purposes.
type DocumentType string

const (
	DocumentTypeReference DocumentType = "reference"
	DocumentTypeAPI       DocumentType = "api"
	DocumentTypeGuide     DocumentType = "guide"
	DocumentTypeTutorial  DocumentType = "tutorial"
	DocumentTypeBlog      DocumentType = "blog"
	DocumentTypeOther     DocumentType = "other"
)

// ContentSignals are maturity markers found in a document.
type ContentSignals struct {
	Stable       bool
	Deprecated   bool
	Experimental bool
}

// VersionSignal carries the version a document describes, e.g. "latest" or "2.0.0-beta.1".
type VersionSignal struct {
	Version string
}

// CanonicalContent is the single normalized representation every source is converted to.
type CanonicalContent struct {
	ContentID      string       `json:"content_id"`
	Title          string       `json:"title"`
	Body           string       `json:"body"`
	SourceURL      string       `json:"source_url,omitempty"`
	SourceProvider string       `json:"source_provider"`
	Technology     string       `json:"technology,omitempty"`
	DocumentType   DocumentType `json:"document_type,omitempty"`
	Version        string       `json:"version,omitempty"`
	Partition      string       `json:"partition,omitempty"`
}

// ProcessingStatus tracks a ContentRecord through ingestion and expiry.
type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusProcessed ProcessingStatus = "processed"
	StatusRejected  ProcessingStatus = "rejected"
	StatusFailed    ProcessingStatus = "failed"
	StatusExpired   ProcessingStatus = "expired"
)

// ContentRecord is a unit of indexed content. Hash is unique across records.
// Revisions of one source location share SourceID; at most one of them is processed.
type ContentRecord struct {
	ContentID      string
	SourceID       string
	Hash           string
	Title          string
	Technology     string
	DocumentType   DocumentType
	Partition      string
	SourceProvider string
	QualityScore   float64
	FreshnessScore float64
	Status         ProcessingStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      time.Time
}

// CacheEntry is a stored, TTL-bound payload.
type CacheEntry struct {
	Key         string
	Value       []byte
	CreatedAt   time.Time
	ExpiresAt   time.Time
	AccessCount uint64
}

// TTL returns the lifetime the entry was created with.
func (e *CacheEntry) TTL() time.Duration {
	return e.ExpiresAt.Sub(e.CreatedAt)
}

// Expired reports whether the entry is past its expiry at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
