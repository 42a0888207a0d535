// Package ttl computes content lifetimes and evicts expired content.
//
// A lifetime starts from the base TTL and is scaled by the technology
// factor, the document-type factor, each detected content signal and the
// version signal. Clamping to [min, max] is always the final step.
package ttl

import (
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/quality"
	"github.com/poiesic/doccache/storage"
)

// ErrIndexStoreRequired is returned when expiry operations run without an index store.
var ErrIndexStoreRequired = errors.New("index store required")

// Manager computes TTLs and cleans up expired content.
type Manager struct {
	cfg     config.TTL
	index   storage.IndexStore
	content storage.ContentRepository
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Manager.
type Option func(*Manager) error

// WithIndexStore sets the store expiry operations act on.
func WithIndexStore(index storage.IndexStore) Option {
	return func(m *Manager) error {
		m.index = index
		return nil
	}
}

// WithContentRepository sets the repository whose records are marked expired on eviction.
func WithContentRepository(content storage.ContentRepository) Option {
	return func(m *Manager) error {
		m.content = content
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		m.logger = logger
		return nil
	}
}

// NewManager creates a Manager for the TTL configuration.
func NewManager(cfg config.TTL, opts ...Option) (*Manager, error) {
	m := &Manager{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "ttl")
	return m, nil
}

// ComputeTTL returns the lifetime of content with the given attributes.
// Unknown technologies and document types use a factor of 1.
func (m *Manager) ComputeTTL(technology string, docType core.DocumentType, signals core.ContentSignals, version core.VersionSignal) time.Duration {
	seconds := m.cfg.Base.Seconds()
	seconds *= factor(m.cfg.TechnologyFactors, technology)
	seconds *= factor(m.cfg.DocumentTypeFactors, string(docType))

	if signals.Stable {
		seconds *= 1 + m.cfg.StableModifier
	}
	if signals.Deprecated {
		seconds *= 1 + m.cfg.DeprecatedModifier
	}
	if signals.Experimental {
		seconds *= 1 + m.cfg.ExperimentalModifier
	}
	seconds *= 1 + m.versionModifier(version)

	return m.clamp(seconds)
}

func factor(table map[string]float64, key string) float64 {
	if f, ok := table[key]; ok && f > 0 {
		return f
	}
	return 1
}

// versionModifier prefers pre-release penalties over the latest bonus.
func (m *Manager) versionModifier(version core.VersionSignal) float64 {
	info := ParseVersion(version.Version, m.cfg.PreReleaseModifiers)
	switch {
	case info.PreRelease != "":
		return m.cfg.PreReleaseModifiers[info.PreRelease]
	case info.Latest:
		return m.cfg.LatestModifier
	default:
		return 0
	}
}

func (m *Manager) clamp(seconds float64) time.Duration {
	lo, hi := m.cfg.Min.Seconds(), m.cfg.Max.Seconds()
	if math.IsNaN(seconds) || seconds < lo {
		seconds = lo
	}
	if seconds > hi {
		seconds = hi
	}
	return time.Duration(seconds * float64(time.Second))
}

// DetectSignals finds maturity markers in text. Matching is by whole word,
// so "unstable" is experimental but not stable.
func DetectSignals(text string) core.ContentSignals {
	var s core.ContentSignals
	for _, run := range letterRuns(text) {
		switch {
		case stableMarkers[run]:
			s.Stable = true
		case deprecatedMarkers[run]:
			s.Deprecated = true
		case experimentalMarkers[run]:
			s.Experimental = true
		}
	}
	return s
}

// Assign derives the ContentRecord of content with its computed lifetime.
// The record starts pending and fully fresh.
func (m *Manager) Assign(content *core.CanonicalContent, qualityScore float64) (*core.ContentRecord, time.Duration) {
	signals := DetectSignals(content.Title + "\n" + content.Body)
	lifetime := m.ComputeTTL(content.Technology, content.DocumentType, signals, core.VersionSignal{Version: content.Version})
	now := m.now().UTC()

	return &core.ContentRecord{
		ContentID:      content.ContentID,
		SourceID:       content.ContentID,
		Hash:           quality.Fingerprint(content.Body),
		Title:          content.Title,
		Technology:     content.Technology,
		DocumentType:   content.DocumentType,
		Partition:      content.Partition,
		SourceProvider: content.SourceProvider,
		QualityScore:   qualityScore,
		FreshnessScore: 1,
		Status:         core.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(lifetime),
	}, lifetime
}

// Freshness is the remaining fraction of a record's lifetime at now, in [0,1].
func Freshness(record *core.ContentRecord, now time.Time) float64 {
	total := record.ExpiresAt.Sub(record.CreatedAt)
	if total <= 0 {
		return 0
	}
	remaining := record.ExpiresAt.Sub(now)
	switch {
	case remaining <= 0:
		return 0
	case remaining >= total:
		return 1
	default:
		return float64(remaining) / float64(total)
	}
}
