package ttl

import (
	"testing"
	"time"

	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/quality"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(config.Default().TTL, opts...)
	require.NoError(t, err)
	return m
}

func TestComputeTTL_ReactReferenceScenario(t *testing.T) {
	m := newTestManager(t)

	got := m.ComputeTTL("react", core.DocumentTypeReference, core.ContentSignals{Stable: true}, core.VersionSignal{Version: "latest"})
	want := 175.5 * float64(time.Hour)
	assert.InDelta(t, want, float64(got), float64(time.Second))
}

func TestComputeTTL_ClampedToMax(t *testing.T) {
	cfg := config.Default().TTL
	cfg.Max = 100 * time.Hour
	m, err := NewManager(cfg)
	require.NoError(t, err)

	got := m.ComputeTTL("react", core.DocumentTypeReference, core.ContentSignals{Stable: true}, core.VersionSignal{Version: "latest"})
	assert.Equal(t, 100*time.Hour, got)
}

func TestComputeTTL_Factors(t *testing.T) {
	m := newTestManager(t)
	base := 24 * time.Hour

	tests := []struct {
		name    string
		tech    string
		docType core.DocumentType
		signals core.ContentSignals
		version string
		want    time.Duration
	}{
		{"unknown everything", "cobol", "", core.ContentSignals{}, "", base},
		{"api docs", "", core.DocumentTypeAPI, core.ContentSignals{}, "", 2 * base},
		{"blog", "", core.DocumentTypeBlog, core.ContentSignals{}, "", base / 2},
		{"deprecated", "", "", core.ContentSignals{Deprecated: true}, "", base / 2},
		{"experimental", "", "", core.ContentSignals{Experimental: true}, "", time.Duration(0.7 * float64(base))},
		{"alpha", "", "", core.ContentSignals{}, "3.0.0-alpha.2", time.Duration(0.6 * float64(base))},
		{"beta", "", "", core.ContentSignals{}, "2.0.0-beta.1", time.Duration(0.7 * float64(base))},
		{"rc", "", "", core.ContentSignals{}, "v1.5.0rc1", time.Duration(0.8 * float64(base))},
		{"pre-release beats latest", "", "", core.ContentSignals{}, "latest-beta", time.Duration(0.7 * float64(base))},
		{"plain release", "", "", core.ContentSignals{}, "1.2.3", base},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.ComputeTTL(tt.tech, tt.docType, tt.signals, core.VersionSignal{Version: tt.version})
			assert.InDelta(t, float64(tt.want), float64(got), float64(time.Millisecond))
		})
	}
}

func TestComputeTTL_AlwaysInRange(t *testing.T) {
	cfg := config.Default().TTL
	m, err := NewManager(cfg)
	require.NoError(t, err)

	techs := []string{"", "react", "python", "unknown"}
	docTypes := []core.DocumentType{"", core.DocumentTypeReference, core.DocumentTypeBlog, core.DocumentTypeAPI}
	versions := []string{"", "latest", "1.0.0-alpha", "2.0.0-rc.1"}

	for _, tech := range techs {
		for _, dt := range docTypes {
			for _, v := range versions {
				for mask := range 8 {
					signals := core.ContentSignals{Stable: mask&1 != 0, Deprecated: mask&2 != 0, Experimental: mask&4 != 0}
					got := m.ComputeTTL(tech, dt, signals, core.VersionSignal{Version: v})
					assert.GreaterOrEqual(t, got, cfg.Min)
					assert.LessOrEqual(t, got, cfg.Max)
				}
			}
		}
	}

	tight := cfg
	tight.Min, tight.Max = 30*time.Hour, 31*time.Hour
	mt, err := NewManager(tight)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Hour, mt.ComputeTTL("", core.DocumentTypeBlog, core.ContentSignals{Deprecated: true}, core.VersionSignal{}))
}

func TestDetectSignals(t *testing.T) {
	tests := []struct {
		text string
		want core.ContentSignals
	}{
		{"This API is stable and production ready.", core.ContentSignals{Stable: true}},
		{"Warning: this function is DEPRECATED.", core.ContentSignals{Deprecated: true}},
		{"An unstable, experimental feature.", core.ContentSignals{Experimental: true}},
		{"Legacy LTS release", core.ContentSignals{Stable: true, Deprecated: true}},
		{"Nothing notable here.", core.ContentSignals{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectSignals(tt.text))
		})
	}
}

func TestParseVersion(t *testing.T) {
	mods := config.Default().TTL.PreReleaseModifiers

	assert.Equal(t, VersionInfo{Latest: true}, ParseVersion("latest", mods))
	assert.Equal(t, VersionInfo{PreRelease: "beta"}, ParseVersion("2.0.0-BETA.1", mods))
	assert.Equal(t, VersionInfo{PreRelease: "alpha"}, ParseVersion("1.0-beta-alpha", mods), "worst marker wins")
	assert.Equal(t, VersionInfo{}, ParseVersion("v1.2.3", mods))
}

func TestAssign(t *testing.T) {
	m := newTestManager(t)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	content := &core.CanonicalContent{
		ContentID:      "c1",
		Title:          "useEffect",
		Body:           "# useEffect\n\nStable hook API.",
		SourceProvider: "web",
		Technology:     "react",
		DocumentType:   core.DocumentTypeReference,
		Version:        "latest",
		Partition:      "react-docs",
	}
	rec, lifetime := m.Assign(content, 0.8)

	assert.InDelta(t, float64(175.5*float64(time.Hour)), float64(lifetime), float64(time.Second))
	assert.Equal(t, quality.Fingerprint(content.Body), rec.Hash)
	assert.Equal(t, core.StatusPending, rec.Status)
	assert.Equal(t, 0.8, rec.QualityScore)
	assert.Equal(t, 1.0, rec.FreshnessScore)
	assert.Equal(t, fixed, rec.CreatedAt)
	assert.Equal(t, fixed.Add(lifetime), rec.ExpiresAt)
	require.NoError(t, core.ValidateContentRecord(rec))
}

func TestFreshness(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rec := &core.ContentRecord{CreatedAt: created, ExpiresAt: created.Add(10 * time.Hour)}

	assert.Equal(t, 1.0, Freshness(rec, created))
	assert.Equal(t, 1.0, Freshness(rec, created.Add(-time.Hour)))
	assert.InDelta(t, 0.75, Freshness(rec, created.Add(150*time.Minute)), 1e-9)
	assert.Equal(t, 0.0, Freshness(rec, created.Add(10*time.Hour)))
	assert.Equal(t, 0.0, Freshness(&core.ContentRecord{CreatedAt: created, ExpiresAt: created}, created))
}
