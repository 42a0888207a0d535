package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/core"
)

// Saturation points of the individual heuristics.
const (
	fullWordCount    = 300
	fullHeadingCount = 5
	minCodeRatio     = 0.1
	maxCodeRatio     = 0.6
	minLinkDensity   = 0.5 // links per 100 words
	maxLinkDensity   = 5.0
)

var (
	headingPattern = regexp.MustCompile(`^#{1,6}\s+\S`)
	linkPattern    = regexp.MustCompile(`\]\([^)]+\)|https?://\S+`)
)

// Metrics are the raw counts the score is computed from.
type Metrics struct {
	Words      int
	Headings   int
	CodeBlocks int
	CodeLines  int
	ProseLines int
	Links      int
}

// Analyze counts the markdown features of text.
func Analyze(text string) Metrics {
	var m Metrics
	inFence := false
	for _, line := range strings.Split(Normalize(text), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			if !inFence {
				m.CodeBlocks++
			}
			inFence = !inFence
			continue
		}
		if inFence {
			m.CodeLines++
			continue
		}
		if trimmed == "" {
			continue
		}
		m.ProseLines++
		if headingPattern.MatchString(trimmed) {
			m.Headings++
		}
		m.Links += len(linkPattern.FindAllString(trimmed, -1))
		m.Words += len(strings.Fields(trimmed))
	}
	return m
}

// Scorer rates content quality against a threshold.
type Scorer struct {
	threshold float64
	weights   config.Weights
}

// NewScorer creates a scorer from the quality configuration.
func NewScorer(cfg config.Quality) *Scorer {
	return &Scorer{threshold: cfg.Threshold, weights: cfg.Weights}
}

// Threshold returns the minimum acceptable score.
func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// Score rates text in [0,1].
func (s *Scorer) Score(text string) float64 {
	return s.ScoreMetrics(Analyze(text))
}

// ScoreMetrics rates precomputed metrics in [0,1].
func (s *Scorer) ScoreMetrics(m Metrics) float64 {
	w := s.weights
	total := w.Words + w.Headings + w.Code + w.CodeRatio + w.Links
	if total <= 0 {
		return 0
	}

	code := 0.0
	if m.CodeBlocks > 0 {
		code = 1
	}

	sum := w.Words*saturate(float64(m.Words), fullWordCount) +
		w.Headings*saturate(float64(m.Headings), fullHeadingCount) +
		w.Code*code +
		w.CodeRatio*codeRatioScore(m) +
		w.Links*linkDensityScore(m)

	return clamp01(sum / total)
}

// Check returns a *core.BelowThresholdError when score is under the threshold.
func (s *Scorer) Check(score float64) error {
	if score < s.threshold {
		return &core.BelowThresholdError{Score: score, Threshold: s.threshold}
	}
	return nil
}

// Assess scores text and applies the threshold. The score is returned even
// when the content is rejected.
func (s *Scorer) Assess(text string) (float64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("%w: empty body", core.ErrMalformedContent)
	}
	score := s.Score(text)
	return score, s.Check(score)
}

func saturate(v, full float64) float64 {
	return clamp01(v / full)
}

// codeRatioScore peaks inside [minCodeRatio, maxCodeRatio] and falls off linearly outside.
func codeRatioScore(m Metrics) float64 {
	lines := m.CodeLines + m.ProseLines
	if lines == 0 {
		return 0
	}
	ratio := float64(m.CodeLines) / float64(lines)
	switch {
	case ratio < minCodeRatio:
		return ratio / minCodeRatio
	case ratio > maxCodeRatio:
		return (1 - ratio) / (1 - maxCodeRatio)
	default:
		return 1
	}
}

func linkDensityScore(m Metrics) float64 {
	if m.Words == 0 {
		return 0
	}
	density := float64(m.Links) * 100 / float64(m.Words)
	switch {
	case density < minLinkDensity:
		return density / minLinkDensity
	case density > maxLinkDensity:
		return clamp01(1 - (density-maxLinkDensity)/(2*maxLinkDensity))
	default:
		return 1
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
