package ai

import (
	"strings"

	"github.com/poiesic/doccache/core"
)

// DocumentTypes lists the document types a strategy may assign to a target.
var DocumentTypes = []core.DocumentType{
	core.DocumentTypeReference,
	core.DocumentTypeAPI,
	core.DocumentTypeGuide,
	core.DocumentTypeTutorial,
	core.DocumentTypeBlog,
	core.DocumentTypeOther,
}

// SourceKinds lists the acquisition sources a strategy may target.
var SourceKinds = []core.SourceKind{core.SourceCodeHost, core.SourceWeb}

// Finalize clamps the verdict's scores to [0,1] and decides enrichment
// against threshold. The evaluator reports scores; the engine owns the decision.
func Finalize(v *core.EvaluationVerdict, threshold float64) *core.EvaluationVerdict {
	v.Sufficiency = clamp01(v.Sufficiency)
	v.Confidence = clamp01(v.Confidence)
	v.NeedsEnrichment = v.Sufficiency < threshold
	return v
}

// ValidTarget reports whether a proposed target can be acquired.
func ValidTarget(t core.AcquisitionTarget) bool {
	if strings.TrimSpace(t.Location) == "" {
		return false
	}
	switch t.Kind {
	case core.SourceWeb:
		return strings.HasPrefix(t.Location, "https://") || strings.HasPrefix(t.Location, "http://")
	case core.SourceCodeHost:
		// owner/repo/path[@ref]
		path, _, _ := strings.Cut(t.Location, "@")
		return strings.Count(path, "/") >= 2
	default:
		return false
	}
}

// NormalizeDocumentType maps unknown document types to other.
func NormalizeDocumentType(dt core.DocumentType) core.DocumentType {
	dt = core.DocumentType(strings.ToLower(strings.TrimSpace(string(dt))))
	for _, known := range DocumentTypes {
		if dt == known {
			return dt
		}
	}
	return core.DocumentTypeOther
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
