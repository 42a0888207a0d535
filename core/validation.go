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


package core

import (
	"fmt"
	"math"
	"strings"
)

// ValidateCandidate validates a WorkspaceCandidate.
//
// Validation rules:
//   - ID must not be empty
//   - RelevanceScore must be a finite number
func ValidateCandidate(candidate *WorkspaceCandidate) error {
	if candidate == nil {
		return fmt.Errorf("%w: candidate is nil", ErrInvalidCandidate)
	}
	if strings.TrimSpace(candidate.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidCandidate)
	}
	if math.IsNaN(candidate.RelevanceScore) || math.IsInf(candidate.RelevanceScore, 0) {
		return fmt.Errorf("%w: relevance score must be finite", ErrInvalidCandidate)
	}
	return nil
}

// ValidateContentRecord validates a ContentRecord before it is persisted.
//
// Validation rules:
//   - ContentID and Hash must not be empty
//   - ExpiresAt must not precede CreatedAt
//   - QualityScore and FreshnessScore must lie in [0,1]
func ValidateContentRecord(record *ContentRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidContentRecord)
	}
	if record.ContentID == "" {
		return fmt.Errorf("%w: empty content id", ErrInvalidContentRecord)
	}
	if record.Hash == "" {
		return fmt.Errorf("%w: empty content hash", ErrInvalidContentRecord)
	}
	if record.ExpiresAt.Before(record.CreatedAt) {
		return fmt.Errorf("%w: expires_at before created_at", ErrInvalidContentRecord)
	}
	if !inUnitRange(record.QualityScore) || !inUnitRange(record.FreshnessScore) {
		return fmt.Errorf("%w: scores must be within [0,1]", ErrInvalidContentRecord)
	}
	return nil
}

// ValidateCacheEntry validates a CacheEntry. ExpiresAt must not precede CreatedAt.
func ValidateCacheEntry(entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidCacheEntry)
	}
	if entry.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidCacheEntry)
	}
	if entry.ExpiresAt.Before(entry.CreatedAt) {
		return fmt.Errorf("%w: expires_at before created_at", ErrInvalidCacheEntry)
	}
	return nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}
