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


// Package quality computes content fingerprints and quality scores.
//
// Fingerprints are shared by search aggregation (dedup of hits) and ingestion
// (dedup of content records). Scores combine five markdown heuristics:
//   - Word count of prose
//   - Heading count
//   - Presence of fenced code blocks
//   - Ratio of code lines to prose lines
//   - Link density
//
// Content under the configured threshold is reported with a
// *core.BelowThresholdError rather than dropped.
package quality
