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

// Package search fans a query out across content partitions and merges the
// partial results.
//
// The Executor runs one task per workspace candidate with bounded
// concurrency and a per-task timeout. Failed and timed-out partitions are
// recorded and excluded; they never fail the call. Aggregate deduplicates
// by content hash, applies the technology boost and ranks deterministically
// regardless of task completion order.
package search
