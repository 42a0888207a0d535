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

package enrich

import "errors"

var (
	// ErrContentRepositoryRequired is returned when a content repository is not provided.
	ErrContentRepositoryRequired = errors.New("content repository required")

	// ErrIndexStoreRequired is returned when an index store is not provided.
	ErrIndexStoreRequired = errors.New("index store required")

	// ErrScorerRequired is returned when a quality scorer is not provided.
	ErrScorerRequired = errors.New("quality scorer required")

	// ErrTTLManagerRequired is returned when a TTL manager is not provided.
	ErrTTLManagerRequired = errors.New("ttl manager required")

	// ErrProposerRequired is returned when a strategy proposer is not provided.
	ErrProposerRequired = errors.New("strategy proposer required")

	// ErrIngesterRequired is returned when an ingester is not provided.
	ErrIngesterRequired = errors.New("ingester required")

	// ErrRunnerRequired is returned when a dispatcher has nothing to run jobs with.
	ErrRunnerRequired = errors.New("job runner required")

	// ErrQueueFull is returned when the dispatch queue has no room for another job.
	ErrQueueFull = errors.New("enrichment queue full")

	// ErrDispatcherClosed is returned when dispatching after Close.
	ErrDispatcherClosed = errors.New("dispatcher closed")

	// ErrInvalidMaxAttempts is returned when retry attempts is not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")
)
