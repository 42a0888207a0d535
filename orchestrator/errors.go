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

package orchestrator

import "errors"

var (
	// ErrGatewayRequired is returned when a cache gateway is not provided.
	ErrGatewayRequired = errors.New("cache gateway required")

	// ErrSelectorRequired is returned when a workspace selector is not provided.
	ErrSelectorRequired = errors.New("workspace selector required")

	// ErrSearcherRequired is returned when a search executor is not provided.
	ErrSearcherRequired = errors.New("search executor required")

	// ErrEvaluatorRequired is returned when an evaluator is not provided.
	ErrEvaluatorRequired = errors.New("evaluator required")
)
