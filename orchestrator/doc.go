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

// Package orchestrator answers documentation queries.
//
// A query moves through a fixed pipeline:
//
//	NORMALIZE -> CACHE_CHECK -> SELECT -> FANOUT -> AGGREGATE -> EVALUATE
//	  -> (ENRICH_DECOUPLED) -> STORE -> RETURN
//
// A cache hit skips straight from CACHE_CHECK to EVALUATE, which is itself
// cached. The response deadline bounds every blocking step; when it expires
// during fan-out the partitions that answered are returned marked partial.
// Concurrent misses for one query share a single fan-out.
//
// When coverage is judged insufficient an enrichment job is handed to the
// dispatcher and the response returns without waiting for it.
//
// Basic usage:
//
//	o, err := orchestrator.New(gateway, selector, executor, evaluator, cfg.Search,
//	    orchestrator.WithDispatcher(dispatcher))
//	resp, err := o.Query(ctx, orchestrator.Request{Query: "python asyncio"})
package orchestrator
