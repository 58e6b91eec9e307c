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

// Package ai defines the embedding abstraction used by factsearch.
//
// The search engine and the ingestion pipeline depend on the Embedder
// interface only. Two implementations ship with the module:
//
//   - ai/openai: OpenAI-compatible HTTP APIs (Ollama, LocalAI, vLLM, OpenAI)
//   - ai/mock: deterministic test doubles
//
// Public constructors in ai/openai return interface types. The mock
// constructors return concrete types so tests can inject behavior and
// inspect call counts.
//
// Vectors are compared by squared L2 distance, which only maps onto cosine
// similarity for unit vectors. NormalizeVector is applied to every vector
// before it is stored or used as a query.
package ai
