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

package ai

import "math"

// NormalizeVector returns a unit-length copy of v. A zero vector yields a
// zero vector of the same length.
func NormalizeVector(v []float32) []float32 {
	result := make([]float32, len(v))
	if len(v) == 0 {
		return result
	}

	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return result
	}

	magnitude := math.Sqrt(sum)
	for i, val := range v {
		result[i] = float32(float64(val) / magnitude)
	}
	return result
}

// SquaredL2 returns the squared Euclidean distance between a and b.
// The vectors must have equal length.
func SquaredL2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}

// DistanceToSimilarity maps a squared L2 distance between unit vectors onto
// cosine similarity.
func DistanceToSimilarity(d float32) float64 {
	return 1 - float64(d)/2
}
