// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package rules

import (
	"sort"

	"stickerengine/internal/stickers/model"
)

// Calculator folds an ordered rule chain over a request.
// It is immutable after construction and safe for concurrent use.
type Calculator struct {
	rules []Rule
}

// NewCalculator sorts rules by ascending priority (stable) and returns a calculator.
// The engine does not treat any rule as terminal; a rule registered after the cap
// with a higher priority still runs.
func NewCalculator(rules ...Rule) *Calculator {
	chain := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if r != nil {
			chain = append(chain, r)
		}
	}
	sort.SliceStable(chain, func(i, j int) bool {
		return chain[i].Priority() < chain[j].Priority()
	})
	return &Calculator{rules: chain}
}

// NewDefaultCalculator builds the shipped chain.
func NewDefaultCalculator() *Calculator {
	return NewCalculator(DefaultRules()...)
}

// Calculate returns the sticker count for req.
func (c *Calculator) Calculate(req model.TransactionRequest) int {
	stickers := 0
	for _, r := range c.rules {
		stickers = r.Apply(req, stickers)
	}
	return stickers
}

// Rules returns the chain in execution order.
func (c *Calculator) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}
