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

// Package rules implements the sticker scoring engine: an ordered chain of
// pure rules folded over a running sticker count that starts at zero.
//
// A rule sees the whole request and the count produced by the rules before it,
// and returns the new count. Chains are sorted once, by ascending priority, when
// a Calculator is built; rules with equal priority keep their registration order.
package rules

import (
	"math"

	"github.com/shopspring/decimal"

	"stickerengine/internal/stickers/model"
)

// Shipped rule priorities. Lower runs first.
const (
	PriorityBaseRate   = 10
	PriorityPromoBonus = 20
	PriorityMaxCap     = 100
)

// MaxStickersPerTransaction is the default per-transaction cap.
const MaxStickersPerTransaction = 5

// DefaultSpendPerSticker is the spend that earns one base sticker.
var DefaultSpendPerSticker = decimal.NewFromInt(10)

// maxIncrement bounds what one shipped rule adds to the running count.
const maxIncrement = math.MaxInt32

var maxIncrementDecimal = decimal.NewFromInt(maxIncrement)

// addSaturating returns current+inc, pinned at math.MaxInt instead of wrapping.
func addSaturating(current, inc int) int {
	if inc > 0 && current > math.MaxInt-inc {
		return math.MaxInt
	}
	return current + inc
}

// Rule is one step of the chain.
type Rule interface {
	Name() string
	Priority() int
	Apply(req model.TransactionRequest, current int) int
}

// RuleFunc is the two-input/one-output contract every rule satisfies.
type RuleFunc func(req model.TransactionRequest, current int) int

type funcRule struct {
	name     string
	priority int
	fn       RuleFunc
}

func (r funcRule) Name() string  { return r.name }
func (r funcRule) Priority() int { return r.priority }
func (r funcRule) Apply(req model.TransactionRequest, current int) int {
	return r.fn(req, current)
}

// NewRule tags fn with a name and priority so it can be registered in a chain.
func NewRule(name string, priority int, fn RuleFunc) Rule {
	return funcRule{name: name, priority: priority, fn: fn}
}

// BaseRate adds floor(totalSpend / spendPerSticker). $19.00 → 1, $21.00 → 2, $9.99 → 0
// at the default rate. A non-positive spendPerSticker falls back to the default.
func BaseRate(spendPerSticker decimal.Decimal) Rule {
	if !spendPerSticker.IsPositive() {
		spendPerSticker = DefaultSpendPerSticker
	}
	return NewRule("base-rate", PriorityBaseRate, func(req model.TransactionRequest, current int) int {
		base := req.TotalAmount().Div(spendPerSticker).Floor()
		if base.GreaterThan(maxIncrementDecimal) {
			base = maxIncrementDecimal
		}
		return addSaturating(current, int(base.IntPart()))
	})
}

// PromoBonus adds the quantity (not the price) of every promo item.
func PromoBonus() Rule {
	return NewRule("promo-bonus", PriorityPromoBonus, func(req model.TransactionRequest, current int) int {
		bonus := 0
		for _, it := range req.Items {
			if !it.IsPromo() || it.Quantity <= 0 {
				continue
			}
			if it.Quantity >= maxIncrement-bonus {
				bonus = maxIncrement
				break
			}
			bonus += it.Quantity
		}
		return addSaturating(current, bonus)
	})
}

// MaxCap clamps the running count into [0, limit].
func MaxCap(limit int) Rule {
	return NewRule("max-cap", PriorityMaxCap, func(_ model.TransactionRequest, current int) int {
		switch {
		case current > limit:
			return limit
		case current < 0:
			return 0
		}
		return current
	})
}

// DefaultRules returns the shipped chain: base rate, promo bonus, cap.
func DefaultRules() []Rule {
	return []Rule{
		BaseRate(DefaultSpendPerSticker),
		PromoBonus(),
		MaxCap(MaxStickersPerTransaction),
	}
}
