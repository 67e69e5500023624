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

// Package model holds the value types shared by the sticker pipeline: the
// inbound purchase request, the persisted transaction record, the shopper
// balance and the response shapes returned to point-of-sale callers.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PromoCategory marks items that earn a bonus sticker per unit. Compared case-insensitively.
const PromoCategory = "promo"

// Item is a single purchase line.
type Item struct {
	SKU       string          `json:"sku" validate:"required,notblank,max=64"`
	Name      string          `json:"name" validate:"required,notblank,max=255"`
	Quantity  int             `json:"quantity" validate:"required,min=1,max=10000"`
	UnitPrice decimal.Decimal `json:"unitPrice" validate:"gt=0"`
	Category  string          `json:"category" validate:"required,notblank,max=64"`
}

// TotalPrice is UnitPrice × Quantity.
func (i Item) TotalPrice() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// IsPromo reports whether the item belongs to the promo category.
func (i Item) IsPromo() bool {
	return strings.EqualFold(i.Category, PromoCategory)
}

// TransactionRequest is the inbound submission from a point-of-sale integration.
// TransactionID doubles as the idempotency key.
type TransactionRequest struct {
	TransactionID string    `json:"transactionId" validate:"required,notblank,max=64"`
	ShopperID     string    `json:"shopperId" validate:"required,notblank,max=64"`
	StoreID       string    `json:"storeId" validate:"required,notblank,max=64"`
	Timestamp     time.Time `json:"timestamp"`
	Items         []Item    `json:"items" validate:"required,min=1,max=100,dive"`
}

// TotalAmount sums the item totals.
func (r TransactionRequest) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, it := range r.Items {
		total = total.Add(it.TotalPrice())
	}
	return total
}

// Transaction is the immutable record persisted once per TransactionID.
type Transaction struct {
	TransactionID  string
	ShopperID      string
	StoreID        string
	Timestamp      time.Time
	Items          []Item
	TotalAmount    decimal.Decimal
	StickersEarned int
}

// NewTransaction derives the record for req with the computed award.
func NewTransaction(req TransactionRequest, stickersEarned int) Transaction {
	items := make([]Item, len(req.Items))
	copy(items, req.Items)
	return Transaction{
		TransactionID:  req.TransactionID,
		ShopperID:      req.ShopperID,
		StoreID:        req.StoreID,
		Timestamp:      req.Timestamp,
		Items:          items,
		TotalAmount:    req.TotalAmount(),
		StickersEarned: stickersEarned,
	}
}

// Shopper is the per-shopper balance aggregate. TotalStickers never decreases.
type Shopper struct {
	ShopperID     string
	TotalStickers int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TransactionResponse is returned for both first-time and duplicate submissions.
type TransactionResponse struct {
	TransactionID   string `json:"transactionId"`
	ShopperID       string `json:"shopperId"`
	StickersEarned  int    `json:"stickersEarned"`
	NewTotalBalance int    `json:"newTotalBalance"`
	Duplicate       bool   `json:"duplicate"`
	Message         string `json:"message"`
}

// SuccessResponse builds the response for a freshly awarded transaction.
func SuccessResponse(tx Transaction, totalBalance int) TransactionResponse {
	return TransactionResponse{
		TransactionID:   tx.TransactionID,
		ShopperID:       tx.ShopperID,
		StickersEarned:  tx.StickersEarned,
		NewTotalBalance: totalBalance,
		Duplicate:       false,
		Message:         fmt.Sprintf("Transaction processed successfully. Earned %d sticker(s).", tx.StickersEarned),
	}
}

// DuplicateResponse builds the response for a transaction that was already recorded.
func DuplicateResponse(tx Transaction, totalBalance int) TransactionResponse {
	return TransactionResponse{
		TransactionID:   tx.TransactionID,
		ShopperID:       tx.ShopperID,
		StickersEarned:  tx.StickersEarned,
		NewTotalBalance: totalBalance,
		Duplicate:       true,
		Message:         fmt.Sprintf("Duplicate transaction. Previously awarded %d sticker(s).", tx.StickersEarned),
	}
}

// ShopperStatus is the balance plus history view of a shopper.
type ShopperStatus struct {
	ShopperID     string               `json:"shopperId"`
	TotalStickers int                  `json:"totalStickers"`
	Transactions  []TransactionSummary `json:"transactions"`
}

// TransactionSummary is one history line in ShopperStatus.
type TransactionSummary struct {
	TransactionID  string `json:"transactionId"`
	StoreID        string `json:"storeId"`
	Timestamp      string `json:"timestamp"`
	TotalAmount    string `json:"totalAmount"`
	StickersEarned int    `json:"stickersEarned"`
}

// SummaryFrom renders tx for the history view: ISO-8601 UTC timestamp and a
// dollar-prefixed amount with two fractional digits.
func SummaryFrom(tx Transaction) TransactionSummary {
	return TransactionSummary{
		TransactionID:  tx.TransactionID,
		StoreID:        tx.StoreID,
		Timestamp:      tx.Timestamp.UTC().Format(time.RFC3339Nano),
		TotalAmount:    "$" + tx.TotalAmount.StringFixed(2),
		StickersEarned: tx.StickersEarned,
	}
}
