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

package persistence

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stickerengine/internal/stickers/core"
	"stickerengine/internal/stickers/model"
)

func sampleTx(txID, shopperID string, stickers int) model.Transaction {
	return model.Transaction{
		TransactionID: txID,
		ShopperID:     shopperID,
		StoreID:       "store-1",
		Timestamp:     time.Date(2025, 10, 2, 8, 30, 0, 0, time.UTC),
		Items: []model.Item{
			{SKU: "A1", Name: "Milk", Quantity: 2, UnitPrice: decimal.RequireFromString("3.50"), Category: "dairy"},
		},
		TotalAmount:    decimal.RequireFromString("7.00"),
		StickersEarned: stickers,
	}
}

func TestMemoryStore_RecordAwardAndLookups(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.FindShopper(ctx, "sh-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.FindTransaction(ctx, "tx-1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	shopper, err := s.RecordAward(ctx, sampleTx("tx-1", "sh-1", 3))
	require.NoError(t, err)
	assert.Equal(t, 3, shopper.TotalStickers)
	assert.False(t, shopper.CreatedAt.IsZero())

	shopper, err = s.RecordAward(ctx, sampleTx("tx-2", "sh-1", 2))
	require.NoError(t, err)
	assert.Equal(t, 5, shopper.TotalStickers)

	tx, err := s.FindTransaction(ctx, "tx-2")
	require.NoError(t, err)
	assert.Equal(t, 2, tx.StickersEarned)
	require.Len(t, tx.Items, 1)

	history, err := s.ListTransactionsByShopper(ctx, "sh-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "tx-1", history[0].TransactionID)
	assert.Equal(t, "tx-2", history[1].TransactionID)

	empty, err := s.ListTransactionsByShopper(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryStore_DuplicateWritesNothing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.RecordAward(ctx, sampleTx("tx-1", "sh-1", 3))
	require.NoError(t, err)

	_, err = s.RecordAward(ctx, sampleTx("tx-1", "sh-1", 4))
	assert.ErrorIs(t, err, core.ErrTransactionExists)

	shopper, err := s.FindShopper(ctx, "sh-1")
	require.NoError(t, err)
	assert.Equal(t, 3, shopper.TotalStickers)
	assert.Equal(t, 1, s.Len())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.RecordAward(ctx, sampleTx("tx-1", "sh-1", 1))
	require.NoError(t, err)

	tx, err := s.FindTransaction(ctx, "tx-1")
	require.NoError(t, err)
	tx.Items[0].SKU = "mutated"

	again, err := s.FindTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "A1", again.Items[0].SKU)
}

func TestMemoryStore_FailAwards(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("disk full")

	s.FailAwards(boom)
	_, err := s.RecordAward(ctx, sampleTx("tx-1", "sh-1", 1))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Len())
	_, err = s.FindShopper(ctx, "sh-1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	s.FailAwards(nil)
	_, err = s.RecordAward(ctx, sampleTx("tx-1", "sh-1", 1))
	assert.NoError(t, err)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.RecordAward(ctx, sampleTx("tx-1", "sh-1", 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryStore_ConcurrentAwards(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.RecordAward(context.Background(), sampleTx("tx-"+strconv.Itoa(i), "sh-1", 1))
		}(i)
	}
	wg.Wait()
	shopper, err := s.FindShopper(context.Background(), "sh-1")
	require.NoError(t, err)
	assert.Equal(t, 50, shopper.TotalStickers)
}
