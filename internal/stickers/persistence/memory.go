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
	"sync"
	"time"

	"github.com/pkg/errors"

	"stickerengine/internal/stickers/core"
	"stickerengine/internal/stickers/model"
)

// MemoryStore keeps transactions and balances in process memory. All records
// handed out are copies, so callers cannot mutate stored state.
type MemoryStore struct {
	mu        sync.RWMutex
	txs       map[string]model.Transaction
	history   map[string][]string // shopper id -> transaction ids in insertion order
	shoppers  map[string]model.Shopper
	now       func() time.Time
	failAward error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		txs:      make(map[string]model.Transaction),
		history:  make(map[string][]string),
		shoppers: make(map[string]model.Shopper),
		now:      time.Now,
	}
}

func (m *MemoryStore) FindTransaction(ctx context.Context, txID string) (*model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.txs[txID]
	if !ok {
		return nil, errors.Wrapf(core.ErrNotFound, "transaction %s", txID)
	}
	out := cloneTransaction(tx)
	return &out, nil
}

func (m *MemoryStore) FindShopper(ctx context.Context, shopperID string) (*model.Shopper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shoppers[shopperID]
	if !ok {
		return nil, errors.Wrapf(core.ErrNotFound, "shopper %s", shopperID)
	}
	return &s, nil
}

func (m *MemoryStore) ListTransactionsByShopper(ctx context.Context, shopperID string) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.history[shopperID]
	out := make([]model.Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneTransaction(m.txs[id]))
	}
	return out, nil
}

func (m *MemoryStore) RecordAward(ctx context.Context, tx model.Transaction) (*model.Shopper, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAward != nil {
		return nil, m.failAward
	}
	if _, dup := m.txs[tx.TransactionID]; dup {
		return nil, errors.Wrapf(core.ErrTransactionExists, "transaction %s", tx.TransactionID)
	}
	now := m.now().UTC()
	s, ok := m.shoppers[tx.ShopperID]
	if !ok {
		s = model.Shopper{ShopperID: tx.ShopperID, CreatedAt: now}
	}
	s.TotalStickers += tx.StickersEarned
	s.UpdatedAt = now

	m.txs[tx.TransactionID] = cloneTransaction(tx)
	m.history[tx.ShopperID] = append(m.history[tx.ShopperID], tx.TransactionID)
	m.shoppers[tx.ShopperID] = s
	return &s, nil
}

// FailAwards makes every following RecordAward return err without writing.
// A nil err restores normal behavior. Used to exercise rollback paths.
func (m *MemoryStore) FailAwards(err error) {
	m.mu.Lock()
	m.failAward = err
	m.mu.Unlock()
}

// Len returns the number of stored transactions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.txs)
}

func cloneTransaction(tx model.Transaction) model.Transaction {
	tx.Items = append([]model.Item(nil), tx.Items...)
	return tx
}
