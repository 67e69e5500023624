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

package core

import (
	"context"

	"github.com/pkg/errors"

	"stickerengine/internal/stickers/model"
)

var (
	// ErrNotFound is returned by Store lookups that match nothing.
	ErrNotFound = errors.New("not found")
	// ErrTransactionExists is returned by RecordAward when the transaction id is
	// already persisted. Nothing is written in that case.
	ErrTransactionExists = errors.New("transaction already recorded")
)

// Store is the persistent collaborator of the processor. Implementations live in
// the persistence package.
type Store interface {
	// FindTransaction returns the record for txID or ErrNotFound.
	FindTransaction(ctx context.Context, txID string) (*model.Transaction, error)
	// FindShopper returns the balance row for shopperID or ErrNotFound.
	FindShopper(ctx context.Context, shopperID string) (*model.Shopper, error)
	// ListTransactionsByShopper returns the shopper's history in store order.
	ListTransactionsByShopper(ctx context.Context, shopperID string) ([]model.Transaction, error)
	// RecordAward inserts tx and adds tx.StickersEarned to the shopper balance
	// (creating the shopper at zero first when needed) as one unit: either both
	// writes commit or neither does. It returns the shopper after the update.
	RecordAward(ctx context.Context, tx model.Transaction) (*model.Shopper, error)
}
