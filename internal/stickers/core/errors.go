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
	"github.com/pkg/errors"

	"stickerengine/internal/stickers/coord"
)

var (
	// ErrLockNotAcquired signals shopper-level contention. The idempotency claim has
	// already been rolled back when a caller sees it, so a later retry can proceed.
	ErrLockNotAcquired = coord.ErrLockNotAcquired

	// ErrInconsistentState means the claim marker says completed but the store has no
	// row for the transaction. It indicates a coordination bug and is never swallowed.
	ErrInconsistentState = errors.New("inconsistent state: transaction marked completed but not persisted")

	// ErrTransactionInProgress means another caller holds the claim and has not
	// persisted the transaction yet. Retryable.
	ErrTransactionInProgress = errors.New("transaction is being processed")

	// ErrShopperNotFound is the not-found outcome of GetShopperStatus.
	ErrShopperNotFound = errors.New("shopper not found")
)

// IsRetryable reports whether err is a contention outcome the caller may retry after backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockNotAcquired) || errors.Is(err, ErrTransactionInProgress)
}
