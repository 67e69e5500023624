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

// Package coord provides the cross-process coordination primitives of the
// sticker pipeline, both backed by Redis:
//
//   - Idempotency: a per-transaction claim marker (processing → completed) with TTL.
//   - Lock: a token-guarded, TTL-bounded mutual exclusion keyed by an arbitrary string.
//
// All check-and-act steps run as a single Redis command or script; nothing here
// relies on in-process locks, so callers may be spread across machines.
package coord

import (
	"context"
	"time"

	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"
)

const (
	// IdempotencyKeyPrefix namespaces claim markers.
	IdempotencyKeyPrefix = "idempotency:tx:"
	// DefaultIdempotencyTTL bounds how long a crashed submission blocks a retry.
	DefaultIdempotencyTTL = 24 * time.Hour
)

// MarkerState is the value stored under a claim key.
type MarkerState string

const (
	StateAbsent     MarkerState = ""
	StateProcessing MarkerState = "processing"
	StateCompleted  MarkerState = "completed"
)

// IdempotencyKey returns the Redis key for a transaction claim.
func IdempotencyKey(txID string) string { return IdempotencyKeyPrefix + txID }

// Idempotency detects duplicate and concurrent submissions of a transaction id.
// It is a fast path only; the persistent store remains the source of truth.
type Idempotency struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewIdempotency returns a claim store. A non-positive ttl selects DefaultIdempotencyTTL.
func NewIdempotency(client redis.Cmdable, ttl time.Duration) *Idempotency {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &Idempotency{client: client, ttl: ttl}
}

// TryAcquire sets the marker to processing iff it is absent. Exactly one caller
// across all processes observes true for a given txID while the marker lives.
func (i *Idempotency) TryAcquire(ctx context.Context, txID string) (bool, error) {
	ok, err := i.client.SetNX(ctx, IdempotencyKey(txID), string(StateProcessing), i.ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "redis setnx tx=%s", txID)
	}
	return ok, nil
}

// MarkCompleted overwrites the marker with completed and refreshes its TTL.
func (i *Idempotency) MarkCompleted(ctx context.Context, txID string) error {
	if err := i.client.Set(ctx, IdempotencyKey(txID), string(StateCompleted), i.ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set completed tx=%s", txID)
	}
	return nil
}

// Release deletes the marker so a later retry can claim the transaction again.
func (i *Idempotency) Release(ctx context.Context, txID string) error {
	if err := i.client.Del(ctx, IdempotencyKey(txID)).Err(); err != nil {
		return errors.Wrapf(err, "redis del tx=%s", txID)
	}
	return nil
}

// Exists reports whether any marker is present. Diagnostics only.
func (i *Idempotency) Exists(ctx context.Context, txID string) (bool, error) {
	n, err := i.client.Exists(ctx, IdempotencyKey(txID)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "redis exists tx=%s", txID)
	}
	return n > 0, nil
}

// State reads the current marker value. Unknown values are returned verbatim.
func (i *Idempotency) State(ctx context.Context, txID string) (MarkerState, error) {
	v, err := i.client.Get(ctx, IdempotencyKey(txID)).Result()
	if errors.Is(err, redis.Nil) {
		return StateAbsent, nil
	}
	if err != nil {
		return StateAbsent, errors.Wrapf(err, "redis get tx=%s", txID)
	}
	return MarkerState(v), nil
}
