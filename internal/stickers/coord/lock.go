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

package coord

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	// LockKeyPrefix namespaces lock records.
	LockKeyPrefix = "lock:"
	// DefaultLockTTL bounds how long a crashed holder keeps a key unavailable.
	DefaultLockTTL = 30 * time.Second
)

// ErrLockNotAcquired is returned by ExecuteWithLock when the key is held by someone else.
// Callers decide the retry policy; acquisition never blocks.
var ErrLockNotAcquired = errors.New("lock not acquired")

// unlockScript deletes KEYS[1] only while it still holds ARGV[1]. Returns 1 if deleted, 0 otherwise.
var unlockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
else
  return 0
end
`)

// LockKey returns the Redis key guarding key.
func LockKey(key string) string { return LockKeyPrefix + key }

// Lock is a single-attempt distributed mutex. TTL expiry is the only automatic
// release for a holder that dies inside its critical section.
type Lock struct {
	client   redis.Cmdable
	ttl      time.Duration
	newToken func() string
	log      log.FieldLogger
}

// NewLock returns a lock manager. A non-positive ttl selects DefaultLockTTL.
func NewLock(client redis.Cmdable, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Lock{client: client, ttl: ttl, newToken: uuid.NewString, log: log.StandardLogger()}
}

// WithLogger sets the logger that reports failed releases.
func (l *Lock) WithLogger(logger log.FieldLogger) *Lock {
	if logger != nil {
		l.log = logger
	}
	return l
}

// TryLock attempts to take key with the default TTL. It returns the holder token,
// or "" when the key is already held.
func (l *Lock) TryLock(ctx context.Context, key string) (string, error) {
	return l.TryLockTTL(ctx, key, l.ttl)
}

// TryLockTTL is TryLock with an explicit expiry.
func (l *Lock) TryLockTTL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = l.ttl
	}
	token := l.newToken()
	ok, err := l.client.SetNX(ctx, LockKey(key), token, ttl).Result()
	if err != nil {
		return "", errors.Wrapf(err, "redis setnx lock=%s", key)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// Unlock releases key only if it is still held with token. It returns false when
// the lock expired or now belongs to another holder; that holder is left untouched.
func (l *Lock) Unlock(ctx context.Context, key, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	n, err := unlockScript.Run(ctx, l.client, []string{LockKey(key)}, token).Int64()
	if err != nil {
		return false, errors.Wrapf(err, "redis unlock lock=%s", key)
	}
	return n > 0, nil
}

// ExecuteWithLock takes key, runs fn and always releases the lock afterwards, even
// when fn panics. It fails with ErrLockNotAcquired if the key is held.
// The release uses a context detached from ctx cancellation; a release that fails
// or finds the lock already expired is logged, not returned.
func (l *Lock) ExecuteWithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token, err := l.TryLock(ctx, key)
	if err != nil {
		return err
	}
	if token == "" {
		return errors.Wrapf(ErrLockNotAcquired, "key %s", key)
	}
	defer func() {
		released, err := l.Unlock(context.WithoutCancel(ctx), key, token)
		switch {
		case err != nil:
			l.log.WithError(err).WithField("lockKey", key).Error("could not release lock")
		case !released:
			l.log.WithField("lockKey", key).Warn("lock expired before release")
		}
	}()
	return fn(ctx)
}
