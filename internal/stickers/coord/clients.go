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

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisOptions holds the connection knobs for the coordination medium.
type RedisOptions struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// RedisClient bundles a go-redis client with whatever must be torn down with it.
type RedisClient struct {
	*redis.Client
	embedded *miniredis.Miniredis
}

// Embedded reports whether the client talks to the in-process server.
func (c *RedisClient) Embedded() bool { return c.embedded != nil }

// Close closes the client and stops the in-process server if one was started.
func (c *RedisClient) Close() error {
	err := c.Client.Close()
	if c.embedded != nil {
		c.embedded.Close()
	}
	return err
}

// NewRedisClient connects to opts.Addr and verifies it with PING.
//
// An empty address starts an in-process Redis-compatible server so the service
// can run without infrastructure. That mode only coordinates callers inside this
// process; it is meant for demos and local runs.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*RedisClient, error) {
	var embedded *miniredis.Miniredis
	addr := opts.Addr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, errors.Wrap(err, "start embedded redis")
		}
		embedded = mr
		addr = mr.Addr()
		log.WithField("addr", addr).Warn("no redis address configured; using embedded in-process redis")
	}
	dial := opts.DialTimeout
	if dial <= 0 {
		dial = 5 * time.Second
	}
	c := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: dial,
	})
	client := &RedisClient{Client: c, embedded: embedded}

	pingCtx, cancel := context.WithTimeout(ctx, dial)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis at %s", addr)
	}
	return client, nil
}
