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

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"stickerengine/internal/stickers/core"
)

// Store adapters accepted by BuildStore.
const (
	AdapterMemory = "memory"
	AdapterMySQL  = "mysql"
)

// BuildStore constructs a core.Store based on a string selector.
// Supported adapters:
//   - "memory" (default): process-local, nothing survives a restart
//   - "mysql": MySQLStore on opts.MySQLDSN, migrated first when opts.AutoMigrate is set
//
// The returned close function releases whatever the adapter opened.
func BuildStore(ctx context.Context, adapter string, opts Options) (core.Store, func() error, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	switch adapter {
	case "", AdapterMemory:
		logger.Warn("using in-memory store; balances are lost on restart")
		return NewMemoryStore(), func() error { return nil }, nil
	case AdapterMySQL:
		if opts.MySQLDSN == "" {
			return nil, nil, errors.New("mysql adapter selected but no DSN configured")
		}
		if opts.AutoMigrate {
			if err := Migrate(opts.MySQLDSN, logger); err != nil {
				return nil, nil, err
			}
		}
		db, err := OpenMySQL(ctx, opts.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		s := NewMySQLStore(db)
		if opts.QueryTimeout > 0 {
			s.defaultTimeout = opts.QueryTimeout
		}
		return s, db.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown store adapter: %s", adapter)
	}
}
