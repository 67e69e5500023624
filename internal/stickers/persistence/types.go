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


// Package persistence provides the durable side of the sticker pipeline: stores
// that record a transaction together with the shopper balance increment as one
// unit, plus the schema migrations for the relational backend.
//
// Two adapters implement core.Store:
//   - MemoryStore: process-local maps guarded by a mutex (demo and tests)
//   - MySQLStore: sqlx over go-sql-driver/mysql, one database transaction per award
//
// Both report a second write of the same transaction id as core.ErrTransactionExists
// and leave every table untouched in that case.
package persistence

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultQueryTimeout bounds store calls whose context carries no deadline.
const DefaultQueryTimeout = 10 * time.Second

// Options holds the knobs for BuildStore.
type Options struct {
	// MySQLDSN is a go-sql-driver/mysql DSN, e.g. "user:pass@tcp(127.0.0.1:3306)/stickers".
	MySQLDSN string
	// AutoMigrate applies pending migrations before the store is returned.
	AutoMigrate bool
	// QueryTimeout overrides DefaultQueryTimeout when positive.
	QueryTimeout time.Duration
	Logger       log.FieldLogger
}

func withDefaultTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
