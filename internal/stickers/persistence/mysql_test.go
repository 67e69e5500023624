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
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stickerengine/internal/stickers/core"
)

var fixedNow = time.Date(2025, 10, 2, 9, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*MySQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	s := NewMySQLStore(sqlx.NewDb(db, "mysql"))
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

var (
	txColumns      = []string{"id", "transaction_id", "shopper_id", "store_id", "timestamp", "total_amount", "stickers_earned", "created_at"}
	itemColumns    = []string{"transaction_id", "sku", "name", "quantity", "unit_price", "category"}
	shopperColumns = []string{"shopper_id", "total_stickers", "created_at", "updated_at"}
)

func TestMySQLStore_RecordAwardCommits(t *testing.T) {
	s, mock := newMockStore(t)
	tx := sampleTx("tx-1", "sh-1", 3)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
		WithArgs("tx-1", "sh-1", "store-1", tx.Timestamp, tx.TotalAmount, 3, fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transaction_items")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO shoppers")).
		WithArgs("sh-1", 3, fixedNow, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM shoppers WHERE shopper_id = ?")).
		WithArgs("sh-1").
		WillReturnRows(sqlmock.NewRows(shopperColumns).AddRow("sh-1", 8, fixedNow, fixedNow))
	mock.ExpectCommit()

	shopper, err := s.RecordAward(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, 8, shopper.TotalStickers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_RecordAwardDuplicateRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'tx-1'"})
	mock.ExpectRollback()

	_, err := s.RecordAward(context.Background(), sampleTx("tx-1", "sh-1", 3))
	assert.ErrorIs(t, err, core.ErrTransactionExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_RecordAwardFailureRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("lock wait timeout")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transactions")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO transaction_items")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO shoppers")).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := s.RecordAward(context.Background(), sampleTx("tx-1", "sh-1", 3))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, core.ErrTransactionExists)
	assert.Contains(t, err.Error(), "upsert shopper sh-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_RecordAwardBeginFails(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := s.RecordAward(context.Background(), sampleTx("tx-1", "sh-1", 3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin award")
}

func TestMySQLStore_FindTransaction(t *testing.T) {
	s, mock := newMockStore(t)
	ts := time.Date(2025, 10, 2, 8, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions WHERE transaction_id = ?")).
		WithArgs("tx-1").
		WillReturnRows(sqlmock.NewRows(txColumns).AddRow(1, "tx-1", "sh-1", "store-1", ts, "21.00", 2, fixedNow))
	mock.ExpectQuery(regexp.QuoteMeta("FROM transaction_items WHERE transaction_id = ?")).
		WithArgs("tx-1").
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("tx-1", "A1", "Chips", 2, "3.00", "promo").
			AddRow("tx-1", "B2", "Soda", 1, "15.00", "drinks"))

	tx, err := s.FindTransaction(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "sh-1", tx.ShopperID)
	assert.Equal(t, ts, tx.Timestamp)
	assert.Equal(t, "21.00", tx.TotalAmount.StringFixed(2))
	require.Len(t, tx.Items, 2)
	assert.True(t, tx.Items[0].IsPromo())
	assert.Equal(t, "15", tx.Items[1].UnitPrice.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_FindTransactionNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions WHERE transaction_id = ?")).
		WillReturnRows(sqlmock.NewRows(txColumns))

	_, err := s.FindTransaction(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMySQLStore_FindShopper(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM shoppers WHERE shopper_id = ?")).
		WithArgs("sh-1").
		WillReturnRows(sqlmock.NewRows(shopperColumns).AddRow("sh-1", 12, fixedNow, fixedNow))

	shopper, err := s.FindShopper(context.Background(), "sh-1")
	require.NoError(t, err)
	assert.Equal(t, 12, shopper.TotalStickers)

	mock.ExpectQuery(regexp.QuoteMeta("FROM shoppers WHERE shopper_id = ?")).
		WillReturnRows(sqlmock.NewRows(shopperColumns))
	_, err = s.FindShopper(context.Background(), "nobody")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMySQLStore_ListTransactionsByShopper(t *testing.T) {
	s, mock := newMockStore(t)
	ts := time.Date(2025, 10, 2, 8, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions WHERE shopper_id = ? ORDER BY id")).
		WithArgs("sh-1").
		WillReturnRows(sqlmock.NewRows(txColumns).
			AddRow(1, "tx-1", "sh-1", "store-1", ts, "10.00", 1, fixedNow).
			AddRow(2, "tx-2", "sh-1", "store-2", ts.Add(time.Hour), "55.00", 5, fixedNow))
	mock.ExpectQuery(regexp.QuoteMeta("FROM transaction_items WHERE transaction_id IN (?, ?) ORDER BY id")).
		WithArgs("tx-1", "tx-2").
		WillReturnRows(sqlmock.NewRows(itemColumns).
			AddRow("tx-1", "A1", "Bread", 1, "10.00", "bakery").
			AddRow("tx-2", "B1", "Wine", 1, "55.00", "drinks"))

	txs, err := s.ListTransactionsByShopper(context.Background(), "sh-1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "tx-1", txs[0].TransactionID)
	assert.Equal(t, "tx-2", txs[1].TransactionID)
	require.Len(t, txs[1].Items, 1)
	assert.Equal(t, "Wine", txs[1].Items[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMySQLStore_ListTransactionsByShopperEmpty(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions WHERE shopper_id = ?")).
		WillReturnRows(sqlmock.NewRows(txColumns))

	txs, err := s.ListTransactionsByShopper(context.Background(), "sh-1")
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNormalizeDSN(t *testing.T) {
	cfg, err := normalizeDSN("user:pw@tcp(db:3306)/stickers")
	require.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, time.UTC, cfg.Loc)
	assert.Equal(t, "stickers", cfg.DBName)

	_, err = normalizeDSN("")
	assert.Error(t, err)
	_, err = normalizeDSN("not a dsn")
	assert.Error(t, err)
}
