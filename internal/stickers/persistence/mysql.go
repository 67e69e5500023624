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
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"stickerengine/internal/stickers/core"
	"stickerengine/internal/stickers/model"
)

// Schema lives in migrations/. The write path per award is:
//
//	BEGIN;
//	INSERT INTO transactions (...) VALUES (...);          -- 1062 on replay
//	INSERT INTO transaction_items (...) VALUES (...),(...);
//	INSERT INTO shoppers (...) VALUES (?, ?, ...)
//	  ON DUPLICATE KEY UPDATE total_stickers = total_stickers + VALUES(total_stickers);
//	SELECT ... FROM shoppers WHERE shopper_id = ?;
//	COMMIT;

const mysqlErrDuplicateEntry = 1062

type transactionRow struct {
	ID             int64           `db:"id"`
	TransactionID  string          `db:"transaction_id"`
	ShopperID      string          `db:"shopper_id"`
	StoreID        string          `db:"store_id"`
	Timestamp      time.Time       `db:"timestamp"`
	TotalAmount    decimal.Decimal `db:"total_amount"`
	StickersEarned int             `db:"stickers_earned"`
	CreatedAt      time.Time       `db:"created_at"`
}

type itemRow struct {
	TransactionID string          `db:"transaction_id"`
	SKU           string          `db:"sku"`
	Name          string          `db:"name"`
	Quantity      int             `db:"quantity"`
	UnitPrice     decimal.Decimal `db:"unit_price"`
	Category      string          `db:"category"`
}

type shopperRow struct {
	ShopperID     string    `db:"shopper_id"`
	TotalStickers int       `db:"total_stickers"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

const (
	selectTransactionColumns = `SELECT id, transaction_id, shopper_id, store_id, timestamp, total_amount, stickers_earned, created_at FROM transactions`
	selectItemColumns        = `SELECT transaction_id, sku, name, quantity, unit_price, category FROM transaction_items`
	selectShopper            = `SELECT shopper_id, total_stickers, created_at, updated_at FROM shoppers WHERE shopper_id = ?`
)

// MySQLStore implements core.Store on MySQL through sqlx.
type MySQLStore struct {
	db             *sqlx.DB
	defaultTimeout time.Duration
	now            func() time.Time
}

// NewMySQLStore wraps an open handle. The schema must already exist (see Migrate).
func NewMySQLStore(db *sqlx.DB) *MySQLStore {
	return &MySQLStore{db: db, defaultTimeout: DefaultQueryTimeout, now: time.Now}
}

// OpenMySQL opens and pings a pool for dsn. Timestamps are always parsed into
// time.Time and interpreted as UTC regardless of what the DSN says.
func OpenMySQL(ctx context.Context, dsn string) (*sqlx.DB, error) {
	cfg, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.ConnectContext(ctx, "mysql", cfg.FormatDSN())
	if err != nil {
		return nil, errors.Wrapf(err, "connect mysql %s@%s/%s", cfg.User, cfg.Addr, cfg.DBName)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func normalizeDSN(dsn string) (*mysql.Config, error) {
	if dsn == "" {
		return nil, errors.New("mysql dsn is empty")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse mysql dsn")
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg, nil
}

func (s *MySQLStore) FindTransaction(ctx context.Context, txID string) (*model.Transaction, error) {
	ctx, cancel := withDefaultTimeout(ctx, s.defaultTimeout)
	defer cancel()

	var row transactionRow
	err := s.db.GetContext(ctx, &row, selectTransactionColumns+` WHERE transaction_id = ?`, txID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(core.ErrNotFound, "transaction %s", txID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select transaction %s", txID)
	}
	var items []itemRow
	if err := s.db.SelectContext(ctx, &items, selectItemColumns+` WHERE transaction_id = ? ORDER BY id`, txID); err != nil {
		return nil, errors.Wrapf(err, "select items of %s", txID)
	}
	tx := row.toModel(items)
	return &tx, nil
}

func (s *MySQLStore) FindShopper(ctx context.Context, shopperID string) (*model.Shopper, error) {
	ctx, cancel := withDefaultTimeout(ctx, s.defaultTimeout)
	defer cancel()

	var row shopperRow
	err := s.db.GetContext(ctx, &row, selectShopper, shopperID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(core.ErrNotFound, "shopper %s", shopperID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "select shopper %s", shopperID)
	}
	shopper := row.toModel()
	return &shopper, nil
}

// ListTransactionsByShopper returns the shopper's transactions in insertion order.
func (s *MySQLStore) ListTransactionsByShopper(ctx context.Context, shopperID string) ([]model.Transaction, error) {
	ctx, cancel := withDefaultTimeout(ctx, s.defaultTimeout)
	defer cancel()

	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, selectTransactionColumns+` WHERE shopper_id = ? ORDER BY id`, shopperID); err != nil {
		return nil, errors.Wrapf(err, "select transactions of %s", shopperID)
	}
	if len(rows) == 0 {
		return []model.Transaction{}, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.TransactionID
	}
	query, args, err := sqlx.In(selectItemColumns+` WHERE transaction_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "expand item query")
	}
	var items []itemRow
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrapf(err, "select items of %s", shopperID)
	}
	byTx := make(map[string][]itemRow, len(rows))
	for _, it := range items {
		byTx[it.TransactionID] = append(byTx[it.TransactionID], it)
	}

	out := make([]model.Transaction, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel(byTx[r.TransactionID]))
	}
	return out, nil
}

// RecordAward writes the transaction, its items and the balance increment in one
// database transaction. A duplicate transaction id rolls everything back and
// returns core.ErrTransactionExists.
func (s *MySQLStore) RecordAward(ctx context.Context, t model.Transaction) (*model.Shopper, error) {
	ctx, cancel := withDefaultTimeout(ctx, s.defaultTimeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, errors.Wrap(err, "begin award")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := s.now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (transaction_id, shopper_id, store_id, timestamp, total_amount, stickers_earned, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.TransactionID, t.ShopperID, t.StoreID, t.Timestamp.UTC(), t.TotalAmount, t.StickersEarned, now); err != nil {
		if isDuplicateEntry(err) {
			return nil, errors.Wrapf(core.ErrTransactionExists, "transaction %s", t.TransactionID)
		}
		return nil, errors.Wrapf(err, "insert transaction %s", t.TransactionID)
	}

	if len(t.Items) > 0 {
		rows := make([]itemRow, len(t.Items))
		for i, it := range t.Items {
			rows[i] = itemRow{
				TransactionID: t.TransactionID,
				SKU:           it.SKU,
				Name:          it.Name,
				Quantity:      it.Quantity,
				UnitPrice:     it.UnitPrice,
				Category:      it.Category,
			}
		}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO transaction_items (transaction_id, sku, name, quantity, unit_price, category) VALUES (:transaction_id, :sku, :name, :quantity, :unit_price, :category)`,
			rows); err != nil {
			return nil, errors.Wrapf(err, "insert items of %s", t.TransactionID)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO shoppers (shopper_id, total_stickers, created_at, updated_at) VALUES (?, ?, ?, ?)
		   ON DUPLICATE KEY UPDATE total_stickers = total_stickers + VALUES(total_stickers), updated_at = VALUES(updated_at)`,
		t.ShopperID, t.StickersEarned, now, now); err != nil {
		return nil, errors.Wrapf(err, "upsert shopper %s", t.ShopperID)
	}

	var shopper shopperRow
	if err := tx.GetContext(ctx, &shopper, selectShopper, t.ShopperID); err != nil {
		return nil, errors.Wrapf(err, "reload shopper %s", t.ShopperID)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit award")
	}
	out := shopper.toModel()
	return &out, nil
}

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlErrDuplicateEntry
}

func (r transactionRow) toModel(items []itemRow) model.Transaction {
	out := model.Transaction{
		TransactionID:  r.TransactionID,
		ShopperID:      r.ShopperID,
		StoreID:        r.StoreID,
		Timestamp:      r.Timestamp.UTC(),
		TotalAmount:    r.TotalAmount,
		StickersEarned: r.StickersEarned,
		Items:          make([]model.Item, 0, len(items)),
	}
	for _, it := range items {
		out.Items = append(out.Items, model.Item{
			SKU:       it.SKU,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Category:  it.Category,
		})
	}
	return out
}

func (r shopperRow) toModel() model.Shopper {
	return model.Shopper{
		ShopperID:     r.ShopperID,
		TotalStickers: r.TotalStickers,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}
