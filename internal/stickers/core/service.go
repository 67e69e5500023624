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

// Package core implements the sticker transaction pipeline: an idempotent,
// per-shopper serialized processor that scores a purchase, persists it together
// with the balance increment and answers replays with the original award.
//
// Per transaction id the processor walks:
//
//	claim (idempotency marker) ──fail──▶ fast-path duplicate
//	  │ ok
//	lock shopper ──fail──▶ release claim, ErrLockNotAcquired
//	  │ ok
//	look up row ──found──▶ confirmed duplicate (mark completed)
//	  │ missing
//	compute ▶ record award (one unit) ▶ mark completed
//
// Every failure after the claim releases the claim and the lock before the
// error reaches the caller. Nothing is retried internally.
package core

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"stickerengine/internal/stickers/coord"
	"stickerengine/internal/stickers/model"
)

// ShopperLockPrefix namespaces shopper keys inside the lock keyspace.
const ShopperLockPrefix = "shopper:"

// ShopperLockKey returns the lock key that serializes work for shopperID.
func ShopperLockKey(shopperID string) string { return ShopperLockPrefix + shopperID }

// Calculator scores a request. rules.Calculator satisfies it.
type Calculator interface {
	Calculate(req model.TransactionRequest) int
}

// IdempotencyStore is the claim-marker medium. coord.Idempotency satisfies it.
type IdempotencyStore interface {
	TryAcquire(ctx context.Context, txID string) (bool, error)
	MarkCompleted(ctx context.Context, txID string) error
	Release(ctx context.Context, txID string) error
	State(ctx context.Context, txID string) (coord.MarkerState, error)
}

// Locker provides the shopper critical section. coord.Lock satisfies it.
type Locker interface {
	ExecuteWithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// AwardNotifier is told about every first-time award after it is committed.
type AwardNotifier interface {
	PublishAward(ctx context.Context, tx model.Transaction, newBalance int) error
}

// Options carries the optional collaborators of TransactionService.
type Options struct {
	Logger   log.FieldLogger
	Metrics  *Metrics
	Notifier AwardNotifier
}

// TransactionService processes sticker transactions exactly once and serves
// shopper status reads. It is safe for concurrent use by many callers.
type TransactionService struct {
	store    Store
	calc     Calculator
	idem     IdempotencyStore
	locker   Locker
	log      log.FieldLogger
	metrics  *Metrics
	notifier AwardNotifier
}

// NewTransactionService wires the processor.
func NewTransactionService(store Store, calc Calculator, idem IdempotencyStore, locker Locker, opts Options) *TransactionService {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &TransactionService{
		store:    store,
		calc:     calc,
		idem:     idem,
		locker:   locker,
		log:      logger,
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
	}
}

// ProcessTransaction awards stickers for req, or replays the original award when
// req.TransactionID was seen before. req must already be structurally valid.
func (s *TransactionService) ProcessTransaction(ctx context.Context, req model.TransactionRequest) (*model.TransactionResponse, error) {
	started := time.Now()
	txID, shopperID := req.TransactionID, req.ShopperID
	logger := s.log.WithFields(log.Fields{"txId": txID, "shopperId": shopperID})

	claimed, err := s.idem.TryAcquire(ctx, txID)
	if err != nil {
		s.metrics.observeOutcome(OutcomeFailed, started)
		return nil, errors.Wrap(err, "claim transaction")
	}
	if !claimed {
		logger.Info("duplicate transaction detected")
		resp, err := s.fastPathDuplicate(ctx, txID)
		if err != nil {
			if errors.Is(err, ErrTransactionInProgress) {
				s.metrics.observeOutcome(OutcomeInProgress, started)
			} else {
				logger.WithError(err).Error("duplicate lookup failed")
				s.metrics.observeOutcome(OutcomeFailed, started)
			}
			return nil, err
		}
		s.metrics.observeOutcome(OutcomeDuplicateFast, started)
		return resp, nil
	}

	var (
		resp    *model.TransactionResponse
		outcome string
	)
	err = s.locker.ExecuteWithLock(ctx, ShopperLockKey(shopperID), func(ctx context.Context) error {
		logger.Debug("acquired shopper lock")
		var err error
		resp, outcome, err = s.processLocked(ctx, logger, req)
		return err
	})
	if err != nil {
		s.releaseClaim(ctx, logger, txID)
		if errors.Is(err, ErrLockNotAcquired) {
			logger.Warn("failed to acquire shopper lock")
			s.metrics.observeOutcome(OutcomeLockContended, started)
			return nil, err
		}
		logger.WithError(err).Error("transaction failed")
		s.metrics.observeOutcome(OutcomeFailed, started)
		return nil, err
	}
	logger.Debug("released shopper lock")
	s.metrics.observeOutcome(outcome, started)
	return resp, nil
}

// processLocked runs with the shopper lock held.
func (s *TransactionService) processLocked(ctx context.Context, logger log.FieldLogger, req model.TransactionRequest) (*model.TransactionResponse, string, error) {
	existing, err := s.store.FindTransaction(ctx, req.TransactionID)
	switch {
	case err == nil:
		logger.Info("transaction already exists in store")
		return s.confirmedDuplicate(ctx, logger, *existing)
	case !errors.Is(err, ErrNotFound):
		return nil, "", errors.Wrap(err, "check existing transaction")
	}

	stickers := s.calc.Calculate(req)
	logger.WithField("stickersEarned", stickers).Debug("calculated stickers")
	tx := model.NewTransaction(req, stickers)

	shopper, err := s.store.RecordAward(ctx, tx)
	if errors.Is(err, ErrTransactionExists) {
		// Lost a race the lock should have prevented (e.g. an expired lock TTL);
		// the unique constraint is authoritative.
		stored, ferr := s.store.FindTransaction(ctx, req.TransactionID)
		if ferr != nil {
			return nil, "", errors.Wrap(ferr, "reload existing transaction")
		}
		logger.Warn("transaction inserted concurrently; treating as duplicate")
		return s.confirmedDuplicate(ctx, logger, *stored)
	}
	if err != nil {
		return nil, "", errors.Wrap(err, "record award")
	}

	s.markCompleted(ctx, logger, req.TransactionID)
	s.metrics.observeAward(stickers)
	s.publish(ctx, logger, tx, shopper.TotalStickers)

	logger.WithFields(log.Fields{
		"stickersEarned": stickers,
		"newBalance":     shopper.TotalStickers,
	}).Info("transaction completed")
	resp := model.SuccessResponse(tx, shopper.TotalStickers)
	return &resp, OutcomeProcessed, nil
}

func (s *TransactionService) confirmedDuplicate(ctx context.Context, logger log.FieldLogger, tx model.Transaction) (*model.TransactionResponse, string, error) {
	s.markCompleted(ctx, logger, tx.TransactionID)
	balance, err := s.currentBalance(ctx, tx.ShopperID)
	if err != nil {
		return nil, "", err
	}
	resp := model.DuplicateResponse(tx, balance)
	return &resp, OutcomeDuplicateConfirmed, nil
}

// fastPathDuplicate answers a submission whose claim is held by someone else.
func (s *TransactionService) fastPathDuplicate(ctx context.Context, txID string) (*model.TransactionResponse, error) {
	tx, err := s.store.FindTransaction(ctx, txID)
	if err == nil {
		balance, err := s.currentBalance(ctx, tx.ShopperID)
		if err != nil {
			return nil, err
		}
		resp := model.DuplicateResponse(*tx, balance)
		return &resp, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, errors.Wrap(err, "load duplicate transaction")
	}

	state, err := s.idem.State(ctx, txID)
	if err != nil {
		return nil, errors.Wrap(err, "read claim state")
	}
	if state == coord.StateCompleted {
		return nil, errors.Wrapf(ErrInconsistentState, "tx %s", txID)
	}
	return nil, errors.Wrapf(ErrTransactionInProgress, "tx %s", txID)
}

func (s *TransactionService) currentBalance(ctx context.Context, shopperID string) (int, error) {
	shopper, err := s.store.FindShopper(ctx, shopperID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "load shopper balance")
	}
	return shopper.TotalStickers, nil
}

// markCompleted is best effort: the store already holds the row, which is what
// duplicates are resolved against.
func (s *TransactionService) markCompleted(ctx context.Context, logger log.FieldLogger, txID string) {
	if err := s.idem.MarkCompleted(ctx, txID); err != nil {
		logger.WithError(err).Warn("could not mark transaction completed")
	}
}

func (s *TransactionService) releaseClaim(ctx context.Context, logger log.FieldLogger, txID string) {
	if err := s.idem.Release(context.WithoutCancel(ctx), txID); err != nil {
		logger.WithError(err).Error("could not release idempotency claim")
	}
}

func (s *TransactionService) publish(ctx context.Context, logger log.FieldLogger, tx model.Transaction, balance int) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishAward(ctx, tx, balance); err != nil {
		s.metrics.publishFailed()
		logger.WithError(err).Warn("could not publish award event")
	}
}

// GetShopperStatus returns the balance and history of shopperID, or
// ErrShopperNotFound for a shopper that never completed a transaction.
func (s *TransactionService) GetShopperStatus(ctx context.Context, shopperID string) (*model.ShopperStatus, error) {
	shopper, err := s.store.FindShopper(ctx, shopperID)
	if errors.Is(err, ErrNotFound) {
		return nil, errors.Wrapf(ErrShopperNotFound, "shopper %s", shopperID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load shopper")
	}
	txs, err := s.store.ListTransactionsByShopper(ctx, shopperID)
	if err != nil {
		return nil, errors.Wrap(err, "list shopper transactions")
	}
	summaries := make([]model.TransactionSummary, 0, len(txs))
	for _, tx := range txs {
		summaries = append(summaries, model.SummaryFrom(tx))
	}
	return &model.ShopperStatus{
		ShopperID:     shopper.ShopperID,
		TotalStickers: shopper.TotalStickers,
		Transactions:  summaries,
	}, nil
}
