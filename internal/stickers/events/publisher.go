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


// Package events publishes a message for every first-time sticker award so
// downstream consumers (campaign dashboards, notification senders) can react
// without polling the store.
//
// Delivery is at-most-once from the processor's point of view: the award is
// already committed when the message is produced, and a failed publish is
// logged and counted but never undoes the award. Consumers should key on the
// message id (the transaction id) to drop redeliveries.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"stickerengine/internal/stickers/model"
)

// AwardRoutingKey is the routing key of award messages.
const AwardRoutingKey = "sticker.awarded"

// Producer is a minimal abstraction over a message broker client.
// key identifies the message for broker- or consumer-side deduplication.
type Producer interface {
	Produce(ctx context.Context, routingKey string, key []byte, value []byte, headers map[string]string) error
}

// AwardMessage is the serialized payload of an award event.
type AwardMessage struct {
	TransactionID   string `json:"transactionId"`
	ShopperID       string `json:"shopperId"`
	StoreID         string `json:"storeId"`
	StickersEarned  int    `json:"stickersEarned"`
	NewTotalBalance int    `json:"newTotalBalance"`
	TotalAmount     string `json:"totalAmount"`
	Timestamp       string `json:"timestamp"`
	TsUnixMs        int64  `json:"tsUnixMs"`
}

// AwardPublisher turns committed awards into broker messages. It satisfies
// core.AwardNotifier.
type AwardPublisher struct {
	producer       Producer
	routingKey     string
	defaultTimeout time.Duration
	now            func() time.Time
}

// NewAwardPublisher publishes on routingKey, or AwardRoutingKey when empty.
func NewAwardPublisher(p Producer, routingKey string) *AwardPublisher {
	if routingKey == "" {
		routingKey = AwardRoutingKey
	}
	return &AwardPublisher{producer: p, routingKey: routingKey, defaultTimeout: 5 * time.Second, now: time.Now}
}

// PublishAward produces one message for tx keyed by its transaction id.
func (a *AwardPublisher) PublishAward(ctx context.Context, tx model.Transaction, newBalance int) error {
	if tx.TransactionID == "" {
		return errors.New("award transaction id must be set")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); !ok && a.defaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.defaultTimeout)
		defer cancel()
	}
	msg := AwardMessage{
		TransactionID:   tx.TransactionID,
		ShopperID:       tx.ShopperID,
		StoreID:         tx.StoreID,
		StickersEarned:  tx.StickersEarned,
		NewTotalBalance: newBalance,
		TotalAmount:     tx.TotalAmount.StringFixed(2),
		Timestamp:       tx.Timestamp.UTC().Format(time.RFC3339Nano),
		TsUnixMs:        a.now().UnixMilli(),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal award message")
	}
	headers := map[string]string{
		"content-type":    "application/json",
		"shopper-id":      tx.ShopperID,
		"stickers-earned": strconv.Itoa(tx.StickersEarned),
	}
	if err := a.producer.Produce(ctx, a.routingKey, []byte(tx.TransactionID), b, headers); err != nil {
		return errors.Wrapf(err, "produce %s tx=%s", a.routingKey, tx.TransactionID)
	}
	return nil
}
