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


package events

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"stickerengine/internal/stickers/core"
)

// Event adapters accepted by BuildPublisher.
const (
	AdapterNone = "none"
	AdapterLog  = "log"
	AdapterAMQP = "amqp"
)

// Options holds the knobs for BuildPublisher.
type Options struct {
	AMQPURL  string
	Exchange string
	Logger   log.FieldLogger
}

// BuildPublisher constructs the award notifier selected by adapter:
//   - "none" (default): no events, the returned notifier is nil
//   - "log": messages are written to the log
//   - "amqp": messages go to a RabbitMQ topic exchange at opts.AMQPURL
//
// The returned close function releases broker resources.
func BuildPublisher(adapter string, opts Options) (core.AwardNotifier, func() error, error) {
	noop := func() error { return nil }
	switch adapter {
	case "", AdapterNone:
		return nil, noop, nil
	case AdapterLog:
		return NewAwardPublisher(LoggingProducer{Logger: opts.Logger}, ""), noop, nil
	case AdapterAMQP:
		if opts.AMQPURL == "" {
			return nil, nil, errors.New("amqp events selected but no url configured")
		}
		p, err := DialAMQP(opts.AMQPURL, opts.Exchange)
		if err != nil {
			return nil, nil, err
		}
		return NewAwardPublisher(p, ""), p.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown events adapter: %s", adapter)
	}
}
