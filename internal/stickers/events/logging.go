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
	"context"

	log "github.com/sirupsen/logrus"
)

// LoggingProducer writes every message to the log instead of a broker. It lets
// the service run with events enabled and no broker around.
type LoggingProducer struct {
	Logger log.FieldLogger
}

func (p LoggingProducer) Produce(ctx context.Context, routingKey string, key []byte, value []byte, headers map[string]string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	logger := p.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	logger.WithFields(log.Fields{
		"routingKey": routingKey,
		"key":        string(key),
		"value":      truncate(string(value), 256),
		"headers":    headers,
	}).Info("award event")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
