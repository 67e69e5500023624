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

package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for stickers_transactions_total. The set is closed, so the
// label never grows with traffic.
const (
	OutcomeProcessed          = "processed"
	OutcomeDuplicateFast      = "duplicate_fast"
	OutcomeDuplicateConfirmed = "duplicate_confirmed"
	OutcomeLockContended      = "lock_contended"
	OutcomeInProgress         = "in_progress"
	OutcomeFailed             = "failed"
)

// Metrics holds the processor's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	transactions      *prometheus.CounterVec
	awarded           prometheus.Counter
	perTransaction    prometheus.Histogram
	processingSeconds prometheus.Histogram
	publishErrors     prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
// Pass prometheus.DefaultRegisterer for the process-wide registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stickers_transactions_total",
			Help: "Transaction submissions by pipeline outcome",
		}, []string{"outcome"}),
		awarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stickers_awarded_total",
			Help: "Total stickers credited to shopper balances",
		}),
		perTransaction: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stickers_per_transaction",
			Help:    "Distribution of stickers earned by first-time transactions",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 10},
		}),
		processingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stickers_processing_seconds",
			Help:    "End-to-end latency of ProcessTransaction",
			Buckets: prometheus.DefBuckets,
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stickers_event_publish_errors_total",
			Help: "Award events that could not be published",
		}),
	}
	for _, outcome := range []string{OutcomeProcessed, OutcomeDuplicateFast, OutcomeDuplicateConfirmed, OutcomeLockContended, OutcomeInProgress, OutcomeFailed} {
		m.transactions.WithLabelValues(outcome)
	}
	if reg != nil {
		reg.MustRegister(m.transactions, m.awarded, m.perTransaction, m.processingSeconds, m.publishErrors)
	}
	return m
}

func (m *Metrics) observeOutcome(outcome string, started time.Time) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(outcome).Inc()
	m.processingSeconds.Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeAward(stickers int) {
	if m == nil {
		return
	}
	m.awarded.Add(float64(stickers))
	m.perTransaction.Observe(float64(stickers))
}

func (m *Metrics) publishFailed() {
	if m == nil {
		return
	}
	m.publishErrors.Inc()
}
