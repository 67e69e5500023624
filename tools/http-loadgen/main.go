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


// Command http-loadgen submits purchase transactions to a running sticker-api
// and reports throughput and outcome counts.
//
// Modes:
//
//	unique  every submission is a new transaction of a round-robin shopper
//	replay  every transaction is submitted twice, concurrently, to exercise idempotency
//	hot     every submission is a new transaction of one shopper, to exercise the shopper lock
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

type modeType string

const (
	modeUnique modeType = "unique"
	modeReplay modeType = "replay"
	modeHot    modeType = "hot"
)

// outcomes counts responses by class.
type outcomes struct {
	fresh, duplicate, conflict, rejected, failed atomic.Int64
}

func (o *outcomes) String() string {
	return fmt.Sprintf("fresh=%d duplicate=%d conflict=%d rejected=%d failed=%d",
		o.fresh.Load(), o.duplicate.Load(), o.conflict.Load(), o.rejected.Load(), o.failed.Load())
}

type submission struct {
	TransactionID string    `json:"transactionId"`
	ShopperID     string    `json:"shopperId"`
	StoreID       string    `json:"storeId"`
	Timestamp     time.Time `json:"timestamp"`
	Items         []line    `json:"items"`
}

type line struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
	Category  string `json:"category"`
}

// newSubmission builds a deterministic basket for request i.
func newSubmission(txID, shopperID string, i int) submission {
	category := "grocery"
	if i%4 == 0 {
		category = "promo"
	}
	return submission{
		TransactionID: txID,
		ShopperID:     shopperID,
		StoreID:       fmt.Sprintf("store-%d", i%7+1),
		Timestamp:     time.Now().UTC(),
		Items: []line{
			{SKU: "SKU-1", Name: "Basket", Quantity: 1, UnitPrice: fmt.Sprintf("%d.50", 5+i%40), Category: "grocery"},
			{SKU: "SKU-2", Name: "Snack", Quantity: 1 + i%3, UnitPrice: "2.00", Category: category},
		},
	}
}

// shopperFor picks the shopper of request i.
func shopperFor(m modeType, i, shoppers int) string {
	if m == modeHot || shoppers <= 1 {
		return "shopper-hot"
	}
	return fmt.Sprintf("shopper-%d", i%shoppers+1)
}

func classify(o *outcomes, status int, body []byte) {
	switch status {
	case http.StatusOK:
		var resp struct {
			Duplicate bool `json:"duplicate"`
		}
		if json.Unmarshal(body, &resp) == nil && resp.Duplicate {
			o.duplicate.Add(1)
		} else {
			o.fresh.Add(1)
		}
	case http.StatusConflict:
		o.conflict.Add(1)
	case http.StatusBadRequest:
		o.rejected.Add(1)
	default:
		o.failed.Add(1)
	}
}

func main() {
	app := &cli.App{
		Name:  "http-loadgen",
		Usage: "submit transactions to sticker-api",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "base", Value: "http://127.0.0.1:8080", Usage: "base URL including scheme and host"},
			&cli.StringFlag{Name: "mode", Value: string(modeUnique), Usage: "unique|replay|hot"},
			&cli.IntFlag{Name: "n", Value: 2000, Usage: "total transactions to generate"},
			&cli.IntFlag{Name: "c", Value: 8, Usage: "concurrent workers"},
			&cli.IntFlag{Name: "shoppers", Value: 50, Usage: "distinct shoppers in unique and replay modes"},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "overall timeout for the run"},
			&cli.DurationFlag{Name: "idle_timeout", Value: 30 * time.Second, Usage: "HTTP idle connection timeout"},
			&cli.IntFlag{Name: "max_idle_per_host", Value: 256, Usage: "max idle connections per host"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}

func run(c *cli.Context) error {
	m := modeType(strings.ToLower(c.String("mode")))
	if m != modeUnique && m != modeReplay && m != modeHot {
		return errors.Errorf("unknown --mode=%s (want unique|replay|hot)", c.String("mode"))
	}
	n, conc := c.Int("n"), c.Int("c")
	if n <= 0 || conc <= 0 {
		return errors.New("--n and --c must be > 0")
	}
	endpoint := strings.TrimRight(c.String("base"), "/") + "/api/transactions"

	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        c.Int("max_idle_per_host"),
		MaxIdleConnsPerHost: c.Int("max_idle_per_host"),
		IdleConnTimeout:     c.Duration("idle_timeout"),
	}
	client := &http.Client{Transport: tr, Timeout: 5 * time.Second}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	var (
		stats outcomes
		next  atomic.Int64
	)
	post := func(body []byte) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			stats.failed.Add(1)
			// Brief backoff on errors to avoid hot spinning
			time.Sleep(200 * time.Microsecond)
			return
		}
		payload, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		classify(&stats, resp.StatusCode, payload)
	}

	worker := func(count int) {
		for i := 0; i < count; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			seq := int(next.Add(1) - 1)
			body, err := json.Marshal(newSubmission(uuid.NewString(), shopperFor(m, seq, c.Int("shoppers")), seq))
			if err != nil {
				stats.failed.Add(1)
				continue
			}
			if m != modeReplay {
				post(body)
				continue
			}
			var both sync.WaitGroup
			both.Add(2)
			for k := 0; k < 2; k++ {
				go func() {
					defer both.Done()
					post(body)
				}()
			}
			both.Wait()
		}
	}

	start := time.Now()
	// Split n across conc workers
	per := n / conc
	rem := n - per*conc
	var wg sync.WaitGroup
	wg.Add(conc)
	for w := 0; w < conc; w++ {
		count := per
		if w == conc-1 {
			count += rem
		}
		go func(count int) {
			defer wg.Done()
			worker(count)
		}(count)
	}
	wg.Wait()

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	requests := n
	if m == modeReplay {
		requests *= 2
	}
	fmt.Fprintf(c.App.Writer, "LoadGen: mode=%s N=%d c=%d go=%d Duration=%s Throughput=%.0f req/s\n",
		m, n, conc, runtime.GOMAXPROCS(0), elapsed.Truncate(time.Millisecond), float64(requests)/elapsed.Seconds())
	fmt.Fprintf(c.App.Writer, "Outcomes: %s\n", stats.String())
	return nil
}
