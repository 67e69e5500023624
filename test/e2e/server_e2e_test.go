//go:build e2e

// Package e2e contains end-to-end tests that build and launch the real
// sticker-api binary and drive it over HTTP.
package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runningServer struct {
	cmd       *exec.Cmd
	baseURL   string
	logLinesC chan string
}

// buildAndStartServer builds cmd/sticker-api into a temp dir, launches it on a
// free port with the given STICKERS_* overrides and returns once /healthz answers.
// The test cleanup terminates the child process.
func buildAndStartServer(t *testing.T, env ...string) *runningServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	_ = ln.Close()
	_, port, _ := net.SplitHostPort(addr)

	exe := filepath.Join(t.TempDir(), exeName("sticker-api"))
	// Build using module import path so it works regardless of current working directory
	build := exec.Command("go", "build", "-o", exe, "stickerengine/cmd/sticker-api")
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	require.NoError(t, build.Run(), "build server")

	cmd := exec.Command(exe, "serve")
	cmd.Env = append(os.Environ(),
		"STICKERS_HTTP_ADDR=127.0.0.1:"+port,
		"STICKERS_LOG_FORMAT=text",
		"STICKERS_STORE_ADAPTER=memory",
		"STICKERS_EVENTS_ADAPTER=log",
	)
	cmd.Env = append(cmd.Env, env...)

	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	stderr, err := cmd.StderrPipe()
	require.NoError(t, err)
	logC := make(chan string, 4096)
	go scanLines(stdout, logC)
	go scanLines(stderr, logC)

	require.NoError(t, cmd.Start(), "start server")

	_ = waitForLog(logC, "listening", 5*time.Second)
	base := "http://127.0.0.1:" + port
	client := &http.Client{Timeout: 500 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ready := false
	for ctx.Err() == nil {
		resp, err := client.Get(base + "/healthz")
		if err == nil {
			resp.Body.Close()
			ready = resp.StatusCode == http.StatusOK
			if ready {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	if !ready {
		_ = cmd.Process.Kill()
		t.Fatalf("server did not become ready")
	}

	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	})
	return &runningServer{cmd: cmd, baseURL: base, logLinesC: logC}
}

func scanLines(r io.ReadCloser, out chan<- string) {
	s := bufio.NewScanner(r)
	for s.Scan() {
		select {
		case out <- s.Text():
		default: // drop when nobody is reading
		}
	}
}

// waitForLog blocks until a line containing needle appears or timeout elapses.
func waitForLog(logC <-chan string, needle string, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case line := <-logC:
			if strings.Contains(line, needle) {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

func exeName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

type txResponse struct {
	TransactionID   string `json:"transactionId"`
	StickersEarned  int    `json:"stickersEarned"`
	NewTotalBalance int    `json:"newTotalBalance"`
	Duplicate       bool   `json:"duplicate"`
	Message         string `json:"message"`
}

type shopperStatus struct {
	ShopperID     string `json:"shopperId"`
	TotalStickers int    `json:"totalStickers"`
	Transactions  []struct {
		TransactionID string `json:"transactionId"`
		TotalAmount   string `json:"totalAmount"`
	} `json:"transactions"`
}

func submit(t *testing.T, client *http.Client, base, txID, shopperID, price, category string) (int, txResponse) {
	t.Helper()
	body := fmt.Sprintf(`{"transactionId":%q,"shopperId":%q,"storeId":"store-e2e","timestamp":%q,
		"items":[{"sku":"E1","name":"Item","quantity":2,"unitPrice":%s,"category":%q}]}`,
		txID, shopperID, time.Now().UTC().Format(time.RFC3339), price, category)
	resp, err := client.Post(base+"/api/transactions", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out txResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func status(t *testing.T, client *http.Client, base, shopperID string) (int, shopperStatus) {
	t.Helper()
	resp, err := client.Get(base + "/api/shoppers/" + shopperID)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out shopperStatus
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

// --- Tests ---

func TestE2E_SubmitReplayStatus(t *testing.T) {
	rs := buildAndStartServer(t)
	client := &http.Client{Timeout: 2 * time.Second}
	shopper := "sh-" + uuid.NewString()

	code, first := submit(t, client, rs.baseURL, "tx-a", shopper, "12.00", "grocery")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2, first.StickersEarned)
	assert.False(t, first.Duplicate)

	code, replay := submit(t, client, rs.baseURL, "tx-a", shopper, "12.00", "grocery")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, replay.Duplicate)
	assert.Equal(t, first.StickersEarned, replay.StickersEarned)
	assert.Equal(t, first.NewTotalBalance, replay.NewTotalBalance)

	code, promo := submit(t, client, rs.baseURL, "tx-b", shopper, "40.00", "PROMO")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 5, promo.StickersEarned, "8 base + 2 promo capped at 5")

	code, st := status(t, client, rs.baseURL, shopper)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 7, st.TotalStickers)
	require.Len(t, st.Transactions, 2)
	assert.Equal(t, "$24.00", st.Transactions[0].TotalAmount)

	code, _ = status(t, client, rs.baseURL, "nobody-"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, code)

	assert.True(t, waitForLog(rs.logLinesC, "award event", 2*time.Second), "log producer should emit award events")
}

func TestE2E_RejectsInvalidSubmissions(t *testing.T) {
	rs := buildAndStartServer(t)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Post(rs.baseURL+"/api/transactions", "application/json", strings.NewReader(`{"items":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Validation Failed", body["error"])
}

func TestE2E_ConcurrentReplaysAwardOnce(t *testing.T) {
	rs := buildAndStartServer(t)
	client := &http.Client{Timeout: 5 * time.Second}
	shopper := "sh-" + uuid.NewString()
	txID := "tx-" + uuid.NewString()

	const callers = 16
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		fresh int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for attempt := 0; attempt < 200; attempt++ {
				code, resp := submit(t, client, rs.baseURL, txID, shopper, "15.00", "grocery")
				if code == http.StatusConflict {
					time.Sleep(5 * time.Millisecond)
					continue
				}
				if code == http.StatusOK && !resp.Duplicate {
					mu.Lock()
					fresh++
					mu.Unlock()
				}
				return
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fresh)

	_, st := status(t, client, rs.baseURL, shopper)
	assert.Equal(t, 3, st.TotalStickers)
}
