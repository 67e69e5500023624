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


// Package api implements the public-facing HTTP surface of the sticker engine.
// It decodes and validates point-of-sale submissions, hands them to the
// transaction processor and translates processor outcomes to HTTP responses.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"stickerengine/internal/stickers/model"
)

const maxBodyBytes = 1 << 20

// TransactionProcessor is the processor the server fronts. core.TransactionService satisfies it.
type TransactionProcessor interface {
	ProcessTransaction(ctx context.Context, req model.TransactionRequest) (*model.TransactionResponse, error)
	GetShopperStatus(ctx context.Context, shopperID string) (*model.ShopperStatus, error)
}

// Options carries the optional collaborators of Server.
type Options struct {
	Logger log.FieldLogger
	// Health is probed by GET /healthz. Nil reports healthy.
	Health func(ctx context.Context) error
}

// Server handles the HTTP requests for the sticker service.
type Server struct {
	svc      TransactionProcessor
	validate *requestValidator
	log      log.FieldLogger
	health   func(ctx context.Context) error
}

// NewServer creates and configures a new API server.
func NewServer(svc TransactionProcessor, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Server{
		svc:      svc,
		validate: newRequestValidator(),
		log:      logger,
		health:   opts.Health,
	}
}

// Router returns the full handler tree, request logging included.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/transactions", s.handleSubmitTransaction).Methods(http.MethodPost)
	api.HandleFunc("/shoppers/{shopperId}", s.handleShopperStatus).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	return logMiddleware(s.log, r)
}

// NewHTTPServer wraps Router in an http.Server with production timeouts.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req model.TransactionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.log.WithError(err).Debug("unreadable transaction body")
		writeError(w, http.StatusBadRequest, "Invalid Request Body",
			"Unable to parse request. Please check JSON format and data types.")
		return
	}
	if msgs := s.validate.Struct(req); len(msgs) > 0 {
		writeValidationError(w, msgs)
		return
	}

	logger := s.log.WithFields(log.Fields{
		"txId":      req.TransactionID,
		"shopperId": req.ShopperID,
		"storeId":   req.StoreID,
	})
	logger.Info("received transaction request")

	resp, err := s.svc.ProcessTransaction(r.Context(), req)
	if err != nil {
		s.writeProcessError(w, err)
		return
	}
	logger.WithField("stickersEarned", resp.StickersEarned).Info("transaction request served")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleShopperStatus(w http.ResponseWriter, r *http.Request) {
	shopperID := mux.Vars(r)["shopperId"]
	logger := s.log.WithField("shopperId", shopperID)

	status, err := s.svc.GetShopperStatus(r.Context(), shopperID)
	if err != nil {
		s.writeProcessError(w, err)
		return
	}
	logger.WithField("totalStickers", status.TotalStickers).Info("found shopper")
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			s.log.WithError(err).Warn("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logMiddleware(logger log.FieldLogger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)
		logger.WithFields(log.Fields{
			"method":     r.Method,
			"url":        r.URL.String(),
			"remoteAddr": r.RemoteAddr,
			"userAgent":  r.UserAgent(),
			"status":     rec.status,
			"duration":   time.Since(started).String(),
		}).Info("served request")
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(errors.WithStack(err)).Error("write response body")
	}
}
