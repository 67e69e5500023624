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


package api

import (
	"net/http"
	"time"

	"github.com/pkg/errors"

	"stickerengine/internal/stickers/core"
)

// retryAfterSeconds is advertised on 409 responses for contention outcomes.
const retryAfterSeconds = "1"

// errorResponse is the body of every non-2xx answer.
type errorResponse struct {
	Timestamp string   `json:"timestamp"`
	Status    int      `json:"status"`
	Error     string   `json:"error"`
	Message   string   `json:"message,omitempty"`
	Messages  []string `json:"messages,omitempty"`
}

func writeError(w http.ResponseWriter, status int, title, message string) {
	writeJSON(w, status, errorResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Status:    status,
		Error:     title,
		Message:   message,
	})
}

func writeValidationError(w http.ResponseWriter, messages []string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Status:    http.StatusBadRequest,
		Error:     "Validation Failed",
		Messages:  messages,
	})
}

// writeProcessError maps processor errors onto status codes. Internal details
// stay in the log.
func (s *Server) writeProcessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrShopperNotFound):
		writeError(w, http.StatusNotFound, "Not Found", "Shopper not found.")
	case errors.Is(err, core.ErrLockNotAcquired):
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeError(w, http.StatusConflict, "Conflict", "Shopper is busy with another transaction. Please retry.")
	case errors.Is(err, core.ErrTransactionInProgress):
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeError(w, http.StatusConflict, "Conflict", "Transaction is being processed. Please retry.")
	default:
		s.log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "An unexpected error occurred.")
	}
}
