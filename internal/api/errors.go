// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ontotrans/ontorec/internal/stardog"

	log "github.com/sirupsen/logrus"
)

const (
	detailUnreachable   = "Cannot connect to Stardog instance"
	detailNotFound      = "Database does not exist"
	detailNotAuthorized = "Not authenticated"
)

type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("failed to encode response body: %v", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// statusFor maps a store error kind onto the status code and detail shown to callers
func statusFor(err error) (int, string) {
	var storeErr *stardog.StoreError
	if !errors.As(err, &storeErr) {
		return http.StatusInternalServerError, err.Error()
	}
	switch storeErr.Kind {
	case stardog.KindUnreachable:
		return http.StatusInternalServerError, detailUnreachable
	case stardog.KindDatabaseNotFound:
		return http.StatusNotFound, detailNotFound
	case stardog.KindMalformed, stardog.KindArgument, stardog.KindUnsupportedFormat:
		return http.StatusBadRequest, storeErr.Message
	case stardog.KindConflict:
		return http.StatusConflict, storeErr.Message
	default:
		return http.StatusInternalServerError, storeErr.Message
	}
}

// writeError logs the failure of an operation and answers with its mapped status
func writeError(w http.ResponseWriter, operation string, err error) {
	status, detail := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Errorf("%s failed: %v", operation, err)
	} else {
		log.Debugf("%s rejected: %v", operation, err)
	}
	writeDetail(w, status, detail)
}
