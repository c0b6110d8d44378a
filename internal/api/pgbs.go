// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/ontotrans/ontorec/internal/records"
	"github.com/ontotrans/ontorec/internal/stardog"

	log "github.com/sirupsen/logrus"
)

type trainingResponse struct {
	ModelTrainingURI   string `json:"model_training_uri"`
	TrainingResultsURI string `json:"training_results_uri"`
}

type evaluationResponse struct {
	ModelEvaluationURI string `json:"model_evaluation_uri"`
}

// insertRecord binds the schema prefix and stores the record triples
func (s *Server) insertRecord(w http.ResponseWriter, r *http.Request, record records.Record) bool {
	name := r.PathValue("name")
	store, err := s.store(r.Context(), name)
	if err != nil {
		writeError(w, "opening "+name, err)
		return false
	}
	schema := records.SchemaNamespace
	if err := store.Bind(r.Context(), records.SchemaPrefix, &schema); err != nil && !stardog.IsKind(err, stardog.KindConflict) {
		writeError(w, "binding the schema prefix in "+name, err)
		return false
	} else if err != nil {
		log.Warnf("%s binds %s to another namespace; keeping it", name, records.SchemaPrefix)
	}
	if err := store.AddTriples(r.Context(), record.Triples); err != nil {
		writeError(w, "inserting "+record.URI+" into "+name, err)
		return false
	}
	return true
}

func writeRecordError(w http.ResponseWriter, err error) {
	if errors.Is(err, records.ErrInvalidRecord) {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	writeDetail(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) addModelTraining(w http.ResponseWriter, r *http.Request) {
	var body records.ModelTraining
	if !decodeBody(w, r, &body) {
		return
	}
	record, err := records.TrainingRecord(body, uuid.New())
	if err != nil {
		writeRecordError(w, err)
		return
	}
	if !s.insertRecord(w, r, record) {
		return
	}
	writeJSON(w, http.StatusCreated, trainingResponse{
		ModelTrainingURI:   record.URI,
		TrainingResultsURI: record.ResultsURI,
	})
}

func (s *Server) addModelEvaluation(w http.ResponseWriter, r *http.Request) {
	var body records.ModelEvaluation
	if !decodeBody(w, r, &body) {
		return
	}
	record, err := records.EvaluationRecord(body)
	if err != nil {
		writeRecordError(w, err)
		return
	}
	if !s.insertRecord(w, r, record) {
		return
	}
	writeJSON(w, http.StatusCreated, evaluationResponse{ModelEvaluationURI: record.URI})
}
