// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

// Package records turns the PGBS model training and evaluation
// payloads into triples ready to be inserted into a database
package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/ontotrans/ontorec/internal/rdfterm"
)

const (
	SchemaPrefix    = "schema"
	SchemaNamespace = "https://schema.org/"
	xsdNamespace    = "http://www.w3.org/2001/XMLSchema#"
	exampleBase     = "https://example.com/"

	priceAlias        = "Price per 100 pods (0-1 USD)"
	distributionAlias = "Numerical distribution (0-1)"

	creationDateLayout = "2006-01-02T15:04:05"
)

// ErrInvalidRecord is returned when a payload cannot be turned into a record
var ErrInvalidRecord = errors.New("invalid record")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}

// Lexical is a literal value that may arrive as either a JSON string or number
type Lexical string

func (l *Lexical) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Lexical(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return invalid("expected a string or number, got %s", data)
	}
	*l = Lexical(n.String())
	return nil
}

// Timestamp accepts ISO 8601 date times with or without a zone
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{time.RFC3339Nano, creationDateLayout, "2006-01-02 15:04:05", "2006-01-02"}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return invalid("creation_date must be a string")
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return invalid("creation_date %q is not an ISO 8601 date time", s)
}

// pickAlias returns the first of names present in fields
func pickAlias(fields map[string]json.RawMessage, names ...string) (json.RawMessage, error) {
	for _, name := range names {
		if value, ok := fields[name]; ok {
			return value, nil
		}
	}
	return nil, invalid("missing field %q", names[0])
}

type Scenario struct {
	Country string  `json:"country"`
	Brand   string  `json:"brand"`
	Jobs    Lexical `json:"jobs"`
}

type ReferencePeriod struct {
	From Lexical `json:"from"`
	To   Lexical `json:"to"`
}

type Range struct {
	Min Lexical `json:"min"`
	Max Lexical `json:"max"`
}

type ModelInputs struct {
	PriceUnits            Range
	NumericalDistribution Range
}

func (m *ModelInputs) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	price, err := pickAlias(fields, priceAlias, "price_units")
	if err != nil {
		return err
	}
	distribution, err := pickAlias(fields, distributionAlias, "numerical_dist")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(price, &m.PriceUnits); err != nil {
		return err
	}
	return json.Unmarshal(distribution, &m.NumericalDistribution)
}

type TrainingResults struct {
	ModelID      string      `json:"model_id"`
	ModelQuality Lexical     `json:"model_quality"`
	DataRows     Lexical     `json:"data_rows"`
	CreationDate Timestamp   `json:"creation_date"`
	ModelInputs  ModelInputs `json:"model_inputs"`
}

type ModelTraining struct {
	TrainingType    string           `json:"training_type"`
	GTIN            *string          `json:"gtin"`
	Scenario        *Scenario        `json:"scenario"`
	ReferencePeriod *ReferencePeriod `json:"reference_period"`
	Results         TrainingResults  `json:"results"`
}

type ModelInputsList struct {
	PriceUnits            []float64
	NumericalDistribution []float64
}

func (m *ModelInputsList) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	price, err := pickAlias(fields, priceAlias, "price_units")
	if err != nil {
		return err
	}
	distribution, err := pickAlias(fields, distributionAlias, "numerical_dist")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(price, &m.PriceUnits); err != nil {
		return err
	}
	return json.Unmarshal(distribution, &m.NumericalDistribution)
}

type Prediction struct {
	Predicted             []float64
	UncertaintyMin        []float64
	UncertaintyMax        []float64
	ModelBasedOutlier     []float64
	Price                 []float64
	NumericalDistribution []float64
}

func (p *Prediction) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	targets := []struct {
		names []string
		dest  *[]float64
	}{
		{[]string{"predicted"}, &p.Predicted},
		{[]string{"uncertainty_min"}, &p.UncertaintyMin},
		{[]string{"uncertainty_max"}, &p.UncertaintyMax},
		{[]string{"model_based_outlier"}, &p.ModelBasedOutlier},
		{[]string{priceAlias, "price"}, &p.Price},
		{[]string{distributionAlias, "num_dist"}, &p.NumericalDistribution},
	}
	for _, target := range targets {
		raw, err := pickAlias(fields, target.names...)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, target.dest); err != nil {
			return err
		}
	}
	return nil
}

type ModelEvaluation struct {
	ModelID     string          `json:"model_id"`
	ModelInputs ModelInputsList `json:"model_inputs"`
	Prediction  Prediction      `json:"prediction"`
}

// Record is the set of triples describing one training or evaluation
type Record struct {
	URI string
	// only set for trainings
	ResultsURI string
	Triples    []rdfterm.Triple
}

func schemaTerm(local string) string {
	return SchemaPrefix + ":" + local
}

func typedValue(value Lexical, datatype string) map[string]any {
	return map[string]any{"@value": string(value), "@type": "xsd:" + datatype}
}

func floatValue(value float64) map[string]any {
	return typedValue(Lexical(strconv.FormatFloat(value, 'f', -1, 64)), "float")
}

func reference(iri string) map[string]any {
	return map[string]any{"@id": iri}
}

// the record is wrapped in a named graph so every statement comes out as a quad
func recordDocument(graph string, nodes ...map[string]any) map[string]any {
	graphNodes := make([]any, len(nodes))
	for i, node := range nodes {
		graphNodes[i] = node
	}
	return map[string]any{
		"@context": map[string]any{
			SchemaPrefix: SchemaNamespace,
			"xsd":        xsdNamespace,
		},
		"@id":    graph,
		"@graph": graphNodes,
	}
}

func (m ModelTraining) validate() error {
	if m.TrainingType == "" {
		return invalid("training_type is required")
	}
	if m.Results.ModelID == "" {
		return invalid("results.model_id is required")
	}
	if m.Results.CreationDate.IsZero() {
		return invalid("results.creation_date is required")
	}
	return nil
}

// TrainingRecord describes a model training and its results node
func TrainingRecord(m ModelTraining, id uuid.UUID) (Record, error) {
	if err := m.validate(); err != nil {
		return Record{}, err
	}
	trainingID := url.PathEscape(m.TrainingType + "-" + id.String())
	trainingURI := exampleBase + "model_training/" + trainingID
	resultsURI := exampleBase + "training_results/" + trainingID

	training := map[string]any{
		"@id":                       trainingURI,
		"@type":                     schemaTerm("ModelTraining"),
		schemaTerm("training_type"): m.TrainingType,
		schemaTerm("results"):       reference(resultsURI),
	}
	if m.GTIN != nil {
		training[schemaTerm("gtin")] = reference(exampleBase + "product/" + url.PathEscape(*m.GTIN))
	}
	if m.Scenario != nil {
		training[schemaTerm("country")] = m.Scenario.Country
		training[schemaTerm("brand")] = m.Scenario.Brand
		training[schemaTerm("jobs")] = typedValue(m.Scenario.Jobs, "integer")
	}
	if m.ReferencePeriod != nil {
		training[schemaTerm("from")] = typedValue(m.ReferencePeriod.From, "date")
		training[schemaTerm("to")] = typedValue(m.ReferencePeriod.To, "date")
	}

	inputs := m.Results.ModelInputs
	results := map[string]any{
		"@id":                                    resultsURI,
		"@type":                                  schemaTerm("TrainingResults"),
		schemaTerm("id"):                         reference(exampleBase + "model/" + url.PathEscape(m.Results.ModelID)),
		schemaTerm("quality"):                    typedValue(m.Results.ModelQuality, "float"),
		schemaTerm("data_rows"):                  typedValue(m.Results.DataRows, "integer"),
		schemaTerm("creation_date"):              typedValue(Lexical(m.Results.CreationDate.Format(creationDateLayout)), "dateTime"),
		schemaTerm("input_price_min"):            typedValue(inputs.PriceUnits.Min, "float"),
		schemaTerm("input_price_max"):            typedValue(inputs.PriceUnits.Max, "float"),
		schemaTerm("numerical_distribution_min"): typedValue(inputs.NumericalDistribution.Min, "float"),
		schemaTerm("numerical_distribution_max"): typedValue(inputs.NumericalDistribution.Max, "float"),
	}

	triples, err := jsonldToTriples(recordDocument(trainingURI, training, results))
	if err != nil {
		return Record{}, err
	}
	return Record{URI: trainingURI, ResultsURI: resultsURI, Triples: triples}, nil
}

// EvaluationRecord describes a model evaluation using the first value of every series
func EvaluationRecord(m ModelEvaluation) (Record, error) {
	if m.ModelID == "" {
		return Record{}, invalid("model_id is required")
	}
	series := []struct {
		name   string
		values []float64
	}{
		{"input_price", m.ModelInputs.PriceUnits},
		{"input_numerical_distribution", m.ModelInputs.NumericalDistribution},
		{"predicted", m.Prediction.Predicted},
		{"uncertainty_min", m.Prediction.UncertaintyMin},
		{"uncertainty_max", m.Prediction.UncertaintyMax},
		{"model_based_outlier", m.Prediction.ModelBasedOutlier},
		{"prediction_price", m.Prediction.Price},
		{"prediction_numerical_distribution", m.Prediction.NumericalDistribution},
	}

	evaluationURI := exampleBase + "model_evaluation/" + url.PathEscape(m.ModelID)
	evaluation := map[string]any{
		"@id":                  evaluationURI,
		"@type":                schemaTerm("ModelEvaluation"),
		schemaTerm("model_id"): reference(exampleBase + "model/" + url.PathEscape(m.ModelID)),
	}
	for _, s := range series {
		if len(s.values) == 0 {
			return Record{}, invalid("%s needs at least one value", s.name)
		}
		evaluation[schemaTerm(s.name)] = floatValue(s.values[0])
	}

	triples, err := jsonldToTriples(recordDocument(evaluationURI, evaluation))
	if err != nil {
		return Record{}, err
	}
	return Record{URI: evaluationURI, Triples: triples}, nil
}
