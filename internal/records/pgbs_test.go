// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package records

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/ontotrans/ontorec/internal/rdfterm"

	"github.com/stretchr/testify/require"
)

const rdfType = rdfterm.IRI("http://www.w3.org/1999/02/22-rdf-syntax-ns#type")

const trainingPayload = `{
	"training_type": "A",
	"gtin": "8712345678906",
	"scenario": {"country": "NL", "brand": "Pods", "jobs": 3},
	"reference_period": {"from": "2021-01-01", "to": "2021-12-31"},
	"results": {
		"model_id": "m42",
		"model_quality": "0.87",
		"data_rows": 1200,
		"creation_date": "2022-03-04T05:06:07",
		"model_inputs": {
			"Price per 100 pods (0-1 USD)": {"min": "0.1", "max": "0.9"},
			"Numerical distribution (0-1)": {"min": "0.2", "max": "0.8"}
		}
	}
}`

const evaluationPayload = `{
	"model_id": "m42",
	"model_inputs": {
		"Price per 100 pods (0-1 USD)": [0.5, 0.6],
		"Numerical distribution (0-1)": [0.25]
	},
	"prediction": {
		"predicted": [12.5],
		"uncertainty_min": [10],
		"uncertainty_max": [15],
		"model_based_outlier": [0],
		"Price per 100 pods (0-1 USD)": [0.5],
		"Numerical distribution (0-1)": [0.25]
	}
}`

func schema(local string) rdfterm.IRI {
	return rdfterm.IRI(SchemaNamespace + local)
}

func xsd(value, datatype string) rdfterm.Literal {
	return rdfterm.NewTypedLiteral(value, xsdNamespace+datatype)
}

func TestTrainingRecord(t *testing.T) {
	var training ModelTraining
	require.NoError(t, json.Unmarshal([]byte(trainingPayload), &training))

	id := uuid.MustParse("6f1c1b1e-8d0a-4c55-9f0e-2a1b3c4d5e6f")
	record, err := TrainingRecord(training, id)
	require.NoError(t, err)

	trainingURI := rdfterm.IRI("https://example.com/model_training/A-6f1c1b1e-8d0a-4c55-9f0e-2a1b3c4d5e6f")
	resultsURI := rdfterm.IRI("https://example.com/training_results/A-6f1c1b1e-8d0a-4c55-9f0e-2a1b3c4d5e6f")
	require.Equal(t, string(trainingURI), record.URI)
	require.Equal(t, string(resultsURI), record.ResultsURI)

	expected := []rdfterm.Triple{
		{Subject: trainingURI, Predicate: rdfType, Object: schema("ModelTraining")},
		{Subject: trainingURI, Predicate: schema("training_type"), Object: rdfterm.NewLiteral("A")},
		{Subject: trainingURI, Predicate: schema("results"), Object: resultsURI},
		{Subject: trainingURI, Predicate: schema("gtin"), Object: rdfterm.IRI("https://example.com/product/8712345678906")},
		{Subject: trainingURI, Predicate: schema("country"), Object: rdfterm.NewLiteral("NL")},
		{Subject: trainingURI, Predicate: schema("brand"), Object: rdfterm.NewLiteral("Pods")},
		{Subject: trainingURI, Predicate: schema("jobs"), Object: xsd("3", "integer")},
		{Subject: trainingURI, Predicate: schema("from"), Object: xsd("2021-01-01", "date")},
		{Subject: trainingURI, Predicate: schema("to"), Object: xsd("2021-12-31", "date")},
		{Subject: resultsURI, Predicate: rdfType, Object: schema("TrainingResults")},
		{Subject: resultsURI, Predicate: schema("id"), Object: rdfterm.IRI("https://example.com/model/m42")},
		{Subject: resultsURI, Predicate: schema("quality"), Object: xsd("0.87", "float")},
		{Subject: resultsURI, Predicate: schema("data_rows"), Object: xsd("1200", "integer")},
		{Subject: resultsURI, Predicate: schema("creation_date"), Object: xsd("2022-03-04T05:06:07", "dateTime")},
		{Subject: resultsURI, Predicate: schema("input_price_min"), Object: xsd("0.1", "float")},
		{Subject: resultsURI, Predicate: schema("input_price_max"), Object: xsd("0.9", "float")},
		{Subject: resultsURI, Predicate: schema("numerical_distribution_min"), Object: xsd("0.2", "float")},
		{Subject: resultsURI, Predicate: schema("numerical_distribution_max"), Object: xsd("0.8", "float")},
	}
	require.ElementsMatch(t, expected, record.Triples)
}

func TestTrainingRecordOptionalSections(t *testing.T) {
	payload := `{
		"training_type": "B",
		"results": {
			"model_id": "m1",
			"model_quality": 0.5,
			"data_rows": "10",
			"creation_date": "2022-03-04T05:06:07Z",
			"model_inputs": {
				"price_units": {"min": 0, "max": 1},
				"numerical_dist": {"min": 0, "max": 1}
			}
		}
	}`
	var training ModelTraining
	require.NoError(t, json.Unmarshal([]byte(payload), &training))

	record, err := TrainingRecord(training, uuid.New())
	require.NoError(t, err)
	// three training statements and ten result statements
	require.Len(t, record.Triples, 13)
}

func TestTrainingRecordValidation(t *testing.T) {
	_, err := TrainingRecord(ModelTraining{}, uuid.New())
	require.ErrorIs(t, err, ErrInvalidRecord)

	var training ModelTraining
	err = json.Unmarshal([]byte(`{"training_type": "A", "results": {"creation_date": "yesterday"}}`), &training)
	require.ErrorIs(t, err, ErrInvalidRecord)

	err = json.Unmarshal([]byte(`{"training_type": "A", "results": {"model_inputs": {"min": 1}}}`), &training)
	require.ErrorIs(t, err, ErrInvalidRecord)
}

func TestEvaluationRecord(t *testing.T) {
	var evaluation ModelEvaluation
	require.NoError(t, json.Unmarshal([]byte(evaluationPayload), &evaluation))

	record, err := EvaluationRecord(evaluation)
	require.NoError(t, err)
	evaluationURI := rdfterm.IRI("https://example.com/model_evaluation/m42")
	require.Equal(t, string(evaluationURI), record.URI)
	require.Empty(t, record.ResultsURI)

	expected := []rdfterm.Triple{
		{Subject: evaluationURI, Predicate: rdfType, Object: schema("ModelEvaluation")},
		{Subject: evaluationURI, Predicate: schema("model_id"), Object: rdfterm.IRI("https://example.com/model/m42")},
		{Subject: evaluationURI, Predicate: schema("input_price"), Object: xsd("0.5", "float")},
		{Subject: evaluationURI, Predicate: schema("input_numerical_distribution"), Object: xsd("0.25", "float")},
		{Subject: evaluationURI, Predicate: schema("predicted"), Object: xsd("12.5", "float")},
		{Subject: evaluationURI, Predicate: schema("uncertainty_min"), Object: xsd("10", "float")},
		{Subject: evaluationURI, Predicate: schema("uncertainty_max"), Object: xsd("15", "float")},
		{Subject: evaluationURI, Predicate: schema("model_based_outlier"), Object: xsd("0", "float")},
		{Subject: evaluationURI, Predicate: schema("prediction_price"), Object: xsd("0.5", "float")},
		{Subject: evaluationURI, Predicate: schema("prediction_numerical_distribution"), Object: xsd("0.25", "float")},
	}
	require.ElementsMatch(t, expected, record.Triples)
}

func TestEvaluationRecordNeedsValues(t *testing.T) {
	var evaluation ModelEvaluation
	require.NoError(t, json.Unmarshal([]byte(evaluationPayload), &evaluation))
	evaluation.Prediction.Predicted = nil

	_, err := EvaluationRecord(evaluation)
	require.ErrorIs(t, err, ErrInvalidRecord)

	_, err = EvaluationRecord(ModelEvaluation{})
	require.ErrorIs(t, err, ErrInvalidRecord)
}

func TestIdentifiersAreEscaped(t *testing.T) {
	var evaluation ModelEvaluation
	require.NoError(t, json.Unmarshal([]byte(evaluationPayload), &evaluation))
	evaluation.ModelID = "model with spaces"

	record, err := EvaluationRecord(evaluation)
	require.NoError(t, err)
	require.Equal(t, "https://example.com/model_evaluation/model%20with%20spaces", record.URI)
}
