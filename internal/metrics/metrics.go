// Copyright 2025 Lincoln Institute of Land Policy
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ontorec_http_requests_total",
		Help: "Total number of api requests by route and status code.",
	}, []string{"route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ontorec_http_request_seconds",
		Help:    "Time spent answering an api request.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	StoreCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ontorec_store_call_seconds",
		Help:    "Time spent on a single call to the triplestore.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	RegistryInstances = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ontorec_registry_instances",
		Help: "Number of database backends currently cached by the registry.",
	})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ontorec_rate_limited_total",
		Help: "Total number of api requests rejected by the rate limiter.",
	})
)
