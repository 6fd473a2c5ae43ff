// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scanslice

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("lostluck.dev/scanslice")

// metrics are the collectors of one runner or iterator.
type metrics struct {
	// steps counts finished steps by result: ok, failed.
	steps *prometheus.CounterVec
	// stepDuration tracks the time to run a step's whole chain.
	stepDuration prometheus.Histogram
	// pollWaits counts dynamic HasNext outcomes that needed to wait.
	pollWaits *prometheus.CounterVec
}

// newMetrics builds the collectors and registers them with reg, if any.
// Collectors already registered with reg, by an earlier runner or
// iterator, are shared.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(nil)
	m := &metrics{
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scanslice_steps_total",
			Help: "Total scan steps by result",
		}, []string{"result"}),
		stepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanslice_step_duration_seconds",
			Help:    "Duration of one step's operation chain in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
		}),
		pollWaits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scanslice_poll_waits_total",
			Help: "Total dynamic iterator waits by outcome",
		}, []string{"outcome"}),
	}
	if reg != nil {
		m.steps = register(reg, m.steps)
		m.stepDuration = register(reg, m.stepDuration)
		m.pollWaits = register(reg, m.pollWaits)
	}
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	return c
}
