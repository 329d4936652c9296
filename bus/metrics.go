// Copyright © 2025 IO Finnet Group, Inc.
//
// This file is part of IO Finnet Group, Inc. The full IO Finnet Group, Inc. copyright notice, including
// terms governing use, modification, and redistribution, is contained in the
// file LICENSE at the root of the source code distribution tree.

package bus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of a Comm. A nil *Metrics records nothing.
type Metrics struct {
	MessagesSent       *prometheus.CounterVec
	BytesSent          *prometheus.CounterVec
	CollectiveDuration *prometheus.HistogramVec
}

// NewMetrics registers the bus collectors on reg under namespace (default "mpirsa").
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "mpirsa"
	}
	factory := promauto.With(reg)
	return &Metrics{
		MessagesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "messages_sent_total",
				Help:      "Messages handed to the transport, by operation",
			},
			[]string{"op"},
		),
		BytesSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "bytes_sent_total",
				Help:      "Payload bytes handed to the transport, by operation",
			},
			[]string{"op"},
		),
		CollectiveDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "collective_duration_seconds",
				Help:      "Wall time spent inside a collective, by operation",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"op"},
		),
	}
}

func (m *Metrics) observeSend(op string, n int) {
	if m == nil {
		return
	}
	m.MessagesSent.WithLabelValues(op).Inc()
	m.BytesSent.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) observeCollective(op string, start time.Time) {
	if m == nil {
		return
	}
	m.CollectiveDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
