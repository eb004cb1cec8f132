package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var moderationLag = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "warden_moderation_lag_sec",
	Help:    "Time between a message being sent and its moderation request arriving",
	Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
})
