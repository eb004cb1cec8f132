package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var evaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "automod_evaluation_duration_sec",
	Help: "Total duration of message evaluation, including the oracle call",
}, []string{"policy"})

var evaluationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_evaluations",
	Help: "Number of messages evaluated, by resulting action",
}, []string{"policy", "action"})

var evaluationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_evaluation_errors",
	Help: "Number of evaluations which failed, by error kind",
}, []string{"kind"})

var escalationCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_escalations",
	Help: "Number of actions escalated because of recent infractions",
}, []string{"from", "to"})

var infractionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_infractions_recorded",
	Help: "Number of infractions persisted",
}, []string{"action", "category"})

var oracleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name: "automod_oracle_duration_sec",
	Help: "Duration of classification oracle calls",
})

var notifyErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "automod_notification_errors",
	Help: "Number of notifications which failed to send",
})
