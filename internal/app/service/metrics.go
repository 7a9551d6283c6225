package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventProcessCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guildguard_event_processed",
	Help: "Number of platform events processed",
}, []string{"type"})

var eventErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guildguard_event_errors",
	Help: "Number of platform events which failed processing",
}, []string{"type"})

var verdictCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guildguard_verdicts",
	Help: "Number of detector verdicts by action kind and decision",
}, []string{"kind", "decision"})

var lockdownsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "guildguard_lockdowns_active",
	Help: "Number of guilds currently in lockdown",
})

var lockdownOutcomeCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guildguard_lockdown_outcomes",
	Help: "Per-entity results of lockdown enable/disable",
}, []string{"op", "result"})

var restoreOutcomeCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guildguard_restore_outcomes",
	Help: "Per-entity results of restores",
}, []string{"kind", "result"})

var backupCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guildguard_backups",
	Help: "Number of backups attempted",
}, []string{"result"})

var trackedCounterKeys = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "guildguard_tracked_counter_keys",
	Help: "Number of sliding-window keys in memory",
})

var alertCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guildguard_alerts",
	Help: "Number of alerts emitted",
}, []string{"severity"})

var webhookLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "guildguard_webhook_lookups",
	Help: "Webhook owner lookups by cache result",
}, []string{"result"})

func outcomeResult(err error, skipped bool) string {
	switch {
	case err != nil:
		return "error"
	case skipped:
		return "skipped"
	}
	return "ok"
}
