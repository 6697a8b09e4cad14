// Package metrics содержит счётчики Prometheus сервиса. Все метрики регистрируются
// в реестре по умолчанию и отдаются через promhttp на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GateDecisions число решений шлюза доступа по типу решения и маршруту.
	GateDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trial_gate",
		Name:      "gate_decisions_total",
		Help:      "Access gate decisions by kind and route.",
	}, []string{"decision", "route"})

	// ChangeEvents число событий изменения строк, полученных из канала уведомлений.
	ChangeEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trial_gate",
		Name:      "change_events_total",
		Help:      "Row change events received by table and operation.",
	}, []string{"table", "op"})

	// ChangeEventsDropped события, не доставленные подписчику из-за переполненного буфера.
	ChangeEventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trial_gate",
		Name:      "change_events_dropped_total",
		Help:      "Row change events dropped because a subscriber buffer was full.",
	}, []string{"table"})

	// ActiveSubscriptions число открытых подписок на канал изменений.
	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trial_gate",
		Name:      "change_subscriptions_active",
		Help:      "Currently open change-channel subscriptions.",
	})

	// AdminReloads полные перезагрузки коллекций административной панели.
	AdminReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trial_gate",
		Name:      "admin_reloads_total",
		Help:      "Admin collection reloads by collection, trigger and result.",
	}, []string{"collection", "trigger", "result"})

	// TrialReminders опубликованные напоминания о пробном периоде.
	TrialReminders = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trial_gate",
		Name:      "trial_reminders_published_total",
		Help:      "Trial reminder messages published by routing key.",
	}, []string{"routing_key"})
)
