// Package metrics exposes thermostat state and poll counters to Prometheus.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"neviweb-go-home/internal/coordinator"
)

// Source is the part of the coordinator the collector reads.
type Source interface {
	Devices() []coordinator.Snapshot
	Stats() coordinator.PollStats
}

// Collector reads coordinator snapshots on every scrape.
type Collector struct {
	source Source

	// Collect rebuilds the vectors; concurrent scrapes take turns.
	mu          sync.Mutex
	currentTemp *prometheus.GaugeVec
	targetTemp  *prometheus.GaugeVec
	heatLevel   *prometheus.GaugeVec
	active      *prometheus.GaugeVec
	energy      *prometheus.GaugeVec
	lastPoll    *prometheus.GaugeVec

	polls  *prometheus.Desc
	errors *prometheus.Desc
}

// NewCollector creates a collector over source.
func NewCollector(source Source) *Collector {
	labels := []string{"id", "name", "sku", "network"}
	return &Collector{
		source: source,
		currentTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "neviweb_current_temperature",
			Help: "Room temperature reported by the thermostat",
		}, labels),
		targetTemp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "neviweb_target_temperature",
			Help: "Effective target temperature, including demand response offset",
		}, labels),
		heatLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "neviweb_heat_level_percent",
			Help: "Heating output per thermostat",
		}, labels),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "neviweb_polling_active_bool",
			Help: "Polling enabled per thermostat (1=active, 0=snoozed or disabled)",
		}, labels),
		energy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "neviweb_energy_kwh",
			Help: "Last completed energy period per thermostat",
		}, append(labels, "period")),
		lastPoll: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "neviweb_last_poll_timestamp_seconds",
			Help: "Last attribute fetch per thermostat (epoch seconds)",
		}, labels),
		polls: prometheus.NewDesc("neviweb_polls_total",
			"Attribute polls sent to Neviweb", nil, nil),
		errors: prometheus.NewDesc("neviweb_errors_total",
			"Neviweb error codes received while polling", []string{"code"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.currentTemp.Describe(ch)
	c.targetTemp.Describe(ch)
	c.heatLevel.Describe(ch)
	c.active.Describe(ch)
	c.energy.Describe(ch)
	c.lastPoll.Describe(ch)
	ch <- c.polls
	ch <- c.errors
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentTemp.Reset()
	c.targetTemp.Reset()
	c.heatLevel.Reset()
	c.active.Reset()
	c.energy.Reset()
	c.lastPoll.Reset()

	for _, snap := range c.source.Devices() {
		labels := prometheus.Labels{
			"id":      strconv.Itoa(snap.ID),
			"name":    snap.DisplayName(),
			"sku":     snap.SKU,
			"network": snap.Network,
		}
		if snap.CurrentTemp != nil {
			c.currentTemp.With(labels).Set(*snap.CurrentTemp)
		}
		c.targetTemp.With(labels).Set(snap.TargetTemperature)
		c.heatLevel.With(labels).Set(snap.HeatLevel)
		c.active.With(labels).Set(boolToFloat(snap.Active))
		if snap.LastPoll != nil {
			c.lastPoll.With(labels).Set(float64(snap.LastPoll.Unix()))
		}
		for period, kwh := range map[string]*float64{
			"hourly":  snap.Energy.HourlyKWh,
			"daily":   snap.Energy.DailyKWh,
			"monthly": snap.Energy.MonthlyKWh,
		} {
			if kwh != nil {
				c.energy.With(withPeriod(labels, period)).Set(*kwh)
			}
		}
	}

	c.currentTemp.Collect(ch)
	c.targetTemp.Collect(ch)
	c.heatLevel.Collect(ch)
	c.active.Collect(ch)
	c.energy.Collect(ch)
	c.lastPoll.Collect(ch)

	stats := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.polls, prometheus.CounterValue, float64(stats.Polls))
	for code, n := range stats.Errors {
		ch <- prometheus.MustNewConstMetric(c.errors, prometheus.CounterValue, float64(n), code)
	}
}

func withPeriod(labels prometheus.Labels, period string) prometheus.Labels {
	out := make(prometheus.Labels, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out["period"] = period
	return out
}

func boolToFloat(value bool) float64 {
	if value {
		return 1
	}
	return 0
}
