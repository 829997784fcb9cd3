// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Increment-Finance/peripheral-contracts-sub004/log"
)

const namespace = "increment"

var logger = log.WithContext("pkg", "metrics")

// InitializePrometheusMetrics installs the prometheus provider. Calling it again is a no-op.
func InitializePrometheusMetrics() {
	if !Enabled() {
		metrics = newPrometheusMetrics()
	}
}

type prometheusMetrics struct {
	registry *prometheus.Registry
	meters   sync.Map
}

func newPrometheusMetrics() *prometheusMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &prometheusMetrics{registry: registry}
}

// Registry exposes the registry of the installed provider, nil while disabled.
func Registry() *prometheus.Registry {
	if p, ok := metrics.(*prometheusMetrics); ok {
		return p.registry
	}
	return nil
}

func (p *prometheusMetrics) register(c prometheus.Collector) {
	if err := p.registry.Register(c); err != nil {
		logger.Warn("unable to register metric", "err", err)
	}
}

// getOrCreate returns the meter stored under kind/name, creating it with mk on a miss.
func getOrCreate[T any](p *prometheusMetrics, kind, name string, mk func() T) T {
	key := kind + "/" + name
	if v, ok := p.meters.Load(key); ok {
		return v.(T)
	}
	v, _ := p.meters.LoadOrStore(key, mk())
	return v.(T)
}

func (p *prometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *prometheusMetrics) Counter(name string) CountMeter {
	return getOrCreate(p, "counter", name, func() CountMeter {
		c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name})
		p.register(c)
		return &promCounter{c}
	})
}

func (p *prometheusMetrics) CounterVec(name string, labels []string) CountVecMeter {
	return getOrCreate(p, "countervec", name, func() CountVecMeter {
		c := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name}, labels)
		p.register(c)
		return &promCounterVec{c}
	})
}

func (p *prometheusMetrics) Gauge(name string) GaugeMeter {
	return getOrCreate(p, "gauge", name, func() GaugeMeter {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name})
		p.register(g)
		return &promGauge{g}
	})
}

func (p *prometheusMetrics) GaugeVec(name string, labels []string) GaugeVecMeter {
	return getOrCreate(p, "gaugevec", name, func() GaugeVecMeter {
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name}, labels)
		p.register(g)
		return &promGaugeVec{g}
	})
}

func (p *prometheusMetrics) Histogram(name string, buckets []int64) HistogramMeter {
	return getOrCreate(p, "histogram", name, func() HistogramMeter {
		floats := make([]float64, 0, len(buckets))
		for _, b := range buckets {
			floats = append(floats, float64(b))
		}
		h := prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: name, Buckets: floats})
		p.register(h)
		return &promHistogram{h}
	})
}

type promCounter struct{ c prometheus.Counter }

func (m *promCounter) Add(i int64) { m.c.Add(float64(i)) }

type promCounterVec struct{ c *prometheus.CounterVec }

func (m *promCounterVec) AddWithLabel(i int64, labels map[string]string) {
	m.c.With(labels).Add(float64(i))
}

type promGauge struct{ g prometheus.Gauge }

func (m *promGauge) Add(i int64) { m.g.Add(float64(i)) }
func (m *promGauge) Set(i int64) { m.g.Set(float64(i)) }

type promGaugeVec struct{ g *prometheus.GaugeVec }

func (m *promGaugeVec) AddWithLabel(i int64, labels map[string]string) {
	m.g.With(labels).Add(float64(i))
}

func (m *promGaugeVec) SetWithLabel(i int64, labels map[string]string) {
	m.g.With(labels).Set(float64(i))
}

type promHistogram struct{ h prometheus.Histogram }

func (m *promHistogram) Observe(i int64) { m.h.Observe(float64(i)) }
