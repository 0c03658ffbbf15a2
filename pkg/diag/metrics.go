package diag

import (
	"fmt"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"dxmsg/pkg/message"
)

const (
	metricsNamespace = "dxmsg"
	metricsSubsystem = "bus"
)

var categories = []message.Category{
	message.CategoryUntargeted,
	message.CategoryTargeted,
	message.CategoryBroadcast,
}

// Metrics holds the Prometheus counters of one bus. Counters are resolved per
// category up front so recording never touches a label map.
type Metrics struct {
	emissions     *prometheus.CounterVec
	vetoes        *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	subscriptions prometheus.Gauge

	emitted   [4]prometheus.Counter
	vetoed    [4]prometheus.Counter
	delivered [4]prometheus.Counter
}

// NewMetrics creates the bus metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer, busName string) (*Metrics, error) {
	labels := prometheus.Labels{"bus": busName}
	m := &Metrics{
		emissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "emissions_total",
			ConstLabels: labels,
			Help:        "Total number of emitted messages",
		}, []string{"category"}),
		vetoes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "vetoes_total",
			ConstLabels: labels,
			Help:        "Total number of emissions vetoed by an interceptor",
		}, []string{"category"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "deliveries_total",
			ConstLabels: labels,
			Help:        "Total number of bus-level handler invocations",
		}, []string{"category"}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Subsystem:   metricsSubsystem,
			Name:        "subscriptions",
			ConstLabels: labels,
			Help:        "Current number of bus-level subscriptions",
		}),
	}

	for _, c := range []prometheus.Collector{m.emissions, m.vetoes, m.deliveries, m.subscriptions} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register bus metrics: %w", err)
		}
	}

	for _, category := range categories {
		name := category.String()
		m.emitted[category] = m.emissions.WithLabelValues(name)
		m.vetoed[category] = m.vetoes.WithLabelValues(name)
		m.delivered[category] = m.deliveries.WithLabelValues(name)
	}

	return m, nil
}

// RecordEmission counts one emission.
func (m *Metrics) RecordEmission(category message.Category) {
	if c := m.emitted[category]; c != nil {
		c.Inc()
	}
}

// RecordVeto counts one vetoed emission.
func (m *Metrics) RecordVeto(category message.Category) {
	if c := m.vetoed[category]; c != nil {
		c.Inc()
	}
}

// RecordDeliveries adds n bus-level invocations.
func (m *Metrics) RecordDeliveries(category message.Category, n int) {
	if c := m.delivered[category]; c != nil && n > 0 {
		c.Add(float64(n))
	}
}

// SubscriptionAdded bumps the subscription gauge.
func (m *Metrics) SubscriptionAdded() { m.subscriptions.Inc() }

// SubscriptionRemoved lowers the subscription gauge.
func (m *Metrics) SubscriptionRemoved() { m.subscriptions.Dec() }

// Sample is one flattened metric value.
type Sample struct {
	Name   string
	Labels string
	Value  float64
}

// Summary gathers every dxmsg family from g and flattens it into samples
// sorted by name then labels.
func Summary(g prometheus.Gatherer) ([]Sample, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	var out []Sample
	for _, family := range families {
		if !strings.HasPrefix(family.GetName(), metricsNamespace+"_") {
			continue
		}
		for _, metric := range family.GetMetric() {
			out = append(out, Sample{
				Name:   family.GetName(),
				Labels: formatLabels(metric.GetLabel()),
				Value:  metricValue(family.GetType(), metric),
			})
		}
	}

	slices.SortFunc(out, func(a, b Sample) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Labels, b.Labels)
	})
	return out, nil
}

func formatLabels(pairs []*dto.LabelPair) string {
	parts := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		parts = append(parts, pair.GetName()+"="+pair.GetValue())
	}
	return strings.Join(parts, ",")
}

func metricValue(kind dto.MetricType, metric *dto.Metric) float64 {
	switch kind {
	case dto.MetricType_COUNTER:
		return metric.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return metric.GetGauge().GetValue()
	default:
		return metric.GetUntyped().GetValue()
	}
}
