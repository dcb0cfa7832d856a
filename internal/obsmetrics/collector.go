// Package obsmetrics exposes a device's kbus.Metrics as Prometheus gauges
// and counters, alongside the always-on atomic counters themselves. Two
// layers by design (spec.md's expanded domain stack): the atomic counters
// are free to read on every hot-path operation, while the Prometheus
// collector renders a snapshot only when scraped. Grounded on the
// pack's use of github.com/prometheus/client_golang for service metrics
// (e.g. aistore, linkerd2's control plane), adapted here to a single
// per-device collector rather than a whole registry of subsystems.
package obsmetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	kbus "github.com/kbusd/kbus"
)

// Collector renders one device's kbus.Metrics for a Prometheus scrape.
type Collector struct {
	devID   uint32
	metrics *kbus.Metrics

	messagesSent     *prometheus.Desc
	messagesReceived *prometheus.Desc
	bytesSent        *prometheus.Desc
	bindOps          *prometheus.Desc
	sendErrors       *prometheus.Desc
	sendAgain        *prometheus.Desc
	sendBusy         *prometheus.Desc
	syntheticSent    *prometheus.Desc
	setAsideDepth    *prometheus.Desc
	tragicEvents     *prometheus.Desc
	avgSendLatency   *prometheus.Desc
}

// New builds a Collector for one device's metrics, labeled by device id.
func New(devID uint32, metrics *kbus.Metrics) *Collector {
	constLabels := prometheus.Labels{"device": strconv.FormatUint(uint64(devID), 10)}
	return &Collector{
		devID:   devID,
		metrics: metrics,
		messagesSent: prometheus.NewDesc("kbus_messages_sent_total",
			"Messages successfully committed by the routing engine.", nil, constLabels),
		messagesReceived: prometheus.NewDesc("kbus_messages_received_total",
			"Messages delivered to a reader via NEXT_MSG.", nil, constLabels),
		bytesSent: prometheus.NewDesc("kbus_bytes_sent_total",
			"Payload bytes committed by the routing engine.", nil, constLabels),
		bindOps: prometheus.NewDesc("kbus_bind_ops_total",
			"Bind and unbind attempts.", []string{"op"}, constLabels),
		sendErrors: prometheus.NewDesc("kbus_send_errors_total",
			"Send attempts that failed outright.", nil, constLabels),
		sendAgain: prometheus.NewDesc("kbus_send_again_total",
			"Send attempts that returned EAGAIN under ALL_OR_WAIT.", nil, constLabels),
		sendBusy: prometheus.NewDesc("kbus_send_busy_total",
			"Send attempts that returned Busy.", nil, constLabels),
		syntheticSent: prometheus.NewDesc("kbus_synthetic_messages_total",
			"Core-generated diagnostic messages delivered.", nil, constLabels),
		setAsideDepth: prometheus.NewDesc("kbus_setaside_depth",
			"Current length of the device-wide set-aside list.", nil, constLabels),
		tragicEvents: prometheus.NewDesc("kbus_setaside_tragic_total",
			"Times the set-aside list's is_tragic flag was set.", nil, constLabels),
		avgSendLatency: prometheus.NewDesc("kbus_send_latency_ns_avg",
			"Average routing-engine send latency in nanoseconds.", nil, constLabels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.messagesSent
	ch <- c.messagesReceived
	ch <- c.bytesSent
	ch <- c.bindOps
	ch <- c.sendErrors
	ch <- c.sendAgain
	ch <- c.sendBusy
	ch <- c.syntheticSent
	ch <- c.setAsideDepth
	ch <- c.tragicEvents
	ch <- c.avgSendLatency
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.messagesSent, prometheus.CounterValue, float64(snap.MessagesSent))
	ch <- prometheus.MustNewConstMetric(c.messagesReceived, prometheus.CounterValue, float64(snap.MessagesReceived))
	ch <- prometheus.MustNewConstMetric(c.bytesSent, prometheus.CounterValue, float64(snap.BytesSent))
	ch <- prometheus.MustNewConstMetric(c.bindOps, prometheus.CounterValue, float64(snap.BindOps), "bind")
	ch <- prometheus.MustNewConstMetric(c.bindOps, prometheus.CounterValue, float64(snap.UnbindOps), "unbind")
	ch <- prometheus.MustNewConstMetric(c.sendErrors, prometheus.CounterValue, float64(snap.SendErrors))
	ch <- prometheus.MustNewConstMetric(c.sendAgain, prometheus.CounterValue, float64(snap.SendAgain))
	ch <- prometheus.MustNewConstMetric(c.sendBusy, prometheus.CounterValue, float64(snap.SendBusy))
	ch <- prometheus.MustNewConstMetric(c.syntheticSent, prometheus.CounterValue, float64(snap.SyntheticSent))
	ch <- prometheus.MustNewConstMetric(c.setAsideDepth, prometheus.GaugeValue, float64(snap.SetAsideDepth))
	ch <- prometheus.MustNewConstMetric(c.tragicEvents, prometheus.CounterValue, float64(snap.TragicEvents))
	ch <- prometheus.MustNewConstMetric(c.avgSendLatency, prometheus.GaugeValue, float64(snap.AvgSendLatencyNs))
}
