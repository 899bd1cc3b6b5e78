package capture

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sofiworker/mpcap/logging"
)

const meterName = "github.com/sofiworker/mpcap/capture"

func defaultMeter() metric.Meter {
	return otel.Meter(meterName)
}

// metrics 持有追踪相关的计数器。创建失败只降级，不影响抓包。
type metrics struct {
	packets  metric.Int64Counter
	bytes    metric.Int64Counter
	sessions metric.Int64UpDownCounter
}

func newMetrics(meter metric.Meter, log *logging.Logger) *metrics {
	m := &metrics{}
	var err error

	m.packets, err = meter.Int64Counter("mpcap.packets.captured",
		metric.WithDescription("Packets stored into trace files"))
	if err != nil {
		log.Warnf("capture: create packet counter: %v", err)
	}
	m.bytes, err = meter.Int64Counter("mpcap.bytes.captured",
		metric.WithDescription("Original packet bytes seen by enabled tracers"),
		metric.WithUnit("By"))
	if err != nil {
		log.Warnf("capture: create byte counter: %v", err)
	}
	m.sessions, err = meter.Int64UpDownCounter("mpcap.sessions.active",
		metric.WithDescription("Trace sessions currently open"))
	if err != nil {
		log.Warnf("capture: create session counter: %v", err)
	}
	return m
}

func (m *metrics) packetCaptured(iface string, origBytes int) {
	attrs := metric.WithAttributes(attribute.String("interface", iface))
	if m.packets != nil {
		m.packets.Add(context.Background(), 1, attrs)
	}
	if m.bytes != nil {
		m.bytes.Add(context.Background(), int64(origBytes), attrs)
	}
}

func (m *metrics) sessionOpened(iface string) {
	if m.sessions != nil {
		m.sessions.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("interface", iface)))
	}
}

func (m *metrics) sessionClosed(iface string) {
	if m.sessions != nil {
		m.sessions.Add(context.Background(), -1,
			metric.WithAttributes(attribute.String("interface", iface)))
	}
}
