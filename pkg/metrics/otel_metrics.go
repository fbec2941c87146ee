package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics OpenTelemetry 指标集合
type OTelMetrics struct {
	// 签到相关指标
	CheckInAcceptedTotal  metric.Int64Counter
	CheckInDuplicateTotal metric.Int64Counter
	CheckInRejectedTotal  metric.Int64Counter
	CheckInSubmitDuration metric.Float64Histogram
	OfflineQueueDepth     metric.Int64UpDownCounter
	QueueDrainedTotal     metric.Int64Counter
}

var (
	metrics *OTelMetrics
	meter   = otel.Meter("eventgate")
)

// InitMetrics 初始化 OpenTelemetry 指标
func InitMetrics() error {
	var err error

	metrics = &OTelMetrics{}

	metrics.CheckInAcceptedTotal, err = meter.Int64Counter(
		"checkin_accepted_total",
		metric.WithDescription("Total number of accepted check-ins"),
		metric.WithUnit("{checkin}"),
	)
	if err != nil {
		return err
	}

	metrics.CheckInDuplicateTotal, err = meter.Int64Counter(
		"checkin_duplicate_total",
		metric.WithDescription("Total number of already-checked-in outcomes"),
		metric.WithUnit("{checkin}"),
	)
	if err != nil {
		return err
	}

	metrics.CheckInRejectedTotal, err = meter.Int64Counter(
		"checkin_rejected_total",
		metric.WithDescription("Total number of not-found or ineligible outcomes"),
		metric.WithUnit("{checkin}"),
	)
	if err != nil {
		return err
	}

	metrics.CheckInSubmitDuration, err = meter.Float64Histogram(
		"checkin_submit_duration_seconds",
		metric.WithDescription("Time spent processing a check-in attempt"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	metrics.OfflineQueueDepth, err = meter.Int64UpDownCounter(
		"offline_queue_depth",
		metric.WithDescription("Number of pending entries in the offline sync queue"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	metrics.QueueDrainedTotal, err = meter.Int64Counter(
		"offline_queue_drained_total",
		metric.WithDescription("Total number of offline queue entries replayed"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// GetMetrics 获取全局指标实例，未初始化时为 nil，调用方需判空
func GetMetrics() *OTelMetrics {
	return metrics
}

// RecordOutcome 按结果类型记录一次签到提交
func (m *OTelMetrics) RecordOutcome(ctx context.Context, status, method, deviceID string, duration float64) {
	if m == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("device_id", deviceID),
	}
	opt := metric.WithAttributes(attrs...)

	switch status {
	case "accepted":
		m.CheckInAcceptedTotal.Add(ctx, 1, opt)
	case "already_checked_in":
		m.CheckInDuplicateTotal.Add(ctx, 1, opt)
	default:
		m.CheckInRejectedTotal.Add(ctx, 1, metric.WithAttributes(
			append(attrs, attribute.String("status", status))...,
		))
	}

	m.CheckInSubmitDuration.Record(ctx, duration, opt)
}

// RecordQueueDepth 记录离线队列深度变化
func (m *OTelMetrics) RecordQueueDepth(ctx context.Context, delta int64, deviceID string) {
	if m == nil {
		return
	}
	m.OfflineQueueDepth.Add(ctx, delta, metric.WithAttributes(
		attribute.String("device_id", deviceID),
	))
}

// RecordDrained 记录一次离线条目回放
func (m *OTelMetrics) RecordDrained(ctx context.Context, deviceID string) {
	if m == nil {
		return
	}
	m.QueueDrainedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("device_id", deviceID),
	))
}
