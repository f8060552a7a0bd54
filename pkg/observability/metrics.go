package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metric backends
const (
	BackendPrometheus = "prometheus"
	BackendCloudWatch = "cloudwatch"
	BackendNone       = "none"
)

// NoopMetrics discards every measurement
type NoopMetrics struct{}

// NewNoopMetrics returns metrics that record nothing
func NewNoopMetrics() NoopMetrics { return NoopMetrics{} }

func (NoopMetrics) RecordOperation(context.Context, string, string, time.Duration) {}
func (NoopMetrics) RecordObjects(context.Context, string, int)                     {}

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Business metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Objects           *prometheus.CounterVec
}

// NewCollector creates a new metrics collector with the given namespace on
// its own registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "memory_operations_total",
				Help:      "Total number of memory operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "memory_operation_duration_seconds",
				Help:      "Memory operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		Objects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_objects_total",
				Help:      "Objects uploaded, deleted, compensated or orphaned",
			},
			[]string{"action"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Operations,
		c.OperationDuration,
		c.Objects,
	)

	return c
}

// Registry returns the registry backing this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordOperation records one memory operation
func (c *Collector) RecordOperation(_ context.Context, operation, outcome string, duration time.Duration) {
	c.Operations.WithLabelValues(operation, outcome).Inc()
	c.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordObjects counts storage objects by action
func (c *Collector) RecordObjects(_ context.Context, action string, count int) {
	c.Objects.WithLabelValues(action).Add(float64(count))
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// CloudWatchAPI is the subset of the CloudWatch client used for metrics
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchMetrics publishes metrics with PutMetricData
type CloudWatchMetrics struct {
	namespace string
	client    CloudWatchAPI
	logger    *zap.Logger
}

// NewCloudWatchMetrics creates a new CloudWatch metrics instance
func NewCloudWatchMetrics(namespace string, client CloudWatchAPI, logger *zap.Logger) *CloudWatchMetrics {
	return &CloudWatchMetrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
	}
}

// RecordOperation records one memory operation
func (m *CloudWatchMetrics) RecordOperation(ctx context.Context, operation, outcome string, duration time.Duration) {
	dims := []types.Dimension{
		{Name: aws.String("Operation"), Value: aws.String(operation)},
		{Name: aws.String("Outcome"), Value: aws.String(outcome)},
	}
	now := aws.Time(time.Now())

	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("OperationLatency"),
			Dimensions: dims,
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  now,
		},
		{
			MetricName: aws.String("OperationCount"),
			Dimensions: dims,
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Timestamp:  now,
		},
	})
}

// RecordObjects counts storage objects by action
func (m *CloudWatchMetrics) RecordObjects(ctx context.Context, action string, count int) {
	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("StorageObjects"),
			Dimensions: []types.Dimension{
				{Name: aws.String("Action"), Value: aws.String(action)},
			},
			Value:     aws.Float64(float64(count)),
			Unit:      types.StandardUnitCount,
			Timestamp: aws.Time(time.Now()),
		},
	})
}

func (m *CloudWatchMetrics) put(ctx context.Context, data []types.MetricDatum) {
	if m.client == nil {
		return
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}

	// Metrics never fail the operation they describe
	if _, err := m.client.PutMetricData(context.WithoutCancel(ctx), input); err != nil {
		m.logger.Warn("Failed to send metrics", zap.Error(err))
	}
}
