package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockCloudWatch struct {
	mock.Mock
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*cloudwatch.PutMetricDataOutput)
	return out, args.Error(1)
}

func TestCollector(t *testing.T) {
	c := NewCollector("memories")
	ctx := context.Background()

	c.RecordOperation(ctx, "create", "success", 20*time.Millisecond)
	c.RecordOperation(ctx, "create", "DUPLICATE_KEY", time.Millisecond)
	c.RecordObjects(ctx, "uploaded", 3)
	c.RecordHTTPRequest("GET", "/api/memories", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `memories_memory_operations_total{operation="create",outcome="success"} 1`)
	assert.Contains(t, body, `memories_memory_operations_total{operation="create",outcome="DUPLICATE_KEY"} 1`)
	assert.Contains(t, body, `memories_storage_objects_total{action="uploaded"} 3`)
	assert.Contains(t, body, `memories_http_requests_total{method="GET",route="/api/memories",status="200"} 1`)
}

func TestCollector_SeparateRegistries(t *testing.T) {
	// Two collectors must not panic on duplicate registration
	require.NotPanics(t, func() {
		NewCollector("a")
		NewCollector("a")
	})
}

func TestCloudWatchMetrics(t *testing.T) {
	t.Run("publishes operation metrics", func(t *testing.T) {
		cw := new(mockCloudWatch)
		cw.On("PutMetricData", mock.Anything, mock.MatchedBy(func(in *cloudwatch.PutMetricDataInput) bool {
			return aws.ToString(in.Namespace) == "Memories" &&
				len(in.MetricData) == 2 &&
				aws.ToString(in.MetricData[0].MetricName) == "OperationLatency"
		})).Return(&cloudwatch.PutMetricDataOutput{}, nil).Once()

		NewCloudWatchMetrics("Memories", cw, zap.NewNop()).
			RecordOperation(context.Background(), "delete", "success", time.Second)

		cw.AssertExpectations(t)
	})

	t.Run("swallows publish errors", func(t *testing.T) {
		cw := new(mockCloudWatch)
		cw.On("PutMetricData", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		assert.NotPanics(t, func() {
			NewCloudWatchMetrics("Memories", cw, zap.NewNop()).
				RecordObjects(context.Background(), "deleted", 2)
		})
	})
}

func TestTracer_DisabledOrWithoutSegment(t *testing.T) {
	called := 0
	fn := func(context.Context) error { called++; return nil }

	assert.NoError(t, NewTracer("memories", false).TraceFunction(context.Background(), "op", fn))
	assert.NoError(t, NewTracer("memories", true).TraceFunction(context.Background(), "op", fn))

	var nilTracer *Tracer
	assert.NoError(t, nilTracer.TraceFunction(context.Background(), "op", fn))
	assert.Equal(t, 3, called)
}
