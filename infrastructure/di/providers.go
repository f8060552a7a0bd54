package di

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kondrei/TalkieMartin-BE/application/ports"
	"github.com/kondrei/TalkieMartin-BE/application/services"
	domainconfig "github.com/kondrei/TalkieMartin-BE/domain/config"
	"github.com/kondrei/TalkieMartin-BE/domain/core/validators"
	"github.com/kondrei/TalkieMartin-BE/infrastructure/cache"
	"github.com/kondrei/TalkieMartin-BE/infrastructure/config"
	"github.com/kondrei/TalkieMartin-BE/infrastructure/messaging/eventbridge"
	"github.com/kondrei/TalkieMartin-BE/infrastructure/persistence/dynamodb"
	"github.com/kondrei/TalkieMartin-BE/infrastructure/storage/s3"
	"github.com/kondrei/TalkieMartin-BE/interfaces/http/rest"
	"github.com/kondrei/TalkieMartin-BE/pkg/observability"
)

const serviceName = "talkiemartin-memories"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zcfg.Build()
}

// ProvideAWSConfig creates AWS configuration. With tracing enabled every
// AWS call is recorded as an X-Ray subsegment.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if cfg.EnableTracing {
		awsv2.AWSV2Instrumentor(&awsCfg.APIOptions)
	}
	return awsCfg, nil
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideS3Client creates an S3 client. A custom endpoint switches to path
// style addressing for S3 compatible local stacks.
func ProvideS3Client(awsCfg aws.Config, cfg *config.Config) *awss3.Client {
	return awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(serviceName, cfg.EnableTracing)
}

// ProvideMemoryRepository creates the DynamoDB memory repository
func ProvideMemoryRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.MemoryRepository {
	return dynamodb.NewMemoryRepository(
		client,
		cfg.DynamoDBTable,
		cfg.IndexName, // GSI1 for creation ordered listing
		logger,
	)
}

// ProvideURLCache creates the presigned URL cache
func ProvideURLCache() (*cache.RistrettoCache, func(), error) {
	c, err := cache.NewRistrettoCache(cache.DefaultConfig())
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

// ProvideObjectStore creates the S3 object store, optionally guarded by a
// circuit breaker and fronted by the URL cache
func ProvideObjectStore(
	client *awss3.Client,
	urlCache *cache.RistrettoCache,
	tracer *observability.Tracer,
	cfg *config.Config,
	logger *zap.Logger,
) ports.ObjectStore {
	base := s3.NewObjectStore(
		client,
		awss3.NewPresignClient(client),
		s3.Options{URLTTL: cfg.DownloadURLTTL},
		tracer,
		logger,
	)

	var store ports.ObjectStore = base
	if cfg.CircuitBreakerEnabled {
		store = s3.NewBreakerStore(store, s3.DefaultBreakerConfig("s3"), logger)
	}
	if cfg.URLCacheEnabled {
		store = s3.NewCachedURLStore(store, urlCache, base.URLTTL(), logger)
	}
	return store
}

// ProvideEventPublisher creates an event publisher. Without an event bus
// events are only logged.
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return eventbridge.NewLogPublisher(logger)
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideCollector creates the Prometheus collector, nil for other backends
func ProvideCollector(cfg *config.Config) *observability.Collector {
	if cfg.MetricsBackend != observability.BackendPrometheus {
		return nil
	}
	return observability.NewCollector("memories")
}

// ProvideMetrics selects the metrics backend
func ProvideMetrics(
	cfg *config.Config,
	collector *observability.Collector,
	client *awscloudwatch.Client,
	logger *zap.Logger,
) ports.Metrics {
	switch cfg.MetricsBackend {
	case observability.BackendPrometheus:
		return collector
	case observability.BackendCloudWatch:
		namespace := fmt.Sprintf("%s/%s", cfg.MetricsNamespace, cfg.Environment)
		return observability.NewCloudWatchMetrics(namespace, client, logger)
	default:
		return observability.NewNoopMetrics()
	}
}

// ProvideMemoryValidator creates the validator with the domain limits
func ProvideMemoryValidator() *validators.MemoryValidator {
	return validators.NewMemoryValidator(domainconfig.DefaultDomainConfig())
}

// ProvideMemoryService creates the coordinator
func ProvideMemoryService(
	repo ports.MemoryRepository,
	store ports.ObjectStore,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	validator *validators.MemoryValidator,
	cfg *config.Config,
	logger *zap.Logger,
) *services.MemoryService {
	return services.NewMemoryService(
		repo,
		store,
		publisher,
		metrics,
		validator,
		services.Options{Bucket: cfg.BucketName},
		logger,
	)
}

// ProvideHTTPHandler creates the HTTP router
func ProvideHTTPHandler(
	service *services.MemoryService,
	repo ports.MemoryRepository,
	collector *observability.Collector,
	cfg *config.Config,
	logger *zap.Logger,
) http.Handler {
	ready := func(ctx context.Context) error {
		_, err := repo.Find(ctx, 0, 1)
		return err
	}

	return rest.NewRouter(service, collector, ready, rest.Options{
		EnableCORS:     cfg.EnableCORS,
		AllowedOrigins: cfg.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		WriteRateLimit: cfg.WriteRateLimit,
		Debug:          cfg.IsDevelopment(),
	}, logger).Setup()
}
