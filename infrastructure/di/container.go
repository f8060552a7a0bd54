package di

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/kondrei/TalkieMartin-BE/application/ports"
	"github.com/kondrei/TalkieMartin-BE/application/services"
	"github.com/kondrei/TalkieMartin-BE/infrastructure/config"
	"github.com/kondrei/TalkieMartin-BE/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	Tracer        *observability.Tracer
	MemoryRepo    ports.MemoryRepository
	ObjectStore   ports.ObjectStore
	Publisher     ports.EventPublisher
	Metrics       ports.Metrics
	MemoryService *services.MemoryService
	HTTPHandler   http.Handler
}
