package screeningservice

import (
	"log/slog"

	httpadapter "baton/contexts/media-safety/screening-service/adapters/http"
	"baton/contexts/media-safety/screening-service/adapters/memory"
	"baton/contexts/media-safety/screening-service/application"
	"baton/contexts/media-safety/screening-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Service application.Service
	Fake    *memory.Store
}

type Dependencies struct {
	Classifier    ports.Classifier
	MaxMediaBytes int64
	AllowedTypes  []string
	Logger        *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Classifier:    deps.Classifier,
		MaxMediaBytes: deps.MaxMediaBytes,
		AllowedTypes:  deps.AllowedTypes,
		Logger:        deps.Logger,
	}
	return Module{
		Service: service,
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Classifier: store,
		Logger:     logger,
	})
	module.Fake = store
	return module
}
