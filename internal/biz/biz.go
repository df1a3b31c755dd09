package biz

import (
	"github.com/rs/zerolog"

	"github.com/botdeck/botdeck/internal/biz/repo"
	"github.com/botdeck/botdeck/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Registry *usecase.Registry
	Stats    *usecase.StatsUsecase
	Activity *usecase.ActivityUsecase
}

// NewUsecases wires the usecases over a store
func NewUsecases(store *repo.Store, notifier repo.Notifier, logger zerolog.Logger) *Usecases {
	return &Usecases{
		Registry: usecase.NewRegistry(store.Commands, logger),
		Stats:    usecase.NewStatsUsecase(store),
		Activity: usecase.NewActivityUsecase(store.Logs, notifier, logger),
	}
}
