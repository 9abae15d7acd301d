package main

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/OraMead/notehub-back/internal/config"
	"github.com/OraMead/notehub-back/internal/db"
	"github.com/OraMead/notehub-back/internal/service"
	"github.com/OraMead/notehub-back/internal/store"
	"github.com/OraMead/notehub-back/internal/transport"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.NewConfig,
			NewLogger,
			db.NewGormClient,
			store.NewNoteStore,
			service.New,
			transport.NewHTTPServer,
		),
		fx.Invoke(func(server *transport.HTTPServer) {}),
	)

	app.Run()
}

func NewLogger() (*zap.SugaredLogger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
