//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"bedrock/internal/app"
)

// InitializeApp builds App (Config, logger and both jobs) via Wire.
func InitializeApp(envFile app.EnvFile) (*App, error) {
	wire.Build(
		app.ProviderSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil
}
