//go:build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/gowvp/dayflow/internal/conf"
	"github.com/gowvp/dayflow/internal/data"
	"github.com/gowvp/dayflow/internal/web/api"
)

func wireApp(bc *conf.Bootstrap) (*App, func(), error) {
	panic(wire.Build(data.ProviderSet, api.ProviderSet, wire.Struct(new(App), "*")))
}
