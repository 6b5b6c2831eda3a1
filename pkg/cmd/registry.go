package cmd

import (
	"log/slog"

	"github.com/leadflow/leadflow/pkg/registry"
)

func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)
	reg.RegisterDefaultNodes()

	return reg
}
