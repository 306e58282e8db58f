//go:build no_automation

package main

import (
	"log/slog"

	"neviweb-go-home/internal/automation"
	"neviweb-go-home/internal/coordinator"
	"neviweb-go-home/internal/web"
)

type autoStopper struct{}

func (a *autoStopper) Stop() {}

func initAutomation(_ *coordinator.Coordinator, _ automation.Notifier, _ *Config, _ *slog.Logger) (*autoStopper, []web.ServerOption) {
	return &autoStopper{}, nil
}
