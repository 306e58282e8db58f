//go:build no_automation

package automation

import (
	"context"
	"errors"
	"log/slog"

	"neviweb-go-home/internal/coordinator"
)

var (
	ErrScriptNotFound = errors.New("script not found")
	ErrInvalidScript  = errors.New("invalid script")
)

// RunResult is the result of a one-shot script execution.
type RunResult struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Logs     []string `json:"logs"`
	Duration string   `json:"duration"`
}

// Notifier delivers script notifications.
type Notifier interface {
	Send(ctx context.Context, title, message string) error
}

// Manager is a no-op stub when automation is disabled.
type Manager struct{}

// NewManager returns nil manager when automation is disabled.
func NewManager(_ string) (*Manager, error) { return nil, nil }

func (m *Manager) List() ([]*Script, error) { return nil, nil }

func (m *Manager) Get(id string) (*Script, error) { return nil, ErrScriptNotFound }

func (m *Manager) Save(s *Script) (*Script, error) { return s, nil }

func (m *Manager) Delete(_ string) error { return nil }

// Engine is a no-op stub when automation is disabled.
type Engine struct{}

// NewEngine returns a no-op engine when automation is disabled.
func NewEngine(_ *coordinator.Coordinator, _ *Manager, _ Notifier, _ *slog.Logger) *Engine {
	return &Engine{}
}

func (e *Engine) Start() {}

func (e *Engine) Stop() {}

func (e *Engine) Running(_ string) bool { return false }

func (e *Engine) ReloadScript(_ string) error { return nil }

func (e *Engine) StopScript(_ string) {}

func (e *Engine) RunScript(_ string) *RunResult {
	return &RunResult{OK: false, Error: "automation disabled"}
}

func (e *Engine) RunLuaCode(_ string) *RunResult {
	return &RunResult{OK: false, Error: "automation disabled"}
}
