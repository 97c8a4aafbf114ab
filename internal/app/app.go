package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/specialistvlad/aotgraph/internal/compilation"
)

// App encapsulates one run: its configuration, logger and the compilation
// once it exists.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	ctx        context.Context
	httpServer *http.Server

	mu          sync.Mutex
	compilation *compilation.Compilation
}

// NewApp returns an App with its own logger writing to outW.
func NewApp(outW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")
	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		ctx:    context.Background(),
	}
}

func (a *App) setCompilation(c *compilation.Compilation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.compilation = c
}

// Compilation returns the current compilation, or nil before one is built.
func (a *App) Compilation() *compilation.Compilation {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.compilation
}
