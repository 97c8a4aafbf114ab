package app

import (
	"errors"
	"fmt"
)

// Config holds everything a run needs.
type Config struct {
	InputPath  string // assembly description (.hcl)
	OutputPath string

	Parallelism         int
	Resilient           bool
	Verbose             bool
	MapFile             bool
	DependencyLogPath   string
	TracePath           string // spans as JSON lines
	InstrumentedModules []string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int

	Neo4jURI  string
	Neo4jUser string
	Neo4jPass string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.InputPath == "" {
		return nil, errors.New("InputPath is a required configuration field and cannot be empty")
	}
	if cfg.OutputPath == "" {
		return nil, errors.New("OutputPath is a required configuration field and cannot be empty")
	}
	if cfg.Parallelism < 1 {
		return nil, fmt.Errorf("parallelism must be at least 1, got %d", cfg.Parallelism)
	}
	if cfg.Neo4jURI != "" && cfg.Neo4jPass == "" {
		return nil, errors.New("a neo4j password is required when a neo4j URI is set")
	}
	return &cfg, nil
}
