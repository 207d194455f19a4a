package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/batonkit/baton/pkg/models"
)

// GoalFile is the YAML description of a goal accepted by run -f and
// plan -f.
type GoalFile struct {
	// Goal is the goal text to submit.
	Goal string `yaml:"goal"`
	// Mode is the autonomy mode: manual, hybrid, or autonomous.
	Mode string `yaml:"mode"`
	// Context carries extra key/value inputs passed to every capability.
	Context map[string]any `yaml:"context"`
	// Constraints override the configured execution defaults.
	Constraints GoalFileConstraints `yaml:"constraints"`
}

// GoalFileConstraints mirrors models.Constraints with YAML-friendly
// duration strings.
type GoalFileConstraints struct {
	MaxRetries       int     `yaml:"max_retries"`
	TaskTimeout      string  `yaml:"task_timeout"`
	QualityThreshold float64 `yaml:"quality_threshold"`
}

// LoadGoalFile reads and validates a goal YAML file.
func LoadGoalFile(path string) (*GoalFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read goal file: %w", err)
	}

	var gf GoalFile
	if err := yaml.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("parse goal file %s: %w", path, err)
	}
	if gf.Goal == "" {
		return nil, fmt.Errorf("goal file %s has no goal text", path)
	}
	if gf.Mode != "" {
		if _, err := models.ParseMode(gf.Mode); err != nil {
			return nil, fmt.Errorf("goal file %s: %w", path, err)
		}
	}
	if gf.Constraints.TaskTimeout != "" {
		if _, err := time.ParseDuration(gf.Constraints.TaskTimeout); err != nil {
			return nil, fmt.Errorf("goal file %s: invalid task_timeout: %w", path, err)
		}
	}
	return &gf, nil
}

// ApplyTo overlays the goal file's mode and constraints onto defaults.
func (gf *GoalFile) ApplyTo(mode models.Mode, constraints models.Constraints) (models.Mode, models.Constraints) {
	if gf.Mode != "" {
		if parsed, err := models.ParseMode(gf.Mode); err == nil {
			mode = parsed
		}
	}
	if gf.Constraints.MaxRetries > 0 {
		constraints.MaxRetries = gf.Constraints.MaxRetries
	}
	if gf.Constraints.TaskTimeout != "" {
		if d, err := time.ParseDuration(gf.Constraints.TaskTimeout); err == nil {
			constraints.TaskTimeout = d
		}
	}
	if gf.Constraints.QualityThreshold > 0 {
		constraints.QualityThreshold = gf.Constraints.QualityThreshold
	}
	return mode, constraints
}
