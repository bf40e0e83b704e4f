// Package config loads and validates a project's on-disk YAML
// configuration (spec.md §6 "Configuration options"). It follows the
// teacher's pkg/obsidian/targets.go idiom: a typed struct with yaml tags,
// a Load function that reads the file and unmarshals with
// gopkg.in/yaml.v3, and free validation functions returning plain errors
// rather than a validator library (the teacher never reaches for one).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/collabcore/collabcore/internal/scheduler"
	"gopkg.in/yaml.v3"
)

// Project is the typed form of a project's configuration file.
type Project struct {
	Name            string  `yaml:"name"`
	BaseDir         string  `yaml:"base_dir"`
	CodeDir         string  `yaml:"code_dir"`
	BackupDir       string  `yaml:"backup_dir"`
	ExecDir         string  `yaml:"exec_dir"`
	TmpDir          string  `yaml:"tmp_dir"`
	CycleTimeMicros int64   `yaml:"cycle_time"`
	BufferCritical  float64 `yaml:"buffer_critical"`
	BufferSecondary float64 `yaml:"buffer_secondary"`
	BufferAuxiliary float64 `yaml:"buffer_auxiliary"`
}

// Load reads and parses a project config file from path.
func Load(path string) (*Project, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	var p Project
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	if err := Validate(&p); err != nil {
		return nil, fmt.Errorf("config: %q: %w", path, err)
	}
	return &p, nil
}

// Validate enforces spec.md §6's constraints: non-empty name and
// directory roles, a positive cycle time, and band percentages summing to
// at most 100. Unparseable numbers or unusable directories are fatal at
// boot per spec.md §7; Validate is what the caller turns into that fatal
// disposition.
func Validate(p *Project) error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	for _, dir := range []struct {
		name, value string
	}{
		{"base_dir", p.BaseDir},
		{"code_dir", p.CodeDir},
		{"backup_dir", p.BackupDir},
		{"exec_dir", p.ExecDir},
		{"tmp_dir", p.TmpDir},
	} {
		if strings.TrimSpace(dir.value) == "" {
			return fmt.Errorf("%s is required", dir.name)
		}
	}
	if p.CycleTimeMicros <= 0 {
		return errors.New("cycle_time must be positive")
	}
	if p.BufferCritical < 0 || p.BufferSecondary < 0 || p.BufferAuxiliary < 0 {
		return errors.New("buffer percentages must be non-negative")
	}
	if sum := p.BufferCritical + p.BufferSecondary + p.BufferAuxiliary; sum > 100 {
		return fmt.Errorf("buffer percentages sum to %.2f, must not exceed 100", sum)
	}
	return nil
}

// SchedulerConfig converts the validated percentages and cycle time into a
// scheduler.Config.
func (p *Project) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		CycleTime:       time.Duration(p.CycleTimeMicros) * time.Microsecond,
		BufferCritical:  p.BufferCritical,
		BufferSecondary: p.BufferSecondary,
		BufferAuxiliary: p.BufferAuxiliary,
	}
}
