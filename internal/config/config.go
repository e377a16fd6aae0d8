// Package config holds the kernel's configuration, loadable from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorkloadThread declares one thread of a scripted workload.
type WorkloadThread struct {
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"` // smaller value runs first under the priority policy
	Burst    int    `yaml:"burst"`    // CPU burst in ticks
	Sleep    int64  `yaml:"sleep"`    // optional: ticks to sleep before the burst
	Pages    int    `yaml:"pages"`    // optional: >0 gives the thread its own address space
}

// KernelConfig configures the simulated kernel.
type KernelConfig struct {
	Policy    string `yaml:"policy"`     // fifo, sjf, priority
	Frames    int    `yaml:"frames"`     // physical frames
	PageSize  int    `yaml:"page_size"`  // bytes per page/frame
	SwapSlots int    `yaml:"swap_slots"` // backing-store slots
	SwapPath  string `yaml:"swap_path"`  // SQLite path, ":memory:" for testing

	MonitorAddr string `yaml:"monitor_addr"` // diagnostic HTTP listen address, empty disables

	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json

	Workload []WorkloadThread `yaml:"workload"`
}

// DefaultKernelConfig returns sensible defaults.
func DefaultKernelConfig() KernelConfig {
	return KernelConfig{
		Policy:      "fifo",
		Frames:      32,
		PageSize:    128,
		SwapSlots:   64,
		SwapPath:    ":memory:",
		MonitorAddr: ":8080",
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Load reads a YAML config file, filling unset fields with defaults.
func Load(path string) (KernelConfig, error) {
	cfg := DefaultKernelConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the geometry. Zero swap slots is allowed: eviction of
// dirty pages then fails with a resource error, which is a legitimate
// configuration for eviction experiments.
func (c KernelConfig) Validate() error {
	if c.Frames <= 0 {
		return fmt.Errorf("frames must be positive (got %d)", c.Frames)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page_size must be positive (got %d)", c.PageSize)
	}
	if c.SwapSlots < 0 {
		return fmt.Errorf("swap_slots must not be negative (got %d)", c.SwapSlots)
	}
	for i, w := range c.Workload {
		if w.Name == "" {
			return fmt.Errorf("workload[%d]: name is required", i)
		}
		if w.Burst < 0 || w.Sleep < 0 || w.Pages < 0 {
			return fmt.Errorf("workload[%d] (%s): burst, sleep, and pages must not be negative", i, w.Name)
		}
	}
	return nil
}
