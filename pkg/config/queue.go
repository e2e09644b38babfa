package config

import (
	"fmt"
	"time"
)

// OrchestratorConfig controls the polling orchestrator's tick behavior:
// how many launchable rows it claims per tick, how stale a progressing row
// must be before the stuck-row sweep acts on it, and how long shutdown may
// take to drain in-flight flows.
type OrchestratorConfig struct {
	// PollInterval is the tick period between orchestrator sweeps.
	PollInterval time.Duration

	// DocumentBatchLimit caps how many pending documents are launched per tick.
	DocumentBatchLimit int

	// FileBatchLimit caps how many pending/outdated files are launched per tick.
	FileBatchLimit int

	// StuckThreshold is how long a document/file may sit in a progressing
	// status with a stale updated_at before the stuck-row sweep reclaims it.
	StuckThreshold time.Duration

	// GracefulShutdownTimeout bounds how long Stop waits for in-flight flows
	// to finish; after it elapses Stop logs and returns without cancelling
	// the flows still running.
	GracefulShutdownTimeout time.Duration

	// DefaultMaxRetries is checked by Validate but is not read anywhere
	// else: document rows take max_retries from CreateDocument's argument
	// and file rows from the schema default (3).
	DefaultMaxRetries int
}

// DefaultOrchestratorConfig returns the built-in orchestrator defaults.
func DefaultOrchestratorConfig() *OrchestratorConfig {
	return &OrchestratorConfig{
		PollInterval:            10 * time.Second,
		DocumentBatchLimit:      50,
		FileBatchLimit:          20,
		StuckThreshold:          10 * time.Minute,
		GracefulShutdownTimeout: 2 * time.Minute,
		DefaultMaxRetries:       3,
	}
}

// Validate checks the orchestrator configuration for internal consistency.
func (c *OrchestratorConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("orchestrator configuration is nil")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.DocumentBatchLimit < 1 {
		return fmt.Errorf("document_batch_limit must be at least 1")
	}
	if c.FileBatchLimit < 1 {
		return fmt.Errorf("file_batch_limit must be at least 1")
	}
	if c.StuckThreshold <= 0 {
		return fmt.Errorf("stuck_threshold must be positive")
	}
	if c.GracefulShutdownTimeout <= 0 {
		return fmt.Errorf("graceful_shutdown_timeout must be positive")
	}
	if c.DefaultMaxRetries < 1 {
		return fmt.Errorf("default_max_retries must be at least 1")
	}
	return nil
}

// GateConfig sets the named Concurrency Gate's permit counts.
type GateConfig struct {
	OCRPermits     int
	LLMPermits     int
	FileGenPermits int
}

// DefaultGateConfig returns the built-in gate defaults (ocr=3, llm=5, file-gen=2).
func DefaultGateConfig() *GateConfig {
	return &GateConfig{
		OCRPermits:     3,
		LLMPermits:     5,
		FileGenPermits: 2,
	}
}

// Validate checks that every named gate has at least one permit.
func (c *GateConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("gate configuration is nil")
	}
	if c.OCRPermits < 1 {
		return fmt.Errorf("ocr permits must be at least 1")
	}
	if c.LLMPermits < 1 {
		return fmt.Errorf("llm permits must be at least 1")
	}
	if c.FileGenPermits < 1 {
		return fmt.Errorf("file-gen permits must be at least 1")
	}
	return nil
}

// TypeLockConfig controls the per-document-type serializer's poll-retry loop.
type TypeLockConfig struct {
	// PollInterval is how often a waiting caller retries the advisory lock.
	PollInterval time.Duration

	// Timeout is the maximum time a caller waits before failing with LockTimeout.
	Timeout time.Duration
}

// DefaultTypeLockConfig returns the built-in per-type lock defaults.
func DefaultTypeLockConfig() *TypeLockConfig {
	return &TypeLockConfig{
		PollInterval: 1 * time.Second,
		Timeout:      300 * time.Second,
	}
}

// Validate checks the per-type lock configuration for internal consistency.
func (c *TypeLockConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("type lock configuration is nil")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.PollInterval >= c.Timeout {
		return fmt.Errorf("poll_interval must be less than timeout")
	}
	return nil
}
