package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOrchestratorConfig(t *testing.T) {
	cfg := DefaultOrchestratorConfig()

	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 50, cfg.DocumentBatchLimit)
	assert.Equal(t, 20, cfg.FileBatchLimit)
	assert.Equal(t, 10*time.Minute, cfg.StuckThreshold)
	assert.Equal(t, 2*time.Minute, cfg.GracefulShutdownTimeout)
	assert.Equal(t, 3, cfg.DefaultMaxRetries)
	require.NoError(t, cfg.Validate())
}

func TestOrchestratorConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*OrchestratorConfig)
		wantErr string
	}{
		{name: "valid defaults"},
		{
			name:    "zero poll interval",
			mutate:  func(c *OrchestratorConfig) { c.PollInterval = 0 },
			wantErr: "poll_interval must be positive",
		},
		{
			name:    "zero document batch limit",
			mutate:  func(c *OrchestratorConfig) { c.DocumentBatchLimit = 0 },
			wantErr: "document_batch_limit must be at least 1",
		},
		{
			name:    "zero file batch limit",
			mutate:  func(c *OrchestratorConfig) { c.FileBatchLimit = 0 },
			wantErr: "file_batch_limit must be at least 1",
		},
		{
			name:    "zero stuck threshold",
			mutate:  func(c *OrchestratorConfig) { c.StuckThreshold = 0 },
			wantErr: "stuck_threshold must be positive",
		},
		{
			name:    "zero graceful shutdown timeout",
			mutate:  func(c *OrchestratorConfig) { c.GracefulShutdownTimeout = 0 },
			wantErr: "graceful_shutdown_timeout must be positive",
		},
		{
			name:    "zero default max retries",
			mutate:  func(c *OrchestratorConfig) { c.DefaultMaxRetries = 0 },
			wantErr: "default_max_retries must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultOrchestratorConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}

	var nilCfg *OrchestratorConfig
	require.Error(t, nilCfg.Validate())
}

func TestDefaultGateConfig(t *testing.T) {
	cfg := DefaultGateConfig()

	assert.Equal(t, 3, cfg.OCRPermits)
	assert.Equal(t, 5, cfg.LLMPermits)
	assert.Equal(t, 2, cfg.FileGenPermits)
	require.NoError(t, cfg.Validate())
}

func TestGateConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GateConfig)
		wantErr string
	}{
		{name: "valid defaults"},
		{
			name:    "zero ocr permits",
			mutate:  func(c *GateConfig) { c.OCRPermits = 0 },
			wantErr: "ocr permits must be at least 1",
		},
		{
			name:    "zero llm permits",
			mutate:  func(c *GateConfig) { c.LLMPermits = 0 },
			wantErr: "llm permits must be at least 1",
		},
		{
			name:    "zero file-gen permits",
			mutate:  func(c *GateConfig) { c.FileGenPermits = 0 },
			wantErr: "file-gen permits must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGateConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDefaultTypeLockConfig(t *testing.T) {
	cfg := DefaultTypeLockConfig()

	assert.Equal(t, 1*time.Second, cfg.PollInterval)
	assert.Equal(t, 300*time.Second, cfg.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestTypeLockConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TypeLockConfig)
		wantErr string
	}{
		{name: "valid defaults"},
		{
			name:    "zero poll interval",
			mutate:  func(c *TypeLockConfig) { c.PollInterval = 0 },
			wantErr: "poll_interval must be positive",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *TypeLockConfig) { c.Timeout = 0 },
			wantErr: "timeout must be positive",
		},
		{
			name: "poll interval equal to timeout",
			mutate: func(c *TypeLockConfig) {
				c.PollInterval = 5 * time.Second
				c.Timeout = 5 * time.Second
			},
			wantErr: "poll_interval must be less than timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultTypeLockConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
