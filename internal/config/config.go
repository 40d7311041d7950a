// Package config loads the JSON configuration document: top-level keys
// matching Policy, ResourceLimits, IsolationConfig, and manager-level
// options, with unknown keys preserved for caller code. Environment
// variables are read first via godotenv.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"sandboxcore/internal/logging"
	"sandboxcore/internal/policy"
)

// PolicyConfig mirrors policy.Policy's constructable fields for JSON
// decoding (the Policy type itself stays immutable and unexported-field,
// so config decodes into this plain struct and the caller turns it into
// policy.Options).
type PolicyConfig struct {
	AllowedPaths       []string `json:"allowed_paths,omitempty"`
	BlockedPaths       []string `json:"blocked_paths,omitempty"`
	BlockedCommands    []string `json:"blocked_commands,omitempty"`
	AllowedCommands    []string `json:"allowed_commands,omitempty"`
	DangerousPatterns  []string `json:"dangerous_command_patterns,omitempty"`
	AllowNetwork       bool     `json:"allow_network"`
	AllowedDomains     []string `json:"allowed_domains,omitempty"`
	BlockedDomains     []string `json:"blocked_domains,omitempty"`
	MaxFileSize        int64    `json:"max_file_size"`
	MaxTotalFiles       int      `json:"max_total_files"`
	MaxCPUPercent       float64  `json:"max_cpu_percent"`
	MaxMemoryMB         int64    `json:"max_memory_mb"`
	MaxDiskMB           int64    `json:"max_disk_mb"`
	MaxProcesses        int      `json:"max_processes"`
	MaxExecutionTimeSec int      `json:"max_execution_time_s"`
}

// IsolationConfig mirrors isolate.IsolationConfig for JSON decoding.
type IsolationConfig struct {
	UseContainer     bool              `json:"use_container"`
	Image            string            `json:"image,omitempty"`
	CPULimit         float64           `json:"cpu_limit"`
	MemoryLimitMB    int64             `json:"memory_limit_mb"`
	DiskLimitMB      int64             `json:"disk_limit_mb"`
	NetworkIsolation bool              `json:"network_isolation"`
	AllowedHosts     []string          `json:"allowed_hosts,omitempty"`
	EnvVars          map[string]string `json:"env_vars,omitempty"`
	MountPoints      map[string]string `json:"mount_points,omitempty"`
}

// ManagerOptions are the Lifecycle Manager / Resource Governor level
// knobs.
type ManagerOptions struct {
	SessionTimeoutSeconds    int `json:"session_timeout_s"`
	MaxConcurrentWorkspaces  int `json:"max_concurrent_workspaces"`
	CacheBudgetBytes         int64 `json:"cache_budget_bytes"`
	MonitoringIntervalSeconds int `json:"monitoring_interval_s"`
	CleanupIntervalSeconds   int `json:"cleanup_interval_s"`
	ManagerRoot              string `json:"manager_root,omitempty"`
	CacheRoot                string `json:"cache_root,omitempty"`
	RedisURL                 string `json:"redis_url,omitempty"`
}

// Document is the full top-level configuration document.
type Document struct {
	Policy    PolicyConfig           `json:"policy"`
	Isolation IsolationConfig        `json:"isolation_config"`
	Manager   ManagerOptions         `json:"manager"`
	Custom    map[string]json.RawMessage `json:"custom_settings,omitempty"`
}

// Default returns a Document with the same defaults as policy.Default()
// and conservative manager options.
func Default() *Document {
	return &Document{
		Manager: ManagerOptions{
			SessionTimeoutSeconds:     30 * 60,
			MaxConcurrentWorkspaces:   10,
			CacheBudgetBytes:          256 * 1024 * 1024,
			MonitoringIntervalSeconds: 30,
			CleanupIntervalSeconds:    300,
			ManagerRoot:               os.TempDir() + "/intelligent_sandbox",
		},
	}
}

// Load reads an optional .env file (for local development) then decodes
// the JSON document at path, overlaying it onto Default().
func Load(path string) (*Document, error) {
	_ = godotenv.Load() // best-effort, absence is not an error

	doc := Default()
	if path == "" {
		return doc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.S().Warnw("config file not found, using defaults", "path", path)
			return doc, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	applyEnvOverrides(doc)
	return doc, nil
}

func applyEnvOverrides(doc *Document) {
	if v := os.Getenv("SANDBOX_REDIS_URL"); v != "" {
		doc.Manager.RedisURL = v
	}
	if v := os.Getenv("SANDBOX_MANAGER_ROOT"); v != "" {
		doc.Manager.ManagerRoot = v
	}
	if v := os.Getenv("SANDBOX_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			doc.Manager.MaxConcurrentWorkspaces = n
		}
	}
}

// ToPolicyOptions converts the decoded document fragment into
// policy.Option values for policy.New. Zero-valued fields fall through
// to policy.Default()'s own defaults rather than overriding them with
// zero.
func (pc PolicyConfig) ToPolicyOptions() []policy.Option {
	var opts []policy.Option
	if len(pc.AllowedPaths) > 0 {
		opts = append(opts, policy.WithAllowedPaths(pc.AllowedPaths...))
	}
	if len(pc.BlockedPaths) > 0 {
		opts = append(opts, policy.WithBlockedPaths(pc.BlockedPaths...))
	}
	if len(pc.BlockedCommands) > 0 {
		opts = append(opts, policy.WithBlockedCommands(pc.BlockedCommands...))
	}
	if len(pc.AllowedCommands) > 0 {
		opts = append(opts, policy.WithAllowedCommands(pc.AllowedCommands...))
	}
	if len(pc.DangerousPatterns) > 0 {
		opts = append(opts, policy.WithDangerousPatterns(pc.DangerousPatterns...))
	}
	if pc.AllowNetwork || len(pc.AllowedDomains) > 0 || len(pc.BlockedDomains) > 0 {
		opts = append(opts, policy.WithNetwork(pc.AllowNetwork, pc.AllowedDomains, pc.BlockedDomains))
	}
	if pc.MaxFileSize > 0 || pc.MaxTotalFiles > 0 || pc.MaxCPUPercent > 0 || pc.MaxMemoryMB > 0 ||
		pc.MaxDiskMB > 0 || pc.MaxProcesses > 0 || pc.MaxExecutionTimeSec > 0 {
		d := policy.Default()
		maxFileSize, maxTotalFiles, maxCPU, maxMem, maxDisk, maxProc, maxExec :=
			d.MaxFileSize(), d.MaxTotalFiles(), d.MaxCPUPercent(), d.MaxMemoryMB(), d.MaxDiskMB(), d.MaxProcesses(), d.MaxExecutionTimeSeconds()
		if pc.MaxFileSize > 0 {
			maxFileSize = pc.MaxFileSize
		}
		if pc.MaxTotalFiles > 0 {
			maxTotalFiles = pc.MaxTotalFiles
		}
		if pc.MaxCPUPercent > 0 {
			maxCPU = pc.MaxCPUPercent
		}
		if pc.MaxMemoryMB > 0 {
			maxMem = pc.MaxMemoryMB
		}
		if pc.MaxDiskMB > 0 {
			maxDisk = pc.MaxDiskMB
		}
		if pc.MaxProcesses > 0 {
			maxProc = pc.MaxProcesses
		}
		if pc.MaxExecutionTimeSec > 0 {
			maxExec = pc.MaxExecutionTimeSec
		}
		opts = append(opts, policy.WithLimits(maxFileSize, maxTotalFiles, maxCPU, maxMem, maxDisk, maxProc, maxExec))
	}
	return opts
}

// SessionTimeout returns the configured session timeout as a Duration.
func (o ManagerOptions) SessionTimeout() time.Duration {
	return time.Duration(o.SessionTimeoutSeconds) * time.Second
}

// MonitoringInterval returns the configured monitor-loop period.
func (o ManagerOptions) MonitoringInterval() time.Duration {
	return time.Duration(o.MonitoringIntervalSeconds) * time.Second
}

// CleanupInterval returns the configured cleanup-loop period.
func (o ManagerOptions) CleanupInterval() time.Duration {
	return time.Duration(o.CleanupIntervalSeconds) * time.Second
}
