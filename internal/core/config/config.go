package config

import "time"

// Config represents the top-level configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	GRPC      GRPCConfig      `yaml:"grpc"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Observers Observers       `yaml:"observers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// GRPCConfig holds gRPC health surface settings. Port 0 disables it.
type GRPCConfig struct {
	Port int `yaml:"port"`
}

// SchedulerConfig holds the polling loop settings.
type SchedulerConfig struct {
	Interval             time.Duration `yaml:"interval"`
	RunTimeout           time.Duration `yaml:"run_timeout"`
	MaxConsecutiveFaults int           `yaml:"max_consecutive_faults"`
}

// RedisConfig holds the Redis health surface settings. Empty URL disables it.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// DatabaseConfig holds the health-event archive settings. Empty URL disables it.
type DatabaseConfig struct {
	URL           string `yaml:"url"`
	MaxConns      int    `yaml:"max_conns"`
	MinConns      int    `yaml:"min_conns"`
	MigrationsDir string `yaml:"migrations_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Observers groups the per-observer settings sections.
type Observers struct {
	Node        NodeConfig        `yaml:"node"`
	Disk        DiskConfig        `yaml:"disk"`
	Certificate CertificateConfig `yaml:"certificate"`
	Network     NetworkConfig     `yaml:"network"`
	App         AppConfig         `yaml:"app"`
}

// NodeConfig holds settings for the node CPU/memory observer. Threshold
// values outside (0, 100] are treated as "check disabled".
type NodeConfig struct {
	Enabled       bool    `yaml:"enabled"`
	CPUWarning    float64 `yaml:"cpu_warning"`
	CPUError      float64 `yaml:"cpu_error"`
	MemoryWarning float64 `yaml:"memory_warning"`
	MemoryError   float64 `yaml:"memory_error"`
	SampleWindow  int     `yaml:"sample_window"` // ring capacity, 0 = unbounded
}

// DiskConfig holds settings for the disk space observer.
type DiskConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Mounts       []string `yaml:"mounts"`
	SpaceWarning float64  `yaml:"space_warning"`
	SpaceError   float64  `yaml:"space_error"`
}

// CertificateConfig holds settings for the certificate expiry observer.
// Day counts are "raise when days remaining fall to or below this".
type CertificateConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Paths       []string `yaml:"paths"`
	WarningDays float64  `yaml:"warning_days"`
	ErrorDays   float64  `yaml:"error_days"`
}

// NetworkConfig holds settings for the endpoint reachability observer.
type NetworkConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Endpoints        []string      `yaml:"endpoints"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	FailureThreshold int           `yaml:"failure_threshold"`
}

// AppConfig holds settings for the per-application process observer.
// Base thresholds apply to every target unless the overrides side-file
// scopes different values to a named application.
type AppConfig struct {
	Enabled         bool        `yaml:"enabled"`
	Targets         []AppTarget `yaml:"targets"`
	OverridesFile   string      `yaml:"overrides_file"`
	MaxConcurrency  int         `yaml:"max_concurrency"`
	SampleWindow    int         `yaml:"sample_window"`
	CPUWarning      float64     `yaml:"cpu_warning"`
	CPUError        float64     `yaml:"cpu_error"`
	MemoryWarningMB float64     `yaml:"memory_warning_mb"`
	MemoryErrorMB   float64     `yaml:"memory_error_mb"`
}

// AppTarget names one monitored application and the process comm name that
// resolves it.
type AppTarget struct {
	Name    string `yaml:"name"`
	Process string `yaml:"process"`
}
