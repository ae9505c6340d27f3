// Package config loads somd's settings from a YAML file, SOM_* environment variables and
// defaults, in increasing order of precedence: defaults, file, environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/scanomatic/som/coordinator"
	"github.com/scanomatic/som/domain"
	"github.com/scanomatic/som/host"
	"github.com/scanomatic/som/jobs"
	"github.com/scanomatic/som/worker"
)

const EnvPrefix = "SOM"

// Worker kinds. A job type with no worker configured is driven by an external worker through
// the HTTP worker endpoints.
const (
	WorkerCommand  = "command"
	WorkerSimulate = "simulate"
)

type ScannerConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

type WorkerConfig struct {
	Type string `mapstructure:"type"`
	// command
	Command []string          `mapstructure:"command"`
	Env     map[string]string `mapstructure:"env"`
	Grace   time.Duration     `mapstructure:"grace"`
	// simulate
	Duration time.Duration `mapstructure:"duration"`
	Step     time.Duration `mapstructure:"step"`
}

type HostConfig struct {
	MemoryMinimumPercent float64       `mapstructure:"memory_minimum_percent"`
	CPUTotalPercentFree  float64       `mapstructure:"cpu_total_percent_free"`
	CPUFreeCount         int           `mapstructure:"cpu_free_count"`
	ChecksPassNeeded     int           `mapstructure:"checks_pass_needed"`
	Interval             time.Duration `mapstructure:"interval"`
	GateAdmission        bool          `mapstructure:"gate_admission"`
}

type Config struct {
	Addr        string        `mapstructure:"addr"`
	MaxConns    int           `mapstructure:"max_conns"`
	LogLevel    string        `mapstructure:"log_level"`
	LogJSON     bool          `mapstructure:"log_json"`
	TickRate    time.Duration `mapstructure:"tick_rate"`
	HistorySize int           `mapstructure:"history_size"`

	// Explicit scanners win over NumberOfScanners.
	Scanners         []ScannerConfig `mapstructure:"scanners"`
	NumberOfScanners int             `mapstructure:"number_of_scanners"`

	// Empty disables the journal.
	JournalPath string `mapstructure:"journal_path"`
	LogDir      string `mapstructure:"log_dir"`

	Workers map[string]WorkerConfig `mapstructure:"workers"`
	Host    HostConfig              `mapstructure:"host"`
}

func setDefaults(v *viper.Viper) {
	th := host.DefaultThresholds()
	v.SetDefault("addr", "localhost:9091")
	v.SetDefault("max_conns", 64)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("tick_rate", coordinator.DefaultTickRate)
	v.SetDefault("history_size", jobs.DefaultHistorySize)
	v.SetDefault("number_of_scanners", 3)
	v.SetDefault("journal_path", "")
	v.SetDefault("log_dir", filepath.Join(os.TempDir(), "som", "logs"))
	v.SetDefault("host.memory_minimum_percent", th.MemoryMinimumPercent)
	v.SetDefault("host.cpu_total_percent_free", th.CPUTotalPercentFree)
	v.SetDefault("host.cpu_free_count", th.CPUFreeCount)
	v.SetDefault("host.checks_pass_needed", th.ChecksPassNeeded)
	v.SetDefault("host.interval", host.DefaultInterval)
	v.SetDefault("host.gate_admission", false)
}

// Load reads path, or som.yaml from the working directory or /etc/som when path is empty.
// A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("som")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/som")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"file": v.ConfigFileUsed(), "addr": cfg.Addr}).Info("config loaded")
	return &cfg, nil
}

func (c *Config) Validate() error {
	seen := map[string]bool{}
	for _, s := range c.Scanners {
		if s.ID == "" {
			return errors.New("scanner with empty id")
		}
		if seen[s.ID] {
			return errors.Errorf("duplicate scanner id %q", s.ID)
		}
		seen[s.ID] = true
	}
	if len(c.Scanners) == 0 && c.NumberOfScanners < 0 {
		return errors.Errorf("number_of_scanners must not be negative, got %d", c.NumberOfScanners)
	}
	for name, w := range c.Workers {
		if _, err := domain.ParseJobType(name); err != nil {
			return errors.Wrapf(err, "workers.%s", name)
		}
		switch w.Type {
		case WorkerCommand:
			if len(w.Command) == 0 {
				return errors.Errorf("workers.%s: command worker needs a command", name)
			}
		case WorkerSimulate:
		default:
			return errors.Errorf("workers.%s: unknown worker type %q", name, w.Type)
		}
	}
	return nil
}

// Resources are the configured scanners, or NumberOfScanners generated ones.
func (c *Config) Resources() []domain.Resource {
	var out []domain.Resource
	if len(c.Scanners) > 0 {
		for _, s := range c.Scanners {
			name := s.Name
			if name == "" {
				name = s.ID
			}
			out = append(out, domain.Resource{ID: s.ID, Name: name})
		}
		return out
	}
	for i := 1; i <= c.NumberOfScanners; i++ {
		out = append(out, domain.Resource{ID: fmt.Sprint(i), Name: fmt.Sprintf("Scanner %d", i)})
	}
	return out
}

func (c *Config) Thresholds() host.Thresholds {
	return host.Thresholds{
		MemoryMinimumPercent: c.Host.MemoryMinimumPercent,
		CPUTotalPercentFree:  c.Host.CPUTotalPercentFree,
		CPUFreeCount:         c.Host.CPUFreeCount,
		ChecksPassNeeded:     c.Host.ChecksPassNeeded,
	}
}

// BuildWorkers turns the workers section into in-process workers by job type.
func (c *Config) BuildWorkers() (map[domain.JobType]worker.Worker, error) {
	out := map[domain.JobType]worker.Worker{}
	for name, wc := range c.Workers {
		t, err := domain.ParseJobType(name)
		if err != nil {
			return nil, errors.Wrapf(err, "workers.%s", name)
		}
		w, err := wc.Create(c.LogDir)
		if err != nil {
			return nil, errors.Wrapf(err, "workers.%s", name)
		}
		out[t] = w
	}
	return out, nil
}

func (wc WorkerConfig) Create(logDir string) (worker.Worker, error) {
	switch wc.Type {
	case WorkerCommand:
		if len(wc.Command) == 0 {
			return nil, errors.New("command worker needs a command")
		}
		var env []string
		for k, v := range wc.Env {
			env = append(env, strings.ToUpper(k)+"="+os.ExpandEnv(v))
		}
		return worker.Command{Argv: wc.Command, LogDir: logDir, Grace: wc.Grace, Env: env}, nil
	case WorkerSimulate:
		return worker.Simulated{Duration: wc.Duration, Step: wc.Step}, nil
	}
	return nil, errors.Errorf("unknown worker type %q", wc.Type)
}

// LoadDotEnv loads the first .env found walking up from dir, at most five levels. Variables
// already set in the environment are kept. It returns the file loaded, if any.
func LoadDotEnv(dir string) (string, error) {
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath, errors.Wrapf(godotenv.Load(envPath), "loading %s", envPath)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}
