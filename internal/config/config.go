// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Device    DeviceConfig    `mapstructure:"device"`
	IBox      IBoxConfig      `mapstructure:"ibox"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Portal    PortalConfig    `mapstructure:"portal"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	App       AppConfig       `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	TelemetryPeriod time.Duration `mapstructure:"telemetry_period"`
}

// DatabaseConfig represents the optional session store
type DatabaseConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	DBName           string        `mapstructure:"dbname"`
	SSLMode          string        `mapstructure:"sslmode"`
	MaxOpenConns     int           `mapstructure:"max_open_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	MaxLifetime      time.Duration `mapstructure:"max_lifetime"`
	AutoMigrate      bool          `mapstructure:"auto_migrate"`
	SessionRetention time.Duration `mapstructure:"session_retention"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
	MemoryLimit      int           `mapstructure:"memory_limit"`
}

// SecurityConfig represents HTTP access configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// DeviceConfig represents the primary tool device
type DeviceConfig struct {
	PortName        string           `mapstructure:"port_name"`
	Transport       string           `mapstructure:"transport"`
	Scale           float64          `mapstructure:"scale"`
	ForceScale      float64          `mapstructure:"force_scale"`
	MaxOpeningAngle float64          `mapstructure:"max_opening_angle"`
	DeadBandPWM     [4]int           `mapstructure:"dead_band_pwm"`
	Serial          SerialPortConfig `mapstructure:"serial"`
}

// IBoxConfig represents the auxiliary handle controller
type IBoxConfig struct {
	Enabled   bool             `mapstructure:"enabled"`
	PortName  string           `mapstructure:"port_name"`
	Transport string           `mapstructure:"transport"`
	LoopGainP float64          `mapstructure:"loop_gain_p"`
	LoopGainD float64          `mapstructure:"loop_gain_d"`
	Serial    SerialPortConfig `mapstructure:"serial"`
}

// SerialPortConfig represents serial port configuration
type SerialPortConfig struct {
	BaudRate     int           `mapstructure:"baud_rate"`
	DataBits     int           `mapstructure:"data_bits"`
	StopBits     int           `mapstructure:"stop_bits"`
	Parity       string        `mapstructure:"parity"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`
	MaxPollCount int           `mapstructure:"max_poll_count"`
}

// LoopConfig represents the haptic control loop
type LoopConfig struct {
	PollPeriod        time.Duration `mapstructure:"poll_period"`
	CopyPeriod        time.Duration `mapstructure:"copy_period"`
	Pacing            string        `mapstructure:"pacing"`
	LockOSThread      bool          `mapstructure:"lock_os_thread"`
	FrequencyLogEvery int           `mapstructure:"frequency_log_every"`
	StatusDumpEvery   int           `mapstructure:"status_dump_every"`
	JawArmLength      float64       `mapstructure:"jaw_arm_length"`
	JawOffsetAngle    float64       `mapstructure:"jaw_offset_angle"`
	HandleForceGain   float64       `mapstructure:"handle_force_gain"`
	ForceTimeout      time.Duration `mapstructure:"force_timeout"`
	AutoStart         bool          `mapstructure:"auto_start"`
}

// PortalConfig represents the portal procedure description
type PortalConfig struct {
	ConfigFile string `mapstructure:"config_file"`
}

// DiscoveryConfig represents serial port discovery
type DiscoveryConfig struct {
	Probe        bool          `mapstructure:"probe"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables.
// A missing config file is not an error: defaults and environment apply.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "../../internal/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Environment variable support
	v.SetEnvPrefix("HAPTIC_SERVICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8090")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.telemetry_period", "20ms")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "haptic_service")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_lifetime", "5m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.session_retention", "720h")
	v.SetDefault("database.cleanup_interval", "1h")
	v.SetDefault("database.memory_limit", 1000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Primary device defaults
	v.SetDefault("device.port_name", "//./COM3")
	v.SetDefault("device.transport", "serial")
	v.SetDefault("device.scale", 1.0)
	v.SetDefault("device.force_scale", 1.0)
	v.SetDefault("device.max_opening_angle", 60.0)
	v.SetDefault("device.dead_band_pwm", []int{100, 0, 0, 0})
	setSerialDefaults(v, "device.serial")

	// IBox defaults
	v.SetDefault("ibox.enabled", false)
	v.SetDefault("ibox.port_name", "//./COM5")
	v.SetDefault("ibox.transport", "serial")
	v.SetDefault("ibox.loop_gain_p", 2.5)
	v.SetDefault("ibox.loop_gain_d", 0.0)
	setSerialDefaults(v, "ibox.serial")

	// Loop defaults
	v.SetDefault("loop.poll_period", "1ms")
	v.SetDefault("loop.copy_period", "500us")
	v.SetDefault("loop.pacing", "busy")
	v.SetDefault("loop.lock_os_thread", true)
	v.SetDefault("loop.frequency_log_every", 1000)
	v.SetDefault("loop.status_dump_every", 30000)
	v.SetDefault("loop.jaw_arm_length", 25.0)
	v.SetDefault("loop.jaw_offset_angle", 0.38)
	v.SetDefault("loop.handle_force_gain", 3.0)
	v.SetDefault("loop.force_timeout", "100ms")
	v.SetDefault("loop.auto_start", true)

	v.SetDefault("portal.config_file", "")
	v.SetDefault("discovery.probe", false)
	v.SetDefault("discovery.probe_timeout", "5s")
	v.SetDefault("security.allowed_origins", []string{"http://localhost:3000"})

	// App defaults
	v.SetDefault("app.name", "haptic-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.debug", false)
}

func setSerialDefaults(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+".baud_rate", 9600)
	v.SetDefault(prefix+".data_bits", 8)
	v.SetDefault(prefix+".stop_bits", 1)
	v.SetDefault(prefix+".parity", "none")
	v.SetDefault(prefix+".read_timeout", "1ms")
	v.SetDefault(prefix+".settle_delay", "2s")
	v.SetDefault(prefix+".max_poll_count", 10000)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Device.PortName == "" && config.Device.Transport == "serial" {
		return fmt.Errorf("device.port_name is required")
	}
	if config.IBox.Enabled && config.IBox.PortName == "" && config.IBox.Transport == "serial" {
		return fmt.Errorf("ibox.port_name is required when ibox is enabled")
	}

	validTransports := []string{"serial", "emulated"}
	if !contains(validTransports, config.Device.Transport) {
		return fmt.Errorf("device.transport must be one of: %v", validTransports)
	}
	if config.IBox.Enabled && !contains(validTransports, config.IBox.Transport) {
		return fmt.Errorf("ibox.transport must be one of: %v", validTransports)
	}

	if config.Loop.PollPeriod <= 0 || config.Loop.CopyPeriod <= 0 {
		return fmt.Errorf("loop periods must be positive")
	}
	validPacing := []string{"busy", "sleep"}
	if !contains(validPacing, config.Loop.Pacing) {
		return fmt.Errorf("loop.pacing must be one of: %v", validPacing)
	}
	if config.Loop.FrequencyLogEvery <= 0 || config.Loop.StatusDumpEvery <= 0 {
		return fmt.Errorf("loop log cadences must be positive")
	}
	if config.Database.CleanupInterval <= 0 {
		return fmt.Errorf("database.cleanup_interval must be positive")
	}
	if config.Device.Serial.MaxPollCount <= 0 {
		return fmt.Errorf("device.serial.max_poll_count must be positive")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	if !contains(validEnvs, config.App.Environment) {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// DSN returns the lib/pq connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return c.Database.DSN()
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
