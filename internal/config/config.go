// Package config loads service and CLI configuration with viper.
//
// Precedence, lowest first: built-in defaults, an optional config file,
// OBSAT_* environment variables, bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"

	"github.com/saturnRangs/ObservingSatellites/internal/tle"
	"github.com/saturnRangs/ObservingSatellites/internal/visibility"
)

// EnvPrefix prefixes every environment variable, e.g. OBSAT_OBSERVER_LATITUDE.
const EnvPrefix = "OBSAT"

// Config is the full configuration tree.
type Config struct {
	Observer  ObserverConfig  `mapstructure:"observer"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Ephemeris EphemerisConfig `mapstructure:"ephemeris"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Store     StoreConfig     `mapstructure:"store"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type ObserverConfig struct {
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	AltitudeM float64 `mapstructure:"altitude_m"`
	Timezone  string  `mapstructure:"timezone"` // IANA name used for display
}

type ScheduleConfig struct {
	ResolutionMinutes float64 `mapstructure:"resolution_minutes"`
	HorizonHours      float64 `mapstructure:"horizon_hours"`
	TwilightLowerDeg  float64 `mapstructure:"twilight_lower_deg"`
	TwilightUpperDeg  float64 `mapstructure:"twilight_upper_deg"`
	MinElevationDeg   float64 `mapstructure:"min_elevation_deg"`
	Select            string  `mapstructure:"select"` // name prefix, "all" or empty
	Workers           int     `mapstructure:"workers"`
	MaxPairs          int     `mapstructure:"max_pairs"`    // objects × grid instants per request
	MaxInstants       int     `mapstructure:"max_instants"` // grid instants per request
}

type CatalogConfig struct {
	URL          string        `mapstructure:"url"`
	ExtraURLs    []string      `mapstructure:"extra_urls"`
	CacheDir     string        `mapstructure:"cache_dir"`
	MaxFiles     int           `mapstructure:"max_files"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	Offline      bool          `mapstructure:"offline"`
}

type EphemerisConfig struct {
	DEFile string `mapstructure:"de_file"` // JPL DE binary; empty uses the analytic sun
}

type HTTPConfig struct {
	Addr          string `mapstructure:"addr"`
	TrustProxy    bool   `mapstructure:"trust_proxy"`
	MaxRunsPerIP  int    `mapstructure:"max_runs_per_ip"`
	MaxRunsGlobal int    `mapstructure:"max_runs_global"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Token     string `mapstructure:"token"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type CacheConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

type StoreConfig struct {
	DSN string `mapstructure:"dsn"` // empty disables persistence
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// SetDefaults registers every key with its default so that environment
// variables bind even without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("observer.latitude", 33.64561821100173)
	v.SetDefault("observer.longitude", -117.68649668652029)
	v.SetDefault("observer.altitude_m", 0.0)
	v.SetDefault("observer.timezone", "UTC")

	v.SetDefault("schedule.resolution_minutes", 30.0)
	v.SetDefault("schedule.horizon_hours", 12.0)
	v.SetDefault("schedule.twilight_lower_deg", -27.0)
	v.SetDefault("schedule.twilight_upper_deg", -3.0)
	v.SetDefault("schedule.min_elevation_deg", 5.0)
	v.SetDefault("schedule.select", "all")
	v.SetDefault("schedule.workers", 0)
	v.SetDefault("schedule.max_pairs", 20_000_000)
	v.SetDefault("schedule.max_instants", 50_000)

	v.SetDefault("catalog.url", tle.DefaultSourceURL)
	v.SetDefault("catalog.extra_urls", []string{})
	v.SetDefault("catalog.cache_dir", "data/tle")
	v.SetDefault("catalog.max_files", 5)
	v.SetDefault("catalog.max_age", tle.DefaultMaxAge)
	v.SetDefault("catalog.fetch_timeout", 30*time.Second)
	v.SetDefault("catalog.offline", false)

	v.SetDefault("ephemeris.de_file", "")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.trust_proxy", false)
	v.SetDefault("http.max_runs_per_ip", 2)
	v.SetDefault("http.max_runs_global", 16)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")
	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.max_entries", 256)

	v.SetDefault("store.dsn", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "obsat")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (if non-empty) into v and decodes the result. Flags must be
// bound to v before calling Load.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Observer.Latitude < -90 || c.Observer.Latitude > 90 {
		bad("observer.latitude %v outside [-90, 90]", c.Observer.Latitude)
	}
	if c.Observer.Longitude < -180 || c.Observer.Longitude > 180 {
		bad("observer.longitude %v outside [-180, 180]", c.Observer.Longitude)
	}
	if _, err := time.LoadLocation(c.Observer.Timezone); err != nil {
		bad("observer.timezone %q: %v", c.Observer.Timezone, err)
	}

	s := c.Schedule
	if !(s.ResolutionMinutes > 0) {
		bad("schedule.resolution_minutes must be positive, got %v", s.ResolutionMinutes)
	}
	if !(s.HorizonHours > 0) {
		bad("schedule.horizon_hours must be positive, got %v", s.HorizonHours)
	}
	if s.ResolutionMinutes > s.HorizonHours*60 {
		bad("schedule.resolution_minutes %v exceeds the horizon", s.ResolutionMinutes)
	}
	if err := (visibility.Band{LowerDeg: s.TwilightLowerDeg, UpperDeg: s.TwilightUpperDeg}).Validate(); err != nil {
		bad("schedule twilight band: %v", err)
	}
	if math.IsNaN(s.MinElevationDeg) || s.MinElevationDeg < 0 || s.MinElevationDeg >= 90 {
		bad("schedule.min_elevation_deg %v outside [0, 90)", s.MinElevationDeg)
	}
	if s.Workers < 0 {
		bad("schedule.workers must not be negative")
	}
	if s.MaxPairs <= 0 {
		bad("schedule.max_pairs must be positive")
	}
	if s.MaxInstants <= 0 {
		bad("schedule.max_instants must be positive")
	}

	if !c.Catalog.Offline && c.Catalog.URL == "" {
		bad("catalog.url is required unless catalog.offline is set")
	}
	if c.Catalog.MaxFiles < 1 {
		bad("catalog.max_files must be at least 1")
	}
	if c.Catalog.MaxAge <= 0 {
		bad("catalog.max_age must be positive")
	}

	if c.HTTP.MaxRunsPerIP < 1 || c.HTTP.MaxRunsGlobal < c.HTTP.MaxRunsPerIP {
		bad("http run limits: per-ip %d, global %d", c.HTTP.MaxRunsPerIP, c.HTTP.MaxRunsGlobal)
	}
	if c.Auth.Enabled && c.Auth.Token == "" && c.Auth.JWTSecret == "" {
		bad("auth.enabled requires auth.token or auth.jwt_secret")
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		bad("log.format %q must be json or text", c.Log.Format)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		bad("tracing.sample_ratio %v outside [0, 1]", c.Tracing.SampleRatio)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Request converts the observer and schedule sections into a run request
// starting at the scheduler clock.
func (c *Config) Request() (visibility.Request, error) {
	zone, err := time.LoadLocation(c.Observer.Timezone)
	if err != nil {
		return visibility.Request{}, fmt.Errorf("%w: timezone %q", visibility.ErrInvalidParameter, c.Observer.Timezone)
	}
	return visibility.Request{
		Location: visibility.Location{
			LatDeg: c.Observer.Latitude,
			LonDeg: c.Observer.Longitude,
			AltM:   c.Observer.AltitudeM,
		},
		Resolution:      Minutes(c.Schedule.ResolutionMinutes),
		Horizon:         Hours(c.Schedule.HorizonHours),
		Band:            visibility.Band{LowerDeg: c.Schedule.TwilightLowerDeg, UpperDeg: c.Schedule.TwilightUpperDeg},
		MinElevationDeg: c.Schedule.MinElevationDeg,
		DisplayZone:     zone,
	}, nil
}

// Minutes converts fractional minutes to a Duration.
func Minutes(m float64) time.Duration { return time.Duration(m * float64(time.Minute)) }

// Hours converts fractional hours to a Duration.
func Hours(h float64) time.Duration { return time.Duration(h * float64(time.Hour)) }
