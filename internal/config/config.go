package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/flight"
	"github.com/jimger/wizz-aycf-route-finder/pkg/urlutil"
	"gopkg.in/yaml.v3"
)

const (
	DefaultProviderPage = "https://multipass.wizzair.com/w6/subscriptions/spa/private-page/wallets"
	DefaultBridgeURL    = "ws://127.0.0.1:8765/bridge"
)

type Config struct {
	//===============
	//  Search
	//===============
	// Origin searched when none is given; empty falls back to the last searched airport.
	origin string

	//===============
	// Politeness
	//===============
	// Minimum wait before every provider query.
	baseDelay time.Duration
	// Upper bound of the random extra wait added to baseDelay.
	jitter time.Duration
	// Seeds the jitter source; 0 means time-based.
	randomSeed int64
	// A cool-down is taken after every cooldownEvery completed destinations; 0 disables it.
	cooldownEvery int
	cooldown      time.Duration
	// Pause after each destination of an outbound sweep.
	pacing time.Duration
	// Pause between consecutive dates of a return search.
	returnPacing time.Duration
	// Maximum transport-level attempts per query; 1 disables retries.
	maxAttempt             int
	backoffInitialDuration time.Duration
	backoffMultiplier      float64
	backoffMaxDuration     time.Duration

	//===============
	// Returns
	//===============
	returnWindowDays int
	// Shortest layover shown as a viable return.
	minLayover time.Duration

	//===============
	// Cache
	//===============
	cacheDir   string
	sessionTTL time.Duration
	resultsTTL time.Duration

	//===============
	// Provider
	//===============
	timeout   time.Duration
	userAgent string
	// Page the bridge is sent to when the browser is on the wrong surface.
	providerPage string

	//===============
	// Bridge
	//===============
	bridgeURL     string
	bridgeTimeout time.Duration
	// Saved provider page used instead of the live bridge when set.
	snapshotPath string

	//===============
	// Output
	//===============
	logFile   string
	outputDir string
}

// configDTO is the file representation. Durations are Go duration strings ("1500ms").
type configDTO struct {
	Origin                 string  `json:"origin,omitempty" yaml:"origin,omitempty"`
	BaseDelay              string  `json:"baseDelay,omitempty" yaml:"baseDelay,omitempty"`
	Jitter                 string  `json:"jitter,omitempty" yaml:"jitter,omitempty"`
	RandomSeed             int64   `json:"randomSeed,omitempty" yaml:"randomSeed,omitempty"`
	CooldownEvery          *int    `json:"cooldownEvery,omitempty" yaml:"cooldownEvery,omitempty"`
	Cooldown               string  `json:"cooldown,omitempty" yaml:"cooldown,omitempty"`
	Pacing                 string  `json:"pacing,omitempty" yaml:"pacing,omitempty"`
	ReturnPacing           string  `json:"returnPacing,omitempty" yaml:"returnPacing,omitempty"`
	MaxAttempt             int     `json:"maxAttempt,omitempty" yaml:"maxAttempt,omitempty"`
	BackoffInitialDuration string  `json:"backoffInitialDuration,omitempty" yaml:"backoffInitialDuration,omitempty"`
	BackoffMultiplier      float64 `json:"backoffMultiplier,omitempty" yaml:"backoffMultiplier,omitempty"`
	BackoffMaxDuration     string  `json:"backoffMaxDuration,omitempty" yaml:"backoffMaxDuration,omitempty"`
	ReturnWindowDays       int     `json:"returnWindowDays,omitempty" yaml:"returnWindowDays,omitempty"`
	MinLayover             string  `json:"minLayover,omitempty" yaml:"minLayover,omitempty"`
	CacheDir               string  `json:"cacheDir,omitempty" yaml:"cacheDir,omitempty"`
	SessionTTL             string  `json:"sessionTTL,omitempty" yaml:"sessionTTL,omitempty"`
	ResultsTTL             string  `json:"resultsTTL,omitempty" yaml:"resultsTTL,omitempty"`
	Timeout                string  `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	UserAgent              string  `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	ProviderPage           string  `json:"providerPage,omitempty" yaml:"providerPage,omitempty"`
	BridgeURL              string  `json:"bridgeUrl,omitempty" yaml:"bridgeUrl,omitempty"`
	BridgeTimeout          string  `json:"bridgeTimeout,omitempty" yaml:"bridgeTimeout,omitempty"`
	SnapshotPath           string  `json:"snapshotPath,omitempty" yaml:"snapshotPath,omitempty"`
	LogFile                string  `json:"logFile,omitempty" yaml:"logFile,omitempty"`
	OutputDir              string  `json:"outputDir,omitempty" yaml:"outputDir,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	builder := WithDefault(dto.Origin)

	durations := []struct {
		field string
		text  string
		set   func(time.Duration) *Config
	}{
		{"baseDelay", dto.BaseDelay, builder.WithBaseDelay},
		{"jitter", dto.Jitter, builder.WithJitter},
		{"cooldown", dto.Cooldown, builder.WithCooldown},
		{"pacing", dto.Pacing, builder.WithPacing},
		{"returnPacing", dto.ReturnPacing, builder.WithReturnPacing},
		{"backoffInitialDuration", dto.BackoffInitialDuration, builder.WithBackoffInitialDuration},
		{"backoffMaxDuration", dto.BackoffMaxDuration, builder.WithBackoffMaxDuration},
		{"minLayover", dto.MinLayover, builder.WithMinLayover},
		{"sessionTTL", dto.SessionTTL, builder.WithSessionTTL},
		{"resultsTTL", dto.ResultsTTL, builder.WithResultsTTL},
		{"timeout", dto.Timeout, builder.WithTimeout},
		{"bridgeTimeout", dto.BridgeTimeout, builder.WithBridgeTimeout},
	}
	for _, d := range durations {
		if d.text == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.text)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s: %s", ErrConfigParsingFail, d.field, err.Error())
		}
		d.set(parsed)
	}

	// only override if a non-zero value is provided
	if dto.RandomSeed != 0 {
		builder.WithRandomSeed(dto.RandomSeed)
	}
	// cooldownEvery may be 0 on purpose
	if dto.CooldownEvery != nil {
		builder.WithCooldownEvery(*dto.CooldownEvery)
	}
	if dto.MaxAttempt != 0 {
		builder.WithMaxAttempt(dto.MaxAttempt)
	}
	if dto.BackoffMultiplier != 0 {
		builder.WithBackoffMultiplier(dto.BackoffMultiplier)
	}
	if dto.ReturnWindowDays != 0 {
		builder.WithReturnWindowDays(dto.ReturnWindowDays)
	}
	if dto.CacheDir != "" {
		builder.WithCacheDir(dto.CacheDir)
	}
	if dto.UserAgent != "" {
		builder.WithUserAgent(dto.UserAgent)
	}
	if dto.ProviderPage != "" {
		builder.WithProviderPage(dto.ProviderPage)
	}
	if dto.BridgeURL != "" {
		builder.WithBridgeURL(dto.BridgeURL)
	}
	if dto.SnapshotPath != "" {
		builder.WithSnapshotPath(dto.SnapshotPath)
	}
	if dto.LogFile != "" {
		builder.WithLogFile(dto.LogFile)
	}
	if dto.OutputDir != "" {
		builder.WithOutputDir(dto.OutputDir)
	}

	return builder.Build()
}

// WithConfigFile loads a JSON or YAML config, chosen by the file extension.
func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	cfgDTO := configDTO{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(configContent, &cfgDTO)
	default:
		err = json.Unmarshal(configContent, &cfgDTO)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(cfgDTO)
}

// WithDefault creates a Config searching origin (may be empty) with default
// values for every other field.
func WithDefault(origin string) *Config {
	defaultConfig := Config{
		origin:                 origin,
		baseDelay:              time.Second,
		jitter:                 500 * time.Millisecond,
		randomSeed:             0,
		cooldownEvery:          25,
		cooldown:               15 * time.Second,
		pacing:                 200 * time.Millisecond,
		returnPacing:           time.Second,
		maxAttempt:             1,
		backoffInitialDuration: time.Second,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     30 * time.Second,
		returnWindowDays:       4,
		minLayover:             time.Hour,
		cacheDir:               filepath.Join(".route-finder", "cache"),
		sessionTTL:             time.Hour,
		resultsTTL:             8 * time.Hour,
		timeout:                30 * time.Second,
		userAgent:              "route-finder/1.0",
		providerPage:           DefaultProviderPage,
		bridgeURL:              DefaultBridgeURL,
		bridgeTimeout:          10 * time.Second,
		logFile:                filepath.Join(".route-finder", "route-finder.log"),
		outputDir:              "output",
	}
	return &defaultConfig
}

func (c *Config) WithOrigin(origin string) *Config {
	c.origin = origin
	return c
}

func (c *Config) WithBaseDelay(delay time.Duration) *Config {
	c.baseDelay = delay
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithCooldownEvery(every int) *Config {
	c.cooldownEvery = every
	return c
}

func (c *Config) WithCooldown(cooldown time.Duration) *Config {
	c.cooldown = cooldown
	return c
}

func (c *Config) WithPacing(pacing time.Duration) *Config {
	c.pacing = pacing
	return c
}

func (c *Config) WithReturnPacing(pacing time.Duration) *Config {
	c.returnPacing = pacing
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithBackoffInitialDuration(duration time.Duration) *Config {
	c.backoffInitialDuration = duration
	return c
}

func (c *Config) WithBackoffMultiplier(multiplier float64) *Config {
	c.backoffMultiplier = multiplier
	return c
}

func (c *Config) WithBackoffMaxDuration(duration time.Duration) *Config {
	c.backoffMaxDuration = duration
	return c
}

func (c *Config) WithReturnWindowDays(days int) *Config {
	c.returnWindowDays = days
	return c
}

func (c *Config) WithMinLayover(layover time.Duration) *Config {
	c.minLayover = layover
	return c
}

func (c *Config) WithCacheDir(dir string) *Config {
	c.cacheDir = dir
	return c
}

func (c *Config) WithSessionTTL(ttl time.Duration) *Config {
	c.sessionTTL = ttl
	return c
}

func (c *Config) WithResultsTTL(ttl time.Duration) *Config {
	c.resultsTTL = ttl
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithProviderPage(page string) *Config {
	c.providerPage = page
	return c
}

func (c *Config) WithBridgeURL(bridgeURL string) *Config {
	c.bridgeURL = bridgeURL
	return c
}

func (c *Config) WithBridgeTimeout(timeout time.Duration) *Config {
	c.bridgeTimeout = timeout
	return c
}

func (c *Config) WithSnapshotPath(path string) *Config {
	c.snapshotPath = path
	return c
}

func (c *Config) WithLogFile(path string) *Config {
	c.logFile = path
	return c
}

func (c *Config) WithOutputDir(dir string) *Config {
	c.outputDir = dir
	return c
}

func (c *Config) Build() (Config, error) {
	if c.origin != "" {
		code, err := flight.NormalizeCode(c.origin)
		if err != nil {
			return Config{}, fmt.Errorf("%w: origin: %s", ErrInvalidConfig, err.Error())
		}
		c.origin = code
	}

	nonNegative := map[string]time.Duration{
		"baseDelay":    c.baseDelay,
		"jitter":       c.jitter,
		"cooldown":     c.cooldown,
		"pacing":       c.pacing,
		"returnPacing": c.returnPacing,
		"minLayover":   c.minLayover,
	}
	for field, d := range nonNegative {
		if d < 0 {
			return Config{}, fmt.Errorf("%w: %s cannot be negative", ErrInvalidConfig, field)
		}
	}
	if c.timeout <= 0 {
		return Config{}, fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if c.sessionTTL <= 0 || c.resultsTTL <= 0 {
		return Config{}, fmt.Errorf("%w: cache TTLs must be positive", ErrInvalidConfig)
	}
	if c.cooldownEvery < 0 {
		return Config{}, fmt.Errorf("%w: cooldownEvery cannot be negative", ErrInvalidConfig)
	}
	if c.maxAttempt < 1 {
		return Config{}, fmt.Errorf("%w: maxAttempt must be at least 1", ErrInvalidConfig)
	}
	if c.returnWindowDays < 1 {
		return Config{}, fmt.Errorf("%w: returnWindowDays must be at least 1", ErrInvalidConfig)
	}
	if c.backoffMultiplier < 1 {
		return Config{}, fmt.Errorf("%w: backoffMultiplier must be at least 1", ErrInvalidConfig)
	}
	if c.cacheDir == "" {
		return Config{}, fmt.Errorf("%w: cacheDir cannot be empty", ErrInvalidConfig)
	}
	if _, err := urlutil.ParseHTTPURL(c.providerPage); err != nil {
		return Config{}, fmt.Errorf("%w: providerPage: %s", ErrInvalidConfig, err.Error())
	}
	if c.snapshotPath == "" {
		if !strings.HasPrefix(c.bridgeURL, "ws://") && !strings.HasPrefix(c.bridgeURL, "wss://") {
			return Config{}, fmt.Errorf("%w: bridgeUrl must be a ws:// or wss:// URL", ErrInvalidConfig)
		}
	}

	return *c, nil
}

func (c Config) Origin() string {
	return c.origin
}

func (c Config) BaseDelay() time.Duration {
	return c.baseDelay
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) CooldownEvery() int {
	return c.cooldownEvery
}

func (c Config) Cooldown() time.Duration {
	return c.cooldown
}

func (c Config) Pacing() time.Duration {
	return c.pacing
}

func (c Config) ReturnPacing() time.Duration {
	return c.returnPacing
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

func (c Config) ReturnWindowDays() int {
	return c.returnWindowDays
}

func (c Config) MinLayover() time.Duration {
	return c.minLayover
}

func (c Config) CacheDir() string {
	return c.cacheDir
}

func (c Config) SessionTTL() time.Duration {
	return c.sessionTTL
}

func (c Config) ResultsTTL() time.Duration {
	return c.resultsTTL
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) ProviderPage() string {
	return c.providerPage
}

func (c Config) BridgeURL() string {
	return c.bridgeURL
}

func (c Config) BridgeTimeout() time.Duration {
	return c.bridgeTimeout
}

func (c Config) SnapshotPath() string {
	return c.snapshotPath
}

func (c Config) LogFile() string {
	return c.logFile
}

func (c Config) OutputDir() string {
	return c.outputDir
}
