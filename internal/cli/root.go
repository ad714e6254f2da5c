package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/config"
	"github.com/spf13/cobra"
)

const programName = "route-finder"

var (
	cfgFile       string
	cacheDir      string
	logFile       string
	verbose       bool
	baseDelay     time.Duration
	jitter        time.Duration
	randomSeed    int64
	pacing        time.Duration
	returnPacing  time.Duration
	cooldown      time.Duration
	cooldownEvery int
	timeout       time.Duration
	maxAttempt    int
	userAgent     string
	bridgeURL     string
	snapshotPath  string
	providerPage  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   programName,
	Short: "Find one-way and return flights on an all-you-can-fly pass.",
	Long: `route-finder walks every destination served from an origin airport on a
given date, one provider query at a time with jittered pauses, and caches what
it finds so repeated searches cost no network calls.

Route metadata, the search endpoint and its headers are taken from the
provider page open in the browser (through the extension relay) or from a
saved copy of that page (--snapshot).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// ExecuteArgs runs the command tree with args and the given output streams.
func ExecuteArgs(args []string, out, errOut io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config-file", "", "config file path, JSON or YAML (e.g., ~/.route-finder.yaml)")
	flags.StringVar(&cacheDir, "cache-dir", "", "directory holding cached sessions and results")
	flags.StringVar(&logFile, "log-file", "", "rotating log file for structured run records")
	flags.BoolVarP(&verbose, "verbose", "v", false, "also write structured run records to stderr")
	flags.DurationVar(&baseDelay, "base-delay", 0, "minimum wait before every provider query")
	flags.DurationVar(&jitter, "jitter", 0, "upper bound of the random wait added to the base delay")
	flags.Int64Var(&randomSeed, "random-seed", 0, "seed for the jitter source (0 for time-based)")
	flags.DurationVar(&pacing, "pacing", 0, "pause after each destination")
	flags.DurationVar(&returnPacing, "return-pacing", 0, "pause between return-date queries")
	flags.DurationVar(&cooldown, "cooldown", 0, "length of the periodic cool-down")
	flags.IntVar(&cooldownEvery, "cooldown-every", 0, "take a cool-down after this many destinations")
	flags.DurationVar(&timeout, "timeout", 0, "timeout for one provider query")
	flags.IntVar(&maxAttempt, "max-attempt", 0, "attempts per query on transport failures (1 disables retries)")
	flags.StringVar(&userAgent, "user-agent", "", "user agent for provider queries")
	flags.StringVar(&bridgeURL, "bridge-url", "", "websocket address of the browser extension relay")
	flags.StringVar(&snapshotPath, "snapshot", "", "saved provider page to read session data from instead of the relay")
	flags.StringVar(&providerPage, "provider-page", "", "provider page the browser is sent to when it is elsewhere")

	rootCmd.AddCommand(searchCmd, returnsCmd, cacheCmd, exportCmd, versionCmd)
}

// InitConfigWithError builds the run configuration. A config file, when given,
// overrides every flag; origin (possibly empty) is applied on top of either.
func InitConfigWithError(origin string) (config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("error initializing config from file: %w", err)
		}
		if origin != "" {
			return cfg.WithOrigin(origin).Build()
		}
		return cfg, nil
	}

	configBuilder := config.WithDefault(origin)

	// Override with CLI flag values where provided
	if cacheDir != "" {
		configBuilder = configBuilder.WithCacheDir(cacheDir)
	}
	if logFile != "" {
		configBuilder = configBuilder.WithLogFile(logFile)
	}
	if baseDelay > 0 {
		configBuilder = configBuilder.WithBaseDelay(baseDelay)
	}
	if jitter > 0 {
		configBuilder = configBuilder.WithJitter(jitter)
	}
	if randomSeed != 0 {
		configBuilder = configBuilder.WithRandomSeed(randomSeed)
	}
	if pacing > 0 {
		configBuilder = configBuilder.WithPacing(pacing)
	}
	if returnPacing > 0 {
		configBuilder = configBuilder.WithReturnPacing(returnPacing)
	}
	if cooldown > 0 {
		configBuilder = configBuilder.WithCooldown(cooldown)
	}
	if cooldownEvery > 0 {
		configBuilder = configBuilder.WithCooldownEvery(cooldownEvery)
	}
	if timeout > 0 {
		configBuilder = configBuilder.WithTimeout(timeout)
	}
	if maxAttempt > 0 {
		configBuilder = configBuilder.WithMaxAttempt(maxAttempt)
	}
	if userAgent != "" {
		configBuilder = configBuilder.WithUserAgent(userAgent)
	}
	if bridgeURL != "" {
		configBuilder = configBuilder.WithBridgeURL(bridgeURL)
	}
	if snapshotPath != "" {
		configBuilder = configBuilder.WithSnapshotPath(snapshotPath)
	}
	if providerPage != "" {
		configBuilder = configBuilder.WithProviderPage(providerPage)
	}

	cfg, err := configBuilder.Build()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func ResetFlags() {
	cfgFile = ""
	cacheDir = ""
	logFile = ""
	verbose = false
	baseDelay = 0
	jitter = 0
	randomSeed = 0
	pacing = 0
	returnPacing = 0
	cooldown = 0
	cooldownEvery = 0
	timeout = 0
	maxAttempt = 0
	userAgent = ""
	bridgeURL = ""
	snapshotPath = ""
	providerPage = ""
	resetCommandFlags()
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetCacheDirForTest(dir string) {
	cacheDir = dir
}

func SetLogFileForTest(path string) {
	logFile = path
}

func SetBaseDelayForTest(delay time.Duration) {
	baseDelay = delay
}

func SetJitterForTest(j time.Duration) {
	jitter = j
}

func SetPacingForTest(p time.Duration) {
	pacing = p
	returnPacing = p
}

func SetSnapshotForTest(path string) {
	snapshotPath = path
}

func SetMaxAttemptForTest(attempts int) {
	maxAttempt = attempts
}
