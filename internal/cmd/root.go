// Package cmd provides the command-line interface for sitegraph.
// It handles command parsing, configuration loading, and crawler execution.
package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/masahif/sitegraph/internal/config"
	"github.com/masahif/sitegraph/internal/logging"
	"github.com/masahif/sitegraph/internal/parser"
)

const envPrefix = "SG"

var (
	cfgFile   string
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitegraph [url]",
	Short: "Crawl the web site by site and export the link graph",
	Long: `sitegraph crawls outward from a seed URL, one site at a time.

Every crawled site contributes the set of other sites its front page links to.
The resulting directed graph is written as a Graphviz DOT file when the crawl
runs out of sites or is interrupted.`,
	Args:          cobra.MaximumNArgs(1),
	RunE:          runCrawler,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := config.DefaultConfig()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./sitegraph.yml or "+config.ConfigDir()+"/sitegraph.yml)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("log-format", logging.FormatJSON, "Log format: json or text")
	pf.String("log-file", "", "Also write logs to this file (size rotated)")
	pf.StringP("database", "d", "", "SQLite database the crawl graph is stored in (empty=off)")

	f := rootCmd.Flags()
	f.Bool("show-config", false, "Display current configuration in YAML format and exit")
	f.IntP("threads", "j", defaults.Concurrency, "Number of concurrent workers")
	f.StringP("output", "o", "", "DOT output file (default <seed-site>-graph.dot)")
	f.String("report", "", "Write a Markdown crawl report to this file")
	f.DurationP("timeout", "t", defaults.RequestTimeout, "HTTP request timeout")
	f.Duration("poll-interval", defaults.PollInterval, "How long an idle worker waits before claiming again")
	f.Duration("progress-interval", defaults.ProgressInterval, "Progress log interval (0=off)")
	f.StringP("user-agent", "u", defaults.UserAgent, "HTTP User-Agent header")
	f.String("scheme", defaults.Scheme, "Scheme used to fetch sites: http or https")
	f.String("extractor", defaults.Extractor, "Link extractor: "+kindList())
	f.Int64("max-body-size", defaults.MaxBodySize, "Largest accepted page body in bytes")
	f.Float64P("rate", "r", defaults.MaxRequestsPerSecond, "Crawl-wide request cap per second (0=unlimited)")

	bindFlags(rootCmd)

	rootCmd.AddCommand(exportCmd, crawlsCmd)
}

// bindFlags binds the flags of cmd to their viper keys.
func bindFlags(cmd *cobra.Command) {
	bindings := []struct {
		viperKey string
		flagName string
	}{
		{"concurrency", "threads"},
		{"output_path", "output"},
		{"report_path", "report"},
		{"database_path", "database"},
		{"request_timeout", "timeout"},
		{"poll_interval", "poll-interval"},
		{"progress_interval", "progress-interval"},
		{"user_agent", "user-agent"},
		{"scheme", "scheme"},
		{"extractor", "extractor"},
		{"max_body_size", "max-body-size"},
		{"max_requests_per_second", "rate"},
		{"log_level", "log-level"},
		{"log_format", "log-format"},
		{"log_file", "log-file"},
	}

	for _, bind := range bindings {
		flag := cmd.Flags().Lookup(bind.flagName)
		if flag == nil {
			flag = cmd.PersistentFlags().Lookup(bind.flagName)
		}
		if err := viper.BindPFlag(bind.viperKey, flag); err != nil {
			// Log the error but continue - non-critical for operation
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(config.ConfigDir())
		viper.SetConfigType("yaml")
		viper.SetConfigName(config.AppName)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

func kindList() string {
	kinds := parser.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}

func generateUserAgent() string {
	if version != "" && version != "dev" {
		return fmt.Sprintf("sitegraph/%s", version)
	}
	return config.DefaultConfig().UserAgent
}

// loadConfig merges defaults, config file, environment and flags. The
// positional URL overrides every other seed source.
func loadConfig(cmd *cobra.Command, args []string) (*config.CrawlConfig, error) {
	cfg := config.DefaultConfig()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(args) > 0 {
		cfg.SeedURL = args[0]
	}

	if !cmd.Flags().Changed("user-agent") && cfg.UserAgent == config.DefaultConfig().UserAgent {
		cfg.UserAgent = generateUserAgent()
	}

	return cfg, nil
}

// loggingConfig builds the logging configuration from viper.
func loggingConfig() (logging.Config, error) {
	logCfg := logging.DefaultConfig()

	level, err := logging.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return logCfg, err
	}
	logCfg.Level = level
	if format := viper.GetString("log_format"); format != "" {
		logCfg.Format = format
	}
	logCfg.FilePath = viper.GetString("log_file")

	return logCfg, nil
}

func showCurrentConfig(w io.Writer, cfg *config.CrawlConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Displaying configuration anyway...\n\n")
	}

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Fprintf(w, "# Current sitegraph configuration\n")
	fmt.Fprintf(w, "# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(w, "# Configuration file search paths: ./%s.yml, %s/%s.yml\n", config.AppName, config.ConfigDir(), config.AppName)
	fmt.Fprintf(w, "# Environment variables prefix: %s_\n", envPrefix)
	fmt.Fprintf(w, "# Graph output: %s\n\n", cfg.GraphPath())

	_, err = w.Write(yamlData)
	return err
}
