// Package cli implements the plotatlas command tree.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/turtacn/PlotAtlas/internal/bootstrap"
	"github.com/turtacn/PlotAtlas/internal/config"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/PlotAtlas/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/PlotAtlas/pkg/client"
	"github.com/turtacn/PlotAtlas/pkg/errors"
)

const defaultServer = "http://localhost:8080"

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	LogLevel     string
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
	ServerAddr   string
}

// CLIContext carries initialised dependencies through the command tree.
type CLIContext struct {
	Config       *config.Config
	Logger       logging.Logger
	Client       *client.Client
	OutputFormat string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration

	deps *Dependencies
}

// Dependencies are the constructors commands use for local backends.  Tests
// replace them.
type Dependencies struct {
	Build       func(ctx context.Context, cfg *config.Config, logger logging.Logger) (*bootstrap.Components, error)
	NewProducer func(cfg config.KafkaConfig, logger logging.Logger) (kafka.Publisher, error)
}

// DefaultDependencies connects to the configured backends.
func DefaultDependencies() *Dependencies {
	return &Dependencies{
		Build: bootstrap.Build,
		NewProducer: func(cfg config.KafkaConfig, logger logging.Logger) (kafka.Publisher, error) {
			return kafka.NewProducer(kafka.ProducerConfigFromConfig(cfg), logger)
		},
	}
}

// NewRootCommand builds the command tree over the default dependencies.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(DefaultDependencies())
}

// NewRootCommandWith builds the command tree over deps.
func NewRootCommandWith(deps *Dependencies) *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "plotatlas",
		Short: "PlotAtlas CLI for the industrial plot map",
		Long: "plotatlas inspects the city clusters and plots served by a PlotAtlas API server,\n" +
			"renders and publishes marker sprites, publishes listing change events and\n" +
			"manages the listing database.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", config.Version, config.GitCommit, config.BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts, deps)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./plotatlas.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "table", "output format (text, json, table)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "global operation timeout")
	pf.StringVar(&opts.ServerAddr, "server", "", "API server address (default: "+defaultServer+")")

	cmd.AddCommand(
		newClustersCmd(),
		newCitiesCmd(),
		newPlotsCmd(),
		newPropertyCmd(),
		newSpritesCmd(),
		newEventsCmd(),
		newListingsCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions, deps *Dependencies) error {
	switch strings.ToLower(opts.OutputFormat) {
	case "json", "table", "text":
	default:
		return errors.InvalidParam("unsupported output format").WithDetail(opts.OutputFormat)
	}
	if opts.NoColor {
		color.NoColor = true
	}

	cfg, err := initConfig(opts)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigurationMissing, "config initialization failed")
	}

	logger, err := initLogger(opts)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "logger initialization failed")
	}

	apiClient, err := initClient(cfg, opts)
	if err != nil {
		logger.Warn("API client initialization failed, remote commands will not work", logging.Err(err))
	}

	cliCtx := &CLIContext{
		Config:       cfg,
		Logger:       logger,
		Client:       apiClient,
		OutputFormat: strings.ToLower(opts.OutputFormat),
		Verbose:      opts.Verbose,
		NoColor:      opts.NoColor,
		Timeout:      opts.Timeout,
		deps:         deps,
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	cmd.SetContext(context.WithValue(parent, cliContextKey{}, cliCtx))
	return nil
}

// initConfig loads --config, else the first file found on the search path,
// else environment variables and defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		return config.LoadFromFile(opts.ConfigPath)
	}

	searchPaths := []string{"./plotatlas.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".plotatlas", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/plotatlas/config.yaml")

	for _, p := range searchPaths {
		if _, statErr := os.Stat(p); statErr == nil {
			return config.LoadFromFile(p)
		}
	}
	return config.LoadFromEnv()
}

// initLogger writes console output to stderr so stdout stays parseable.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level := logging.LevelInfo
	switch strings.ToLower(opts.LogLevel) {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	if opts.Verbose {
		level = logging.LevelDebug
	}

	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

func initClient(cfg *config.Config, opts *RootOptions) (*client.Client, error) {
	addr := opts.ServerAddr
	if addr == "" && cfg.Server.HTTP.Port > 0 {
		host := cfg.Server.HTTP.Host
		if host == "" || host == "0.0.0.0" {
			host = "localhost"
		}
		addr = fmt.Sprintf("http://%s:%d", host, cfg.Server.HTTP.Port)
	}
	if addr == "" {
		addr = defaultServer
	}
	return client.NewClient(addr,
		client.WithTimeout(opts.Timeout),
		client.WithUserAgent("plotatlas-cli/"+config.Version),
	)
}

// GetCLIContext extracts the CLIContext stored by the root command.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.InvalidState("command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.InvalidState("CLIContext not found in command context")
	}
	return cliCtx, nil
}

// remote returns the API client or an error when none could be built.
func (c *CLIContext) remote() (*client.Client, error) {
	if c.Client == nil {
		return nil, errors.New(errors.ErrCodeConfigurationMissing, "API client is not configured; pass --server")
	}
	return c.Client, nil
}

// operation bounds ctx by --timeout.
func (c *CLIContext) operation(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.Timeout)
}

// components builds the local backends; callers must Close the result.
func (c *CLIContext) components(ctx context.Context) (*bootstrap.Components, error) {
	return c.deps.Build(ctx, c.Config, c.Logger)
}

// Execute runs the CLI and reports the error on stderr.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// Tabular is implemented by results that render as a table.
type Tabular interface {
	TableHeaders() []string
	TableRows() [][]string
}

// PrintResult writes data in the format selected by --output.
func PrintResult(cmd *cobra.Command, data interface{}) error {
	format := "json"
	if cliCtx, err := GetCLIContext(cmd); err == nil {
		format = cliCtx.OutputFormat
	}

	switch format {
	case "json":
		return printJSON(cmd, data)
	case "table":
		if t, ok := data.(Tabular); ok {
			fmt.Fprint(cmd.OutOrStdout(), FormatTable(t.TableHeaders(), t.TableRows()))
			return nil
		}
		return printText(cmd, data)
	default:
		return printText(cmd, data)
	}
}

func printJSON(cmd *cobra.Command, data interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printText(cmd *cobra.Command, data interface{}) error {
	out := cmd.OutOrStdout()
	switch v := data.(type) {
	case string:
		fmt.Fprintln(out, v)
	case fmt.Stringer:
		fmt.Fprintln(out, v.String())
	case Tabular:
		for _, row := range v.TableRows() {
			fmt.Fprintln(out, strings.Join(row, "\t"))
		}
	default:
		fmt.Fprintf(out, "%+v\n", v)
	}
	return nil
}

// PrintError writes err to stderr, with the request id when the server sent
// one.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.RequestID != "" {
		msg += " (request " + apiErr.RequestID + ")"
	}
	fmt.Fprintln(cmd.ErrOrStderr(), color.RedString("Error:"), msg)
}

// PrintSuccess writes msg to stdout.
func PrintSuccess(cmd *cobra.Command, msg string) {
	fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("OK:"), msg)
}

// PrintWarning writes msg to stderr.
func PrintWarning(cmd *cobra.Command, msg string) {
	fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("Warning:"), msg)
}

// FormatTable renders headers and rows with tablewriter.
func FormatTable(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	for _, row := range rows {
		padded := make([]string, len(headers))
		copy(padded, row)
		table.Append(padded)
	}
	table.Render()
	return buf.String()
}

//Personal.AI order the ending
