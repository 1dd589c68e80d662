package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/luciancaetano/ecochat/internal/app"
	"github.com/luciancaetano/ecochat/internal/config"
	"github.com/luciancaetano/ecochat/internal/logging"
)

// serveFlags override the environment when set.
type serveFlags struct {
	host       string
	port       int
	routesFile string
	logLevel   string
	logFormat  string
	origins    []string
}

var serveFlagVals serveFlags

var rootCmd = &cobra.Command{
	Use:           "ecochat",
	Short:         "Protocol-routed chat server",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve HTTP and websocket connections (default)",
	Long: `Serve HTTP and websocket connections on one port.

Every connection is classified by protocol: plain HTTP requests go to the
HTTP application, websocket upgrades go to the websocket URL patterns.
Runs in the foreground until SIGINT or SIGTERM.`,
	Example: `  # Built-in websocket patterns on :3001
  ecochat serve

  # Custom patterns and JSON logs
  ecochat serve --routes routes.yaml --log-format json`,
	RunE: runServe,
}

func init() {
	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		addServeFlags(cmd)
	}
	rootCmd.AddCommand(serveCmd)
}

func addServeFlags(cmd *cobra.Command) {
	f := &serveFlagVals
	cmd.Flags().StringVar(&f.host, "host", "", "Bind address (ECOCHAT_LISTEN)")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "Port, 0 lets the OS pick (ECOCHAT_PORT)")
	cmd.Flags().StringVarP(&f.routesFile, "routes", "r", "", "Websocket routes file (ECOCHAT_ROUTES_FILE)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error (ECOCHAT_LOG_LEVEL)")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "", "Log format: text, json (ECOCHAT_LOG_FORMAT)")
	cmd.Flags().StringSliceVar(&f.origins, "origins", nil, "Allowed origins (ECOCHAT_ALLOWED_ORIGINS)")
}

// loadConfig reads the environment, then applies the flags that were set.
func loadConfig(cmd *cobra.Command) (*config.C, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	f := serveFlagVals
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Listen = f.host
	}
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("routes") {
		cfg.RoutesFile = f.routesFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if flags.Changed("origins") {
		cfg.AllowedOrigins = f.origins
	}
	return cfg, cfg.Validate()
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
	}).With("app", cfg.AppName)

	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Run(ctx)
}
