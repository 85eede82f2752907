package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/acocosum/traffic-protocol/internal/config"
	"github.com/acocosum/traffic-protocol/internal/controller"
	"github.com/acocosum/traffic-protocol/internal/logging"
)

var (
	port      int
	adminCode uint32
	deviceID  uint16
	logLevel  int
	logFile   string
	redisURL  string
	natsURL   string
	adminAddr string
)

var rootCmd = &cobra.Command{
	Use:   "controller",
	Short: "GB/T 43229-2023 signal controller",
	Long: `controller accepts vehicle-detector connections, runs the
handshake/heartbeat/upload session machine, and optionally mirrors
session state to Redis and publishes uplink events to NATS.`,
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.IntVar(&port, "port", 0, "TCP listen port (0 = use SIGCTRL_PORT or default)")
	flags.Uint32Var(&adminCode, "admin-code", 0, "this controller's administrative division code")
	flags.Uint16Var(&deviceID, "device-id", 0, "this controller's device id")
	flags.IntVar(&logLevel, "log-level", -1, "0=warn 1=info 2=debug 3=trace")
	flags.StringVar(&logFile, "log-file", "", "also write logs to this file")
	flags.StringVar(&redisURL, "redis-url", "", "Redis address for the session registry mirror")
	flags.StringVar(&natsURL, "nats-url", "", "NATS URL for uplink event publishing")
	flags.StringVar(&adminAddr, "admin-addr", "", "address for the read-only /healthz and /sessions HTTP surface")
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.LoadController()
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = port
	}
	if flags.Changed("admin-code") {
		cfg.AdminCode = adminCode
	}
	if flags.Changed("device-id") {
		cfg.DeviceID = deviceID
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = logFile
	}
	if flags.Changed("redis-url") {
		cfg.RedisURL = redisURL
	}
	if flags.Changed("nats-url") {
		cfg.NATSURL = natsURL
	}
	if flags.Changed("admin-addr") {
		cfg.AdminAddr = adminAddr
	}

	log := logging.Setup(cfg.LogLevel, cfg.LogFile)

	srv, err := controller.New(cfg, log)
	if err != nil {
		return fmt.Errorf("controller init: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("controller start: %w", err)
	}
	log.Info().Str("addr", srv.Addr().String()).Msg("controller started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	srv.Stop()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
