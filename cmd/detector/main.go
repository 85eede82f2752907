package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/acocosum/traffic-protocol/internal/config"
	"github.com/acocosum/traffic-protocol/internal/detector"
	"github.com/acocosum/traffic-protocol/internal/logging"
)

var (
	host       string
	port       int
	adminCode  uint32
	deviceType uint16
	deviceID   uint16
	logLevel   int
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "detector",
	Short: "GB/T 43229-2023 vehicle detector",
	Long: `detector dials a signal controller, performs the handshake, and
then drives the realtime/statistics upload timers and heartbeat replies
until the process is stopped.`,
	RunE: run,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&host, "host", "", "signal controller host")
	flags.IntVar(&port, "port", 0, "signal controller TCP port (0 = use DETECTOR_PORT or default)")
	flags.Uint32Var(&adminCode, "admin-code", 0, "this detector's administrative division code")
	flags.Uint16Var(&deviceType, "device-type", 0, "this detector's device type bitmask")
	flags.Uint16Var(&deviceID, "device-id", 0, "this detector's device id")
	flags.IntVar(&logLevel, "log-level", -1, "0=warn 1=info 2=debug 3=trace")
	flags.StringVar(&logFile, "log-file", "", "also write logs to this file")
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.LoadDetector()
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host = host
	}
	if flags.Changed("port") {
		cfg.Port = port
	}
	if flags.Changed("admin-code") {
		cfg.AdminCode = adminCode
	}
	if flags.Changed("device-type") {
		cfg.DeviceType = deviceType
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

	log := logging.Setup(cfg.LogLevel, cfg.LogFile)

	eng, err := detector.New(cfg, log)
	if err != nil {
		return fmt.Errorf("detector init: %w", err)
	}
	log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("detector starting")

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		eng.Run(stop)
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	close(stop)
	<-done
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
