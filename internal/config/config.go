// Package config loads the two binaries' settings from environment
// variables, with command-line flags layered on top so a flag always
// wins over an env var and an env var always wins over the default.
package config

import (
	"os"
	"strconv"
)

// ControllerConfig configures the signal-controller (server) binary.
type ControllerConfig struct {
	Port       int
	AdminCode  uint32
	DeviceID   uint16
	LogLevel   int
	LogFile    string
	RedisURL   string // empty disables the registry mirror
	NATSURL    string // empty disables the uplink bus
	AdminAddr  string // empty disables the admin HTTP surface
}

// DetectorConfig configures the vehicle-detector (client) binary.
type DetectorConfig struct {
	Host       string
	Port       int
	AdminCode  uint32
	DeviceType uint16
	DeviceID   uint16
	LogLevel   int
	LogFile    string
}

// LoadController reads a ControllerConfig from environment variables,
// defaulting to admin code 0x01AD24 and device id 1 where unset.
func LoadController() *ControllerConfig {
	return &ControllerConfig{
		Port:      getEnvAsInt("SIGCTRL_PORT", 40000),
		AdminCode: getEnvAsUint32("SIGCTRL_ADMIN_CODE", 0x01AD24),
		DeviceID:  uint16(getEnvAsInt("SIGCTRL_DEVICE_ID", 1)),
		LogLevel:  getEnvAsInt("SIGCTRL_LOG_LEVEL", 1),
		LogFile:   getEnv("SIGCTRL_LOG_FILE", ""),
		RedisURL:  getEnv("SIGCTRL_REDIS_URL", ""),
		NATSURL:   getEnv("SIGCTRL_NATS_URL", ""),
		AdminAddr: getEnv("SIGCTRL_ADMIN_ADDR", ""),
	}
}

// LoadDetector reads a DetectorConfig from environment variables.
func LoadDetector() *DetectorConfig {
	return &DetectorConfig{
		Host:       getEnv("DETECTOR_HOST", "127.0.0.1"),
		Port:       getEnvAsInt("DETECTOR_PORT", 40000),
		AdminCode:  getEnvAsUint32("DETECTOR_ADMIN_CODE", 0x01AD24),
		DeviceType: uint16(getEnvAsInt("DETECTOR_DEVICE_TYPE", 0x02)), // coil detector by default
		DeviceID:   uint16(getEnvAsInt("DETECTOR_DEVICE_ID", 100)),
		LogLevel:   getEnvAsInt("DETECTOR_LOG_LEVEL", 1),
		LogFile:    getEnv("DETECTOR_LOG_FILE", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvAsUint32(key string, defaultValue uint32) uint32 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseUint(v, 0, 32); err == nil {
			return uint32(i)
		}
	}
	return defaultValue
}
