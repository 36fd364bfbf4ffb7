package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/johnnohj/mu2-runtime/internal/adapters/profiles"
	"github.com/johnnohj/mu2-runtime/internal/adapters/repl"
	"github.com/johnnohj/mu2-runtime/internal/adapters/serial"
	"github.com/johnnohj/mu2-runtime/internal/adapters/vm"
	"github.com/johnnohj/mu2-runtime/internal/adapters/webrepl"
	"github.com/johnnohj/mu2-runtime/internal/ports"
)

type app struct {
	boards  ports.BoardProfileSource
	runtime *vm.Supervisor
	state   *vm.StateCache
	config  appConfig
	logger  *slog.Logger
	clock   ports.Clock
}

type appConfig struct {
	runtimeCommand  string
	runtimeArgs     []string
	serialPort      string
	serialBaud      int
	webreplURL      string
	webreplPassword string
	throttle        time.Duration
	syncInterval    time.Duration
	defaultBoard    string
}

func wireApp() (*app, error) {
	cfg := viper.New()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg.SetConfigName("config")
	cfg.SetConfigType("toml")
	cfg.AddConfigPath(filepath.Join(homeDir, ".mu2"))
	cfg.SetDefault("runtime.command", "python3")
	cfg.SetDefault("runtime.args", []string{"-m", "mu2_runtime"})
	cfg.SetDefault("serial.baud", serial.DefaultBaud)
	cfg.SetDefault("cache.throttle_ms", vm.DefaultThrottleWindow.Milliseconds())
	cfg.SetDefault("sync.interval_ms", 50)
	cfg.SetDefault("board.default", "generic_linux_pc")

	if err := cfg.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	boards, err := profiles.NewSource(viper.New())
	if err != nil {
		return nil, fmt.Errorf("wire board profile source: %w", err)
	}

	config := appConfig{
		runtimeCommand:  envOrDefault("MU2_RUNTIME_COMMAND", cfg.GetString("runtime.command")),
		runtimeArgs:     cfg.GetStringSlice("runtime.args"),
		serialPort:      envOrDefault("MU2_SERIAL_PORT", cfg.GetString("serial.port")),
		serialBaud:      envIntOrDefault("MU2_SERIAL_BAUD", cfg.GetInt("serial.baud")),
		webreplURL:      envOrDefault("MU2_WEBREPL_URL", cfg.GetString("webrepl.url")),
		webreplPassword: envOrDefault("MU2_WEBREPL_PASSWORD", cfg.GetString("webrepl.password")),
		throttle:        time.Duration(cfg.GetInt64("cache.throttle_ms")) * time.Millisecond,
		syncInterval:    time.Duration(cfg.GetInt64("sync.interval_ms")) * time.Millisecond,
		defaultBoard:    envOrDefault("MU2_BOARD", cfg.GetString("board.default")),
	}

	if args := os.Getenv("MU2_RUNTIME_ARGS"); args != "" {
		config.runtimeArgs = strings.Fields(args)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	clock := ports.SystemClock{}

	launcher := vm.NewLauncher(config.runtimeCommand, config.runtimeArgs...)
	supervisor := vm.NewSupervisor(launcher, vm.SupervisorOptions{Clock: clock, Logger: logger})
	state := vm.NewStateCache(supervisor, config.throttle, clock)

	return &app{
		boards:  boards,
		runtime: supervisor,
		state:   state,
		config:  config,
		logger:  logger,
		clock:   clock,
	}, nil
}

// ensureRuntime boots the virtual runtime and configures the default board
// profile. Safe to call more than once.
func (a *app) ensureRuntime(ctx context.Context) error {
	if err := a.runtime.Initialize(ctx); err != nil {
		return err
	}

	board, err := a.boards.GetByID(ctx, a.config.defaultBoard)
	if err != nil {
		return fmt.Errorf("load board profile %q: %w", a.config.defaultBoard, err)
	}
	return a.runtime.Configure(ctx, board)
}

// openTransport connects to the physical board, preferring WebREPL when a
// URL is configured and falling back to the serial port.
func (a *app) openTransport(ctx context.Context) (ports.DeviceTransport, string, error) {
	if a.config.webreplURL != "" {
		transport, err := webrepl.Dial(ctx, a.config.webreplURL, a.config.webreplPassword)
		if err != nil {
			return nil, "", err
		}
		return transport, a.config.webreplURL, nil
	}

	if a.config.serialPort != "" {
		transport, err := serial.Open(a.config.serialPort, a.config.serialBaud)
		if err != nil {
			return nil, "", err
		}
		return transport, a.config.serialPort, nil
	}

	return nil, "", errors.New("no physical device configured: set serial.port or webrepl.url (or MU2_SERIAL_PORT / MU2_WEBREPL_URL)")
}

func (a *app) deviceRunner(ctx context.Context) (ports.DeviceRunner, func() error, error) {
	transport, _, err := a.openTransport(ctx)
	if err != nil {
		return nil, nil, err
	}
	return repl.NewSession(transport), transport.Close, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
