// Command netshelld runs the netshell game server and its admin tooling.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/codefionn/netshell/internal/config"
	"github.com/codefionn/netshell/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "netshelld",
	Short:         "Multiplayer hacking simulation server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.GetConfigPath(), "path to the config file")
	rootCmd.AddCommand(serveCmd, userCmd, connectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies environment overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) error {
	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func closeLogger() {
	if err := logger.Global().Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close logger: %v\n", err)
	}
}

// promptForPassword reads a line without echo when stdin is a terminal
func promptForPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	fmt.Fprint(os.Stderr, prompt)

	if term.IsTerminal(fd) {
		bytes, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(bytes)), nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// stdin is shared so buffered input is not lost between prompts
var stdin = bufio.NewReader(os.Stdin)
