// navbuddy is a natural-language file navigator: it asks a local
// Ollama model to translate a request into a single typed operation,
// validates every path against the sandbox policy, and executes only
// from canonical paths.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/navbuddy/navbuddy/internal/pathutil"
	"github.com/navbuddy/navbuddy/llm/ollama"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"

	flagConfig string
	flagDebug  bool
)

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "navbuddy",
		Short:         "Natural-language file navigator backed by a local LLM",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(flagConfig); err != nil {
				return err
			}
			initLogger(flagDebug)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.navbuddy/config.yaml)")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		buildAskCmd(),
		buildModelsCmd(),
		buildPolicyCmd(),
		buildApprovalsCmd(),
	)
	return cmd
}

func initConfig(path string) error {
	viper.SetEnvPrefix("NAVBUDDY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("oracle.base_url", ollama.DefaultBaseURL)
	viper.SetDefault("oracle.model", "llama3.2")
	viper.SetDefault("oracle.timeout", 60*time.Second)
	viper.SetDefault("oracle.min_confidence", 0.75)
	viper.SetDefault("policy.max_depth", 10)
	viper.SetDefault("policy.confirm_timeout", 2*time.Minute)
	viper.SetDefault("approvals.poll_interval", 2*time.Second)

	if strings.TrimSpace(path) != "" {
		viper.SetConfigFile(pathutil.ExpandHomePath(path))
		return viper.ReadInConfig()
	}

	home, err := os.UserHomeDir()
	if err == nil && strings.TrimSpace(home) != "" {
		viper.AddConfigPath(filepath.Join(home, ".navbuddy"))
	}
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		// Missing config is fine: env vars and flags can carry the
		// whole configuration.
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	return nil
}

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
