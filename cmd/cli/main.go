package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "BANKLEDGER"

func main() {
	if err := newRootCmd(viper.New(), os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Persistent flags fall back to
// BANKLEDGER_* environment variables and then to ~/.bankledger.yaml.
func newRootCmd(v *viper.Viper, out io.Writer) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "bankledger",
		Short:         "BankLedger CLI tool",
		Long:          `A command line interface for the BankLedger API and its database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(v, cfgFile)
		},
	}
	rootCmd.SetOut(out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default $HOME/.bankledger.yaml)")
	flags.String("url", "http://localhost:8080", "Base URL of the BankLedger API")
	flags.String("token", "", "Bearer token")
	flags.Duration("timeout", 10*time.Second, "Request timeout")
	flags.String("user", "", "User id sent as X-User-ID when no token is used")
	flags.String("role", "", "Role sent as X-User-Role when no token is used")
	flags.String("bank", "", "Bank id sent as X-Bank-ID when no token is used")
	for _, name := range []string{"url", "token", "timeout", "user", "role", "bank"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	c := &cli{v: v, out: out}
	rootCmd.AddCommand(
		c.accountsCmd(),
		c.txCmd(),
		c.tokenCmd(),
		c.migrateCmd(),
	)
	return rootCmd
}

func loadConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	v.AddConfigPath(home)
	v.SetConfigName(".bankledger")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}
