// Package main is the gateway's process entrypoint. Per SPEC_FULL.md §9,
// cobra/viper here only resolve process-level concerns (config root
// location, log level, metrics port) from flags/env — they never parse the
// domain config files themselves; that's configstore's job.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "OCPP 2.0.1 protocol gateway",
	Long: `gateway terminates OCPP 2.0.1 sessions toward a CSMS over secure
WebSocket and bridges traffic to Modbus TCP, Modbus RTU, and ECHONET Lite
field devices through a declarative mapping layer.`,
}

func init() {
	rootCmd.PersistentFlags().String("config-root", "/etc/ocpp-gateway", "root directory containing system/csms/devices/templates config")
	rootCmd.PersistentFlags().String("log-level", "INFO", "log level: TRACE, DEBUG, INFO, WARN, ERROR, CRITICAL")
	rootCmd.PersistentFlags().Int("metrics-port", 9100, "Prometheus scrape port for the external metrics exporter")

	_ = viper.BindPFlag("config_root", rootCmd.PersistentFlags().Lookup("config-root"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("metrics_port", rootCmd.PersistentFlags().Lookup("metrics-port"))

	viper.SetEnvPrefix("OCPP_GATEWAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, validateConfigCmd, versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gateway version %s\n", version)
		fmt.Printf("build time: %s\n", buildTime)
		fmt.Printf("git commit: %s\n", gitCommit)
	},
}

func configRoot() string { return viper.GetString("config_root") }
func logLevel() string   { return viper.GetString("log_level") }
func metricsPort() int   { return viper.GetInt("metrics_port") }

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
