// Icedash provisions an ESP8266 attached to a serial port and drives the
// runtime dashboard protocol.
package main

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/embeddedgo/esp8266/config"
	"github.com/embeddedgo/esp8266/hlog"
)

var flags struct {
	config  string
	verbose bool
	debug   bool
}

var (
	cfg *config.Config
	log logr.Logger
)

var rootCmd = &cobra.Command{
	Use:           "icedash",
	Short:         "ESP8266 Wi-Fi provisioning and dashboard tool",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.New(flags.config)
		if err != nil {
			return err
		}
		if cfg, err = config.Load(v); err != nil {
			return err
		}
		log = hlog.Init(flags.verbose, flags.debug, cfg.LogFile)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "config file (yaml)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log progress")
	pf.BoolVar(&flags.debug, "debug", false, "log the AT command traffic")
	rootCmd.AddCommand(runCmd, credsCmd, portsCmd, sendCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
