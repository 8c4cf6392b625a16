package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/embeddedgo/esp8266/dash"
)

var sendCmd = &cobra.Command{
	Use:   "send <host> <frame>",
	Short: "Send a dashboard frame, e.g. 70,7080,0,254,68,C0,78",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := dash.ParseFrame(args[1])
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		addr := dash.Addr(args[0], cfg.UDPPort)
		if err = dash.Send(ctx, addr, values); err != nil {
			return err
		}
		log.Info("sent", "addr", addr, "values", len(values))
		return nil
	},
}
