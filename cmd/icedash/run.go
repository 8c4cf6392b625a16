package main

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/embeddedgo/esp8266"
	"github.com/embeddedgo/esp8266/credstore"
	"github.com/embeddedgo/esp8266/dash"
	"github.com/embeddedgo/esp8266/display"
	"github.com/embeddedgo/esp8266/provision"
	"github.com/embeddedgo/esp8266/uart"
)

// udpLink is the connection id used for the dashboard socket.
const udpLink = 0

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Provision the module and serve dashboard frames",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := openStore()
		if err != nil {
			return err
		}
		rw, err := uart.Open(cfg.Serial.Device, cfg.Serial.Baud)
		if err != nil {
			return err
		}
		port := uart.New(rw, rw,
			uart.WithRxSize(cfg.UART.RxSize),
			uart.WithTimeout(cfg.UART.Timeout),
			uart.WithLogger(log.WithName("uart")),
		)

		dev := esp8266.NewDevice(cfg.Serial.Device, port, esp8266.WithLogger(log.WithName("esp8266")))
		p := provision.New(dev, store, display.NewLog(log), cfg.Provision, log)

		group := errgroup.Group{}
		group.Go(func() error {
			defer stop()
			return p.Run(ctx, func(ctx context.Context, addr netip.Addr) error {
				srv := dash.NewServer(dev, udpLink, log)
				if err := srv.Listen(cfg.UDPPort); err != nil {
					return err
				}
				log.Info("ready", "addr", dash.Addr(addr.String(), cfg.UDPPort))
				return srv.Serve(ctx, dash.LogSink{Log: log.WithName("frames")})
			})
		})
		// Closing the port stops the receive goroutine blocked in Read.
		group.Go(func() error {
			<-ctx.Done()
			return port.Close()
		})
		err = group.Wait()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func openStore() (*credstore.Store, error) {
	return credstore.New(credstore.NewFileFlash(cfg.FlashPath, credstore.DefaultPageSize))
}
