// Package provision brings the ESP8266 onto a Wi-Fi network.
//
// The module first runs as an access point with a small web server where a
// user can enter the network name and password. After the AP window expires
// (or as soon as new credentials are saved) it switches to station mode and
// joins the network. Failures of any setup step are reported as a StepError
// whose number the device shows on its display.
package provision

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/go-logr/logr"

	"github.com/embeddedgo/esp8266"
	"github.com/embeddedgo/esp8266/credstore"
	"github.com/embeddedgo/esp8266/display"
	"github.com/embeddedgo/esp8266/httpd"
)

// Config contains the provisioning parameters.
type Config struct {
	SSID        string        // name of the provisioning AP
	Channel     int           // AP channel
	Window      time.Duration // AP time when valid credentials are stored
	JoinTimeout time.Duration // time allowed for AT+CWJAP
	HTTPPort    int
	RetryDelay  time.Duration // pause after a failed attempt (Run)
	Idle        time.Duration // HTTP client idle timeout, 0 means default
}

// DefaultConfig returns the parameters used by the firmware.
func DefaultConfig() Config {
	return Config{
		SSID:        "IceGrid",
		Channel:     11,
		Window:      60 * time.Second,
		JoinTimeout: 15 * time.Second,
		HTTPPort:    80,
		RetryDelay:  5 * time.Second,
	}
}

// Provisioner drives one ESP8266 through the provisioning states.
type Provisioner struct {
	dev   *esp8266.Device
	store *credstore.Store
	disp  display.Display
	cfg   Config
	log   logr.Logger
	state State
}

// New returns a provisioner. The device must be reset before Configure is
// called (Run does it).
func New(dev *esp8266.Device, store *credstore.Store, disp display.Display, cfg Config, log logr.Logger) *Provisioner {
	return &Provisioner{
		dev:   dev,
		store: store,
		disp:  disp,
		cfg:   cfg,
		log:   log.WithName("provision"),
	}
}

// State returns the current state.
func (p *Provisioner) State() State {
	return p.state
}

func (p *Provisioner) enter(s State) {
	p.log.Info("state", "from", p.state.String(), "to", s.String())
	p.state = s
}

var errJoin = errors.New("cannot join network")

// Configure runs the state machine until the module is associated with a
// network and returns its station address. The AP is brought up again
// every time the join fails.
func (p *Provisioner) Configure(ctx context.Context) (netip.Addr, error) {
	for {
		apIP, err := p.bringUpAP()
		if err != nil {
			return netip.Addr{}, err
		}
		if err = p.awaitCredentials(ctx, apIP); err != nil {
			return netip.Addr{}, err
		}
		addr, err := p.associate(ctx)
		if errors.Is(err, errJoin) {
			p.log.Info("join failed, back to AP mode", "error", err.Error())
			continue
		}
		if err != nil {
			return netip.Addr{}, err
		}
		p.enter(Done)
		return addr, nil
	}
}

func (p *Provisioner) bringUpAP() (netip.Addr, error) {
	p.enter(APBringup)
	if err := p.dev.Cmd("CWMODE=", 2); err != nil {
		return netip.Addr{}, &StepError{StepAPMode, err}
	}
	if err := p.dev.Cmd("CWSAP=", p.cfg.SSID, "", p.cfg.Channel, 0); err != nil {
		return netip.Addr{}, &StepError{StepAPConfig, err}
	}
	ip, err := p.dev.APAddr()
	if err != nil {
		return netip.Addr{}, &StepError{StepAPAddr, err}
	}
	if err = p.dev.Cmd("CIPMUX=", 1); err != nil {
		return netip.Addr{}, &StepError{StepMux, err}
	}
	if err = p.dev.Cmd("CIPSERVER=1,", p.cfg.HTTPPort); err != nil {
		return netip.Addr{}, &StepError{StepServer, err}
	}
	p.log.Info("access point up", "ssid", p.cfg.SSID, "ip", ip.String())
	return ip, nil
}

func (p *Provisioner) load() (credstore.Record, error) {
	rec, err := p.store.Load()
	if err != nil {
		return rec, &StepError{StepStore, err}
	}
	return rec, nil
}

// awaitCredentials serves the provisioning pages. It returns when the window
// has expired and the stored credentials are valid, or earlier if valid
// credentials with a different checksum were saved.
func (p *Provisioner) awaitCredentials(ctx context.Context, ip netip.Addr) error {
	p.enter(AwaitingCredentials)
	rec, err := p.load()
	if err != nil {
		return err
	}
	valid := rec.Valid()
	old := rec.Checksum
	color := display.Red
	if valid {
		color = display.Green
	}
	p.disp.Clear()
	p.disp.ShowIP(ip, color)

	srv := httpd.NewServer(p.dev, p.store, p.log)
	if p.cfg.Idle > 0 {
		srv.SetIdle(p.cfg.Idle)
	}
	deadline := time.Now().Add(p.cfg.Window)
	for !valid || time.Now().Before(deadline) {
		if err = ctx.Err(); err != nil {
			return err
		}
		saved, err := srv.ServeOne(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &StepError{StepStore, err}
		}
		if !saved {
			continue
		}
		if rec, err = p.load(); err != nil {
			return err
		}
		if rec.Checksum != old && rec.Valid() {
			p.log.Info("new credentials", "ssid", rec.SSID)
			return nil
		}
	}
	return nil
}

func (p *Provisioner) associate(ctx context.Context) (netip.Addr, error) {
	p.enter(ClientAssociation)
	if err := p.dev.Cmd("CIPSERVER=", 0); err != nil {
		p.log.V(1).Info("cannot stop server", "error", err.Error())
	}
	if err := p.dev.Cmd("CWMODE=", 1); err != nil {
		return netip.Addr{}, &StepError{StepStationMode, err}
	}
	rec, err := p.load()
	if err != nil {
		return netip.Addr{}, err
	}
	if err = ctx.Err(); err != nil {
		return netip.Addr{}, err
	}
	p.log.Info("joining", "ssid", rec.SSID)
	if err = p.dev.Join(rec.SSID, rec.Password, p.cfg.JoinTimeout); err != nil {
		return netip.Addr{}, fmt.Errorf("%w %q: %w", errJoin, rec.SSID, err)
	}
	addr, err := p.dev.StationAddr()
	if err != nil {
		return netip.Addr{}, &StepError{StepStationAddr, err}
	}
	p.log.Info("joined", "ssid", rec.SSID, "ip", addr.String())
	return addr, nil
}

// Run provisions the module and calls serve with the station address. If
// provisioning fails, the step number is shown in red and, after the retry
// delay, the module is reset and provisioning starts over. Run returns the
// result of serve or ctx.Err().
func (p *Provisioner) Run(ctx context.Context, serve func(ctx context.Context, addr netip.Addr) error) error {
	for {
		p.enter(Reset)
		if err := p.dev.Reset(); err != nil {
			p.log.Error(err, "reset")
		}
		addr, err := p.Configure(ctx)
		if err == nil {
			p.disp.Clear()
			p.disp.ShowIP(addr, display.Blue)
			return serve(ctx, addr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.log.Error(err, "provisioning failed", "code", Code(err))
		p.disp.Clear()
		p.disp.ShowCode(Code(err), display.Red)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.RetryDelay):
		}
	}
}
