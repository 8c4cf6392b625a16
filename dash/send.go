package dash

import (
	"context"
	"net"
)

// Send sends one frame with values to the device at addr.
func Send(ctx context.Context, addr string, values []uint32) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	_, err = conn.Write(FormatFrame(values))
	return err
}
