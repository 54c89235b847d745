package serialmux

import (
	"context"
	"io"
	"net/http"
)

// DisabledSerialMux stands in for the board under --disable-serial. It
// produces no lines, accepts and discards commands, and still closes
// subscriber channels so their readers unblock.
type DisabledSerialMux struct {
	subs *fanout
}

func NewDisabledSerialMux() *DisabledSerialMux {
	return &DisabledSerialMux{subs: newFanout(0)}
}

func (d *DisabledSerialMux) Subscribe() (string, chan string) { return d.subs.add() }

func (d *DisabledSerialMux) Unsubscribe(id string) { d.subs.remove(id) }

func (d *DisabledSerialMux) SendCommand(string) error { return nil }

func (d *DisabledSerialMux) Initialize() error { return nil }

// Monitor idles until ctx ends.
func (d *DisabledSerialMux) Monitor(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// Close is idempotent.
func (d *DisabledSerialMux) Close() error {
	d.subs.shutdown()
	return nil
}

func (d *DisabledSerialMux) AttachAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/debug/serial-disabled", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "IMU serial input disabled")
	})
}
