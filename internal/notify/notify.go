package notify

import (
	"intifacectl/pkg/logging"

	"github.com/gen2brain/beeep"
)

// Notifier delivers fire-and-forget desktop notifications.
type Notifier interface {
	Notify(title, body string)
}

// Desktop sends notifications through the OS notification service.
type Desktop struct {
	enabled bool
	send    func(title, body string) error
}

// NewDesktop returns a desktop notifier. A disabled notifier drops everything.
func NewDesktop(enabled bool) *Desktop {
	return &Desktop{
		enabled: enabled,
		send: func(title, body string) error {
			return beeep.Notify(title, body, "")
		},
	}
}

// Notify delivers asynchronously so callers on the control-channel loop
// never wait on the notification daemon.
func (d *Desktop) Notify(title, body string) {
	if !d.enabled {
		return
	}
	go func() {
		if err := d.send(title, body); err != nil {
			logging.Debug("Notify", "Desktop notification %q failed: %v", title, err)
		}
	}()
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(string, string) {}
