// push.go: best-effort delivery of notifications to external services via
// shoutrrr sender URLs.
package notification

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/cattle-scans/backend/internal/logging"
)

// PushSender delivers notifications to configured shoutrrr URLs. A single
// sender serves all URLs.
type PushSender struct {
	sender  *router.ServiceRouter
	timeout time.Duration
	logger  *slog.Logger
}

// NewPushSender builds a sender for the given shoutrrr URLs. Returns an
// error when any URL is invalid.
func NewPushSender(urls []string, timeout time.Duration) (*PushSender, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one push URL is required")
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("creating push sender: %w", err)
	}

	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &PushSender{
		sender:  sender,
		timeout: timeout,
		logger:  logging.ForService("notification-push"),
	}, nil
}

// Send delivers one notification. Failures are logged, never propagated;
// push delivery is strictly best-effort.
func (p *PushSender) Send(n *Notification) {
	params := &stypes.Params{}
	params.SetTitle(n.Title)

	errs := p.sender.Send(n.Message, params)
	for _, err := range errs {
		if err != nil {
			p.logger.Warn("push delivery failed",
				"notification_id", n.ID,
				"error", err)
		}
	}
}
