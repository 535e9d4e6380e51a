package secondary

import (
	"context"

	"github.com/example/courier/internal/models"
)

// MailSender defines the secondary port for outbound mail. Delivery
// guarantees are the transport's problem; the engine only needs the
// assigned message id back so delegation replies can be correlated by
// thread.
type MailSender interface {
	// Send delivers the message and returns its Message-Id.
	Send(ctx context.Context, msg models.OutboundMessage) (messageID string, err error)
}
