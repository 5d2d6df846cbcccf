package deploy

import (
	"context"
	"log/slog"

	"github.com/superfly/fsm"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
)

// Queue hands requests to the delivery workflow.
type Queue struct {
	start fsm.Start[DeliveryRequest, DeliveryResult]
}

// NewQueue wraps a registered FSM start func.
func NewQueue(start fsm.Start[DeliveryRequest, DeliveryResult]) *Queue {
	return &Queue{start: start}
}

// Enqueue starts a delivery for the request. The identifier doubles as the
// workflow key, so re-enqueueing an in-flight request is safe.
func (q *Queue) Enqueue(ctx context.Context, identifier, userEmail string) error {
	req := &DeliveryRequest{
		RequestIdentifier: identifier,
		UserEmail:         userEmail,
	}
	resp := &DeliveryResult{}

	version, err := q.start(ctx, identifier, fsm.NewRequest(req, resp))
	if err != nil {
		return errors.Wrap(err, "failed to start delivery")
	}

	slog.Info("delivery_enqueued", "request_identifier", identifier, "version", version)
	return nil
}
