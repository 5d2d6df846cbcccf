package deploy

import (
	"context"

	"github.com/superfly/fsm"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/tfvars"
)

// PullRequestPublisher opens a pull request for a persisted request.
type PullRequestPublisher interface {
	PublishPullRequest(ctx context.Context, req *db.Request) (int, error)
}

// DeploymentNotifier reports delivery status changes to the requesting user.
type DeploymentNotifier interface {
	NotifyDeployment(ctx context.Context, userEmail, identifier, status string, details map[string]string)
}

// Machine holds dependencies for FSM transitions
type Machine struct {
	repo       *db.Repository
	generator  *tfvars.Generator
	publisher  PullRequestPublisher
	notifier   DeploymentNotifier
	maxRetries int
}

// NewMachine creates a new delivery machine with dependencies
func NewMachine(
	repo *db.Repository,
	generator *tfvars.Generator,
	publisher PullRequestPublisher,
	notifier DeploymentNotifier,
	maxRetries int,
) *Machine {
	return &Machine{
		repo:       repo,
		generator:  generator,
		publisher:  publisher,
		notifier:   notifier,
		maxRetries: maxRetries,
	}
}

// Register registers the delivery FSM
func (m *Machine) Register(ctx context.Context, manager *fsm.Manager) (fsm.Start[DeliveryRequest, DeliveryResult], fsm.Resume, error) {
	start, resume, err := fsm.Register[DeliveryRequest, DeliveryResult](manager, "request-delivery").
		Start(StateLoadRequest, m.handleLoadRequest).
		To(StateRenderTFVars, m.handleRenderTFVars).
		To(StatePublishPR, m.handlePublishPR).
		To(StateRecordStatus, m.handleRecordStatus).
		To(StateNotify, m.handleNotify).
		To(StateComplete, m.handleComplete).
		End(StateFailed).
		Build(ctx)

	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to register FSM")
	}

	return start, resume, nil
}
