package dispatch

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
)

// DeploymentNotifier reports applied callbacks to the requesting user.
type DeploymentNotifier interface {
	NotifyDeployment(ctx context.Context, userEmail, identifier, status string, details map[string]string)
}

// DeliveryStatusUpdate is the payload the infrastructure pipeline reports
// after acting on a pull request. UserEmail is accepted for pipeline
// compatibility but never trusted: the owner comes from the stored request
// row.
type DeliveryStatusUpdate struct {
	RequestIdentifier string `json:"request_identifier"`
	UserEmail         string `json:"user_email,omitempty"`
	Status            string `json:"status"`
	PRNumber          int    `json:"pr_number,omitempty"`
	InstanceID        string `json:"instance_id,omitempty"`
	PublicIP          string `json:"public_ip,omitempty"`
	ConsoleURL        string `json:"console_url,omitempty"`
	SSHCommand        string `json:"ssh_command,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

// CallbackService applies pipeline callbacks to persisted requests.
type CallbackService struct {
	repo     *db.Repository
	notifier DeploymentNotifier
	token    string
}

// NewCallbackService creates a callback service guarded by a static bearer
// token.
func NewCallbackService(repo *db.Repository, notifier DeploymentNotifier, token string) *CallbackService {
	return &CallbackService{repo: repo, notifier: notifier, token: token}
}

// Authenticate verifies an Authorization header value against the static
// token.
func (s *CallbackService) Authenticate(authorization string) error {
	if s.token == "" {
		return fmt.Errorf("callback token not configured")
	}

	presented, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok {
		return fmt.Errorf("missing bearer token")
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(s.token)) != 1 {
		return fmt.Errorf("invalid token")
	}
	return nil
}

// ApplyDeliveryStatus applies one status callback. Re-delivering the same
// status for a request is a no-op.
func (s *CallbackService) ApplyDeliveryStatus(ctx context.Context, update DeliveryStatusUpdate) error {
	req, err := s.repo.GetByIdentifier(update.RequestIdentifier)
	if err != nil {
		return errors.Wrap(err, "failed to load request")
	}
	if req == nil {
		return fmt.Errorf("request not found: %s", update.RequestIdentifier)
	}

	if req.Status == update.Status {
		slog.Info("callback_duplicate_skipped", "request_identifier", update.RequestIdentifier, "status", update.Status)
		return nil
	}

	switch update.Status {
	case db.StatusPRCreated:
		if err := s.repo.RecordPullRequest(update.RequestIdentifier, update.PRNumber); err != nil {
			return err
		}
	case db.StatusDeployed:
		if err := s.repo.MarkDeployed(update.RequestIdentifier); err != nil {
			return err
		}
	case db.StatusFailed, db.StatusPRFailed:
		if err := s.repo.UpdateStatus(update.RequestIdentifier, update.Status, update.ErrorMessage); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown callback status: %s", update.Status)
	}

	if s.notifier != nil {
		s.notifier.NotifyDeployment(ctx, req.UserEmail, update.RequestIdentifier, update.Status, callbackDetails(update))
	}

	slog.Info("callback_applied", "request_identifier", update.RequestIdentifier, "status", update.Status)
	return nil
}

// StoreDeliveryState upserts the reported infrastructure state and marks the
// request deployed.
func (s *CallbackService) StoreDeliveryState(ctx context.Context, identifier, stateBlob string, resourceIDs map[string]string) error {
	if err := s.repo.UpsertDeliveryState(identifier, stateBlob, resourceIDs); err != nil {
		return err
	}

	req, err := s.repo.GetByIdentifier(identifier)
	if err != nil {
		return errors.Wrap(err, "failed to load request")
	}
	if req == nil {
		return fmt.Errorf("request not found: %s", identifier)
	}

	if req.Status != db.StatusDeployed {
		if err := s.repo.MarkDeployed(identifier); err != nil {
			return err
		}
	}

	slog.Info("delivery_state_stored", "request_identifier", identifier, "resource_count", len(resourceIDs))
	return nil
}

func callbackDetails(update DeliveryStatusUpdate) map[string]string {
	details := map[string]string{}
	if update.PRNumber > 0 {
		details["pr_number"] = strconv.Itoa(update.PRNumber)
	}
	if update.InstanceID != "" {
		details["instance_id"] = update.InstanceID
	}
	if update.PublicIP != "" {
		details["public_ip"] = update.PublicIP
	}
	if update.ConsoleURL != "" {
		details["console_url"] = update.ConsoleURL
	}
	if update.SSHCommand != "" {
		details["ssh_command"] = update.SSHCommand
	}
	if update.ErrorMessage != "" {
		details["error_message"] = update.ErrorMessage
	}
	return details
}
