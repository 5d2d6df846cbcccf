package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
)

// NotificationStore is the durable side of delivery notifications.
type NotificationStore interface {
	CreateNotification(n *db.Notification) error
}

// Notifier fans one delivery update out to the durable store, the live hub,
// and the event stream. Each leg is best-effort and independent.
type Notifier struct {
	store  NotificationStore
	hub    *Hub
	events *EventPublisher
}

// NewNotifier creates a notifier. hub and events may be nil.
func NewNotifier(store NotificationStore, hub *Hub, events *EventPublisher) *Notifier {
	return &Notifier{store: store, hub: hub, events: events}
}

// ShortID returns the display form of a request identifier, the segment
// after the last underscore.
func ShortID(identifier string) string {
	if i := strings.LastIndex(identifier, "_"); i >= 0 {
		return identifier[i+1:]
	}
	return identifier
}

// NotifyDeployment reports one delivery status change to the user.
func (n *Notifier) NotifyDeployment(ctx context.Context, userEmail, identifier, status string, details map[string]string) {
	short := ShortID(identifier)

	var title, message string
	durable := true

	switch status {
	case db.StatusPRCreated:
		title = "Request Submitted"
		message = fmt.Sprintf(
			"Request %s submitted successfully. Pull Request #%s created and waiting for DevOps approval.",
			short, details["pr_number"])
		durable = false
	case db.StatusDeployed:
		title = fmt.Sprintf("Deployment Successful - %s", short)
		message = fmt.Sprintf("Your infrastructure is ready!\n\nRequest: %s\nInstance ID: %s\nPublic IP: %s\nSSH: %s\n\nConsole: %s",
			short, details["instance_id"], details["public_ip"], details["ssh_command"], details["console_url"])
	case db.StatusFailed, db.StatusPRFailed:
		title = fmt.Sprintf("Deployment Failed - %s", short)
		message = fmt.Sprintf("Deployment failed for request %s. DevOps team has been notified.", short)
	default:
		slog.Warn("notify_unknown_status", "request_identifier", identifier, "status", status)
		return
	}

	if durable && n.store != nil {
		err := n.store.CreateNotification(&db.Notification{
			UserEmail:         userEmail,
			RequestIdentifier: identifier,
			Title:             title,
			Message:           message,
			Status:            status,
			Details:           details,
		})
		if err != nil {
			slog.Error("notification_store_failed", "request_identifier", identifier, "error", err)
		}
	}

	if n.hub != nil {
		delivered := n.hub.Send(userEmail, Message{
			Type:              "deployment_update",
			RequestIdentifier: identifier,
			Status:            status,
			Title:             title,
			Message:           message,
			Details:           details,
		})
		if !delivered {
			slog.Info("notify_user_offline", "user_email", userEmail, "request_identifier", identifier)
		}
	}

	if err := n.events.Publish(ctx, Event{
		Channel:           "deployments",
		Type:              "deployment_update",
		RequestIdentifier: identifier,
		UserEmail:         userEmail,
		Status:            status,
		Details:           details,
	}); err != nil {
		slog.Error("event_publish_failed", "request_identifier", identifier, "error", err)
	}
}

// SendEnvironmentApproval asks a manager to grant environment access.
func (n *Notifier) SendEnvironmentApproval(ctx context.Context, managerEmail, userName, environment, approvalID string) error {
	title := fmt.Sprintf("Environment Access Request - %s", strings.ToUpper(environment))
	message := fmt.Sprintf("%s requested access to the %s environment. Approval ID: %s",
		userName, environment, approvalID)

	if n.store != nil {
		err := n.store.CreateNotification(&db.Notification{
			UserEmail:         managerEmail,
			RequestIdentifier: approvalID,
			Title:             title,
			Message:           message,
			Status:            "approval_requested",
		})
		if err != nil {
			slog.Error("approval_store_failed", "approval_id", approvalID, "error", err)
			return err
		}
	}

	if n.hub != nil {
		n.hub.Send(managerEmail, Message{
			Type:              "approval_request",
			RequestIdentifier: approvalID,
			Status:            "approval_requested",
			Title:             title,
			Message:           message,
		})
	}

	if err := n.events.Publish(ctx, Event{
		Channel:           "approvals",
		Type:              "approval_request",
		RequestIdentifier: approvalID,
		UserEmail:         managerEmail,
		Status:            "approval_requested",
	}); err != nil {
		slog.Error("event_publish_failed", "approval_id", approvalID, "error", err)
	}

	slog.Info("approval_request_sent", "manager_email", managerEmail, "environment", environment, "approval_id", approvalID)
	return nil
}
