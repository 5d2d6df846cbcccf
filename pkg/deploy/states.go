package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/superfly/fsm"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
)

// handleLoadRequest loads the persisted request and short-circuits deliveries
// that already produced a pull request (idempotency)
func (m *Machine) handleLoadRequest(ctx context.Context, req *fsm.Request[DeliveryRequest, DeliveryResult]) (*fsm.Response[DeliveryResult], error) {
	slog.Info("fsm_state_load_request", "request_identifier", req.Msg.RequestIdentifier)

	if retryCount := fsm.RetryFromContext(ctx); retryCount >= uint64(m.maxRetries) {
		slog.Error("max_retries_exceeded", "request_identifier", req.Msg.RequestIdentifier, "max_retries", m.maxRetries)
		return nil, fsm.Abort(fmt.Errorf("max retries (%d) exceeded", m.maxRetries))
	}

	record, err := m.repo.GetByIdentifier(req.Msg.RequestIdentifier)
	if err != nil {
		slog.Error("request_load_failed", "request_identifier", req.Msg.RequestIdentifier, "error", err)
		return nil, fsm.Abort(errors.Wrap(err, "database error"))
	}
	if record == nil {
		slog.Error("request_not_found", "request_identifier", req.Msg.RequestIdentifier)
		return nil, fsm.Abort(fmt.Errorf("request not found: %s", req.Msg.RequestIdentifier))
	}

	resp := req.W.Msg
	if resp == nil {
		resp = &DeliveryResult{}
	}

	resp.RequestID = record.ID
	resp.Department = record.Department
	resp.Environment = record.Environment
	resp.Status = record.Status
	resp.PRNumber = record.PRNumber

	if record.Status == db.StatusPRCreated || record.Status == db.StatusDeployed {
		slog.Info("delivery_already_complete",
			"request_identifier", req.Msg.RequestIdentifier,
			"status", record.Status,
			"pr_number", record.PRNumber)
	}

	return fsm.NewResponse(resp), nil
}

// handleRenderTFVars writes the canonical tfvars file. Failure here is not
// fatal: the publish stage regenerates the file inside its clone.
func (m *Machine) handleRenderTFVars(ctx context.Context, req *fsm.Request[DeliveryRequest, DeliveryResult]) (*fsm.Response[DeliveryResult], error) {
	slog.Info("fsm_state_render_tfvars", "request_identifier", req.Msg.RequestIdentifier)

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}
	if resp.Status == db.StatusPRCreated || resp.Status == db.StatusDeployed {
		return fsm.NewResponse(resp), nil
	}

	record, err := m.repo.GetByIdentifier(req.Msg.RequestIdentifier)
	if err != nil || record == nil {
		return nil, fsm.Abort(fmt.Errorf("request vanished: %s", req.Msg.RequestIdentifier))
	}

	path, err := m.generator.Generate(record)
	if err != nil {
		slog.Error("tfvars_generation_failed", "request_identifier", req.Msg.RequestIdentifier, "error", err)
		stageFailuresTotal.WithLabelValues(StateRenderTFVars).Inc()
		resp.ErrorMessage = err.Error()
		return fsm.NewResponse(resp), nil
	}

	resp.TFVarsPath = path
	resp.TFVarsWritten = true
	return fsm.NewResponse(resp), nil
}

// handlePublishPR opens the pull request. Failure moves the request toward
// pr_failed rather than aborting so the status stage still records it.
func (m *Machine) handlePublishPR(ctx context.Context, req *fsm.Request[DeliveryRequest, DeliveryResult]) (*fsm.Response[DeliveryResult], error) {
	slog.Info("fsm_state_publish_pr", "request_identifier", req.Msg.RequestIdentifier)

	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}
	if resp.Status == db.StatusPRCreated || resp.Status == db.StatusDeployed {
		return fsm.NewResponse(resp), nil
	}

	record, err := m.repo.GetByIdentifier(req.Msg.RequestIdentifier)
	if err != nil || record == nil {
		return nil, fsm.Abort(fmt.Errorf("request vanished: %s", req.Msg.RequestIdentifier))
	}

	number, err := m.publisher.PublishPullRequest(ctx, record)
	if err != nil {
		slog.Error("pr_publish_failed", "request_identifier", req.Msg.RequestIdentifier, "error", err)
		stageFailuresTotal.WithLabelValues(StatePublishPR).Inc()
		resp.Status = db.StatusPRFailed
		resp.ErrorMessage = err.Error()
		return fsm.NewResponse(resp), nil
	}

	resp.PRNumber = number
	resp.PRCreated = true
	resp.Status = db.StatusPRCreated
	resp.ErrorMessage = ""

	slog.Info("pr_publish_complete", "request_identifier", req.Msg.RequestIdentifier, "pr_number", number)
	return fsm.NewResponse(resp), nil
}

// handleRecordStatus persists the delivery outcome. This is the serialization
// point: a database failure here is retryable, everything after it is
// best-effort.
func (m *Machine) handleRecordStatus(ctx context.Context, req *fsm.Request[DeliveryRequest, DeliveryResult]) (*fsm.Response[DeliveryResult], error) {
	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}
	slog.Info("fsm_state_record_status", "request_identifier", req.Msg.RequestIdentifier, "status", resp.Status)

	switch resp.Status {
	case db.StatusPRCreated:
		if err := m.repo.RecordPullRequest(req.Msg.RequestIdentifier, resp.PRNumber); err != nil {
			return nil, errors.Wrap(err, "failed to record pull request")
		}
	case db.StatusDeployed:
		// Already delivered by a previous run, nothing to record.
	default:
		if err := m.repo.UpdateStatus(req.Msg.RequestIdentifier, db.StatusPRFailed, resp.ErrorMessage); err != nil {
			return nil, errors.Wrap(err, "failed to record failure")
		}
		resp.Status = db.StatusPRFailed
	}

	resp.StatusRecorded = true
	return fsm.NewResponse(resp), nil
}

// handleNotify reports the outcome to the user. Notification never fails the
// workflow.
func (m *Machine) handleNotify(ctx context.Context, req *fsm.Request[DeliveryRequest, DeliveryResult]) (*fsm.Response[DeliveryResult], error) {
	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}
	slog.Info("fsm_state_notify", "request_identifier", req.Msg.RequestIdentifier, "status", resp.Status)

	if m.notifier != nil {
		details := map[string]string{}
		if resp.PRNumber > 0 {
			details["pr_number"] = strconv.Itoa(resp.PRNumber)
		}
		if resp.ErrorMessage != "" {
			details["error_message"] = resp.ErrorMessage
		}
		m.notifier.NotifyDeployment(ctx, req.Msg.UserEmail, req.Msg.RequestIdentifier, resp.Status, details)
	}

	resp.Notified = true
	return fsm.NewResponse(resp), nil
}

// handleComplete finalizes the workflow
func (m *Machine) handleComplete(ctx context.Context, req *fsm.Request[DeliveryRequest, DeliveryResult]) (*fsm.Response[DeliveryResult], error) {
	resp := req.W.Msg
	if resp == nil {
		return nil, fsm.Abort(fmt.Errorf("response not initialized"))
	}

	deliveriesTotal.WithLabelValues(resp.Status).Inc()
	slog.Info("delivery_complete",
		"request_identifier", req.Msg.RequestIdentifier,
		"status", resp.Status,
		"pr_number", resp.PRNumber)

	return fsm.NewResponse(resp), nil
}
