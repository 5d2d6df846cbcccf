// Package dispatch owns the request lifecycle boundary: it mints request
// identifiers, persists new requests, hands them to the delivery queue, and
// applies callbacks reported by the infrastructure pipeline.
package dispatch

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/policy"
)

// Enqueuer hands a persisted request to the delivery workflow.
type Enqueuer interface {
	Enqueue(ctx context.Context, identifier, userEmail string) error
}

// Dispatcher persists approved requests and enqueues their delivery.
type Dispatcher struct {
	repo     *db.Repository
	queue    Enqueuer
	policy   *policy.Engine
	provider string
}

// NewDispatcher creates a dispatcher for one cloud provider. A non-nil policy
// engine re-checks the whole request against the permission matrix before it
// is persisted.
func NewDispatcher(repo *db.Repository, queue Enqueuer, policyEngine *policy.Engine, provider string) *Dispatcher {
	if provider == "" {
		provider = "aws"
	}
	return &Dispatcher{repo: repo, queue: queue, policy: policyEngine, provider: strings.ToLower(provider)}
}

// NewIdentifier mints a request identifier:
// <department>_<provider>_<environment>_<8 hex chars>.
func (d *Dispatcher) NewIdentifier(department, environment string) string {
	dept := strings.ToLower(strings.TrimSpace(department))
	dept = strings.ReplaceAll(dept, " ", "-")
	if dept == "" {
		dept = "unknown"
	}

	u := uuid.New()
	suffix := hex.EncodeToString(u[:])[:8]
	return fmt.Sprintf("%s_%s_%s_%s", dept, d.provider, strings.ToLower(environment), suffix)
}

// Dispatch persists the request as pending and enqueues its delivery. The
// request survives an enqueue failure: the reconciliation sweep picks it up
// later.
func (d *Dispatcher) Dispatch(ctx context.Context, profile policy.Profile, environment string, params db.Parameters) (string, error) {
	environment = strings.ToLower(strings.TrimSpace(environment))

	if d.policy != nil && !d.policy.CanCreateResource(profile, policy.ResourceParams{
		CloudProvider: d.provider,
		Environment:   environment,
		InstanceType:  params.InstanceType,
		Region:        params.Region,
		StorageSize:   params.StorageSize,
	}) {
		return "", fmt.Errorf("request violates policy for %s/%s", profile.Department, environment)
	}

	identifier := d.NewIdentifier(profile.Department, environment)

	req := &db.Request{
		RequestIdentifier: identifier,
		UserEmail:         profile.Email,
		Department:        profile.Department,
		CloudProvider:     d.provider,
		Environment:       environment,
		ResourceType:      "ec2",
		Parameters:        params,
		Status:            db.StatusPending,
	}
	if err := d.repo.CreateRequest(req); err != nil {
		return "", errors.Wrap(err, "failed to persist request")
	}

	if err := d.queue.Enqueue(ctx, identifier, profile.Email); err != nil {
		slog.Error("delivery_enqueue_failed", "request_identifier", identifier, "error", err)
	}

	slog.Info("request_dispatched", "request_identifier", identifier, "user_email", profile.Email, "environment", environment)
	return identifier, nil
}

// Sweep re-enqueues pending requests older than age. It returns how many
// were re-enqueued.
func (d *Dispatcher) Sweep(ctx context.Context, age time.Duration) (int, error) {
	stale, err := d.repo.ListPendingOlderThan(age)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list stale requests")
	}

	count := 0
	for _, req := range stale {
		if err := d.queue.Enqueue(ctx, req.RequestIdentifier, req.UserEmail); err != nil {
			slog.Error("sweep_enqueue_failed", "request_identifier", req.RequestIdentifier, "error", err)
			continue
		}
		count++
	}

	if count > 0 {
		slog.Info("sweep_complete", "reenqueued", count, "stale", len(stale))
	}
	return count, nil
}
