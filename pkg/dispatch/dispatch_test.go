package dispatch

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/policy"
)

type fakeQueue struct {
	enqueued []string
	err      error
}

func (f *fakeQueue) Enqueue(_ context.Context, identifier, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, identifier)
	return nil
}

type recordingNotifier struct {
	userEmail string
	status    string
	details   map[string]string
	calls     int
}

func (r *recordingNotifier) NotifyDeployment(_ context.Context, userEmail, _, status string, details map[string]string) {
	r.calls++
	r.userEmail = userEmail
	r.status = status
	r.details = details
}

func testRepo(t *testing.T) *db.Repository {
	t.Helper()
	repo, err := db.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func janeProfile() policy.Profile {
	return policy.Profile{
		Email:      "jane.doe@example.com",
		Name:       "Jane Doe",
		Department: "Engineering",
	}
}

func devParams() db.Parameters {
	return db.Parameters{
		InstanceType:    "t3.micro",
		Region:          "us-east-1",
		OperatingSystem: "ubuntu",
		StorageSize:     20,
	}
}

func TestDispatchPersistsAndEnqueues(t *testing.T) {
	repo := testRepo(t)
	queue := &fakeQueue{}
	d := NewDispatcher(repo, queue, policy.NewEngine(), "aws")

	id, err := d.Dispatch(context.Background(), janeProfile(), "dev", devParams())
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^engineering_aws_dev_[0-9a-f]{8}$`), id)

	stored, err := repo.GetByIdentifier(id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, db.StatusPending, stored.Status)
	assert.Equal(t, "jane.doe@example.com", stored.UserEmail)
	assert.Equal(t, "t3.micro", stored.Parameters.InstanceType)

	assert.Equal(t, []string{id}, queue.enqueued)
}

func TestDispatchRejectsPolicyViolation(t *testing.T) {
	repo := testRepo(t)
	queue := &fakeQueue{}
	d := NewDispatcher(repo, queue, policy.NewEngine(), "aws")

	params := devParams()
	params.InstanceType = "m5.24xlarge"

	_, err := d.Dispatch(context.Background(), janeProfile(), "dev", params)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "violates policy")
	assert.Empty(t, queue.enqueued)

	// Nothing persisted either.
	requests, err := repo.ListRequests()
	require.NoError(t, err)
	assert.Empty(t, requests)
}

func TestDispatchEnqueueFailureLeavesPending(t *testing.T) {
	repo := testRepo(t)
	queue := &fakeQueue{err: fmt.Errorf("fsm down")}
	d := NewDispatcher(repo, queue, policy.NewEngine(), "aws")

	id, err := d.Dispatch(context.Background(), janeProfile(), "dev", devParams())
	require.NoError(t, err)

	stored, err := repo.GetByIdentifier(id)
	require.NoError(t, err)
	assert.Equal(t, db.StatusPending, stored.Status)
}

func TestNewIdentifierNormalizesDepartment(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, "AWS")
	id := d.NewIdentifier("Platform Eng", "PROD")
	assert.Regexp(t, regexp.MustCompile(`^platform-eng_aws_prod_[0-9a-f]{8}$`), id)

	id = d.NewIdentifier("", "dev")
	assert.Regexp(t, regexp.MustCompile(`^unknown_aws_dev_[0-9a-f]{8}$`), id)
}

func TestSweepReenqueuesStalePending(t *testing.T) {
	repo := testRepo(t)
	queue := &fakeQueue{}
	d := NewDispatcher(repo, queue, policy.NewEngine(), "aws")

	id, err := d.Dispatch(context.Background(), janeProfile(), "dev", devParams())
	require.NoError(t, err)
	queue.enqueued = nil

	// A negative age puts the cutoff in the future so the fresh row counts
	// as stale.
	count, err := d.Sweep(context.Background(), -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{id}, queue.enqueued)
}

func TestSweepSkipsNonPending(t *testing.T) {
	repo := testRepo(t)
	queue := &fakeQueue{}
	d := NewDispatcher(repo, queue, policy.NewEngine(), "aws")

	id, err := d.Dispatch(context.Background(), janeProfile(), "dev", devParams())
	require.NoError(t, err)
	require.NoError(t, repo.RecordPullRequest(id, 7))
	queue.enqueued = nil

	count, err := d.Sweep(context.Background(), -time.Hour)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, queue.enqueued)
}

func TestAuthenticate(t *testing.T) {
	s := NewCallbackService(nil, nil, "secret")

	assert.NoError(t, s.Authenticate("Bearer secret"))
	assert.Error(t, s.Authenticate("Bearer wrong"))
	assert.Error(t, s.Authenticate("secret"))
	assert.Error(t, s.Authenticate(""))

	unconfigured := NewCallbackService(nil, nil, "")
	assert.Error(t, unconfigured.Authenticate("Bearer anything"))
}

func TestApplyDeliveryStatusTransitions(t *testing.T) {
	repo := testRepo(t)
	queue := &fakeQueue{}
	d := NewDispatcher(repo, queue, policy.NewEngine(), "aws")
	notifier := &recordingNotifier{}
	s := NewCallbackService(repo, notifier, "secret")
	ctx := context.Background()

	id, err := d.Dispatch(ctx, janeProfile(), "dev", devParams())
	require.NoError(t, err)

	require.NoError(t, s.ApplyDeliveryStatus(ctx, DeliveryStatusUpdate{
		RequestIdentifier: id, Status: db.StatusPRCreated, PRNumber: 42,
	}))
	stored, _ := repo.GetByIdentifier(id)
	assert.Equal(t, db.StatusPRCreated, stored.Status)
	assert.Equal(t, 42, stored.PRNumber)
	assert.Equal(t, "42", notifier.details["pr_number"])

	require.NoError(t, s.ApplyDeliveryStatus(ctx, DeliveryStatusUpdate{
		RequestIdentifier: id, Status: db.StatusDeployed,
		InstanceID: "i-0abc", PublicIP: "54.1.2.3",
	}))
	stored, _ = repo.GetByIdentifier(id)
	assert.Equal(t, db.StatusDeployed, stored.Status)
	assert.NotEmpty(t, stored.DeployedAt)
	assert.Equal(t, "i-0abc", notifier.details["instance_id"])
	assert.Equal(t, 2, notifier.calls)
}

func TestApplyDeliveryStatusIdempotent(t *testing.T) {
	repo := testRepo(t)
	d := NewDispatcher(repo, &fakeQueue{}, policy.NewEngine(), "aws")
	notifier := &recordingNotifier{}
	s := NewCallbackService(repo, notifier, "secret")
	ctx := context.Background()

	id, err := d.Dispatch(ctx, janeProfile(), "dev", devParams())
	require.NoError(t, err)

	update := DeliveryStatusUpdate{RequestIdentifier: id, Status: db.StatusDeployed, InstanceID: "i-0abc"}
	require.NoError(t, s.ApplyDeliveryStatus(ctx, update))
	require.NoError(t, s.ApplyDeliveryStatus(ctx, update))

	assert.Equal(t, 1, notifier.calls)
}

func TestApplyDeliveryStatusIgnoresPayloadOwner(t *testing.T) {
	repo := testRepo(t)
	d := NewDispatcher(repo, &fakeQueue{}, policy.NewEngine(), "aws")
	notifier := &recordingNotifier{}
	s := NewCallbackService(repo, notifier, "secret")
	ctx := context.Background()

	id, err := d.Dispatch(ctx, janeProfile(), "dev", devParams())
	require.NoError(t, err)

	// The payload's user_email is accepted but the stored owner wins.
	require.NoError(t, s.ApplyDeliveryStatus(ctx, DeliveryStatusUpdate{
		RequestIdentifier: id,
		UserEmail:         "someone.else@example.com",
		Status:            db.StatusDeployed,
	}))
	assert.Equal(t, "jane.doe@example.com", notifier.userEmail)
}

func TestApplyDeliveryStatusFailed(t *testing.T) {
	repo := testRepo(t)
	d := NewDispatcher(repo, &fakeQueue{}, policy.NewEngine(), "aws")
	s := NewCallbackService(repo, nil, "secret")
	ctx := context.Background()

	id, err := d.Dispatch(ctx, janeProfile(), "dev", devParams())
	require.NoError(t, err)

	require.NoError(t, s.ApplyDeliveryStatus(ctx, DeliveryStatusUpdate{
		RequestIdentifier: id, Status: db.StatusFailed, ErrorMessage: "apply exploded",
	}))
	stored, _ := repo.GetByIdentifier(id)
	assert.Equal(t, db.StatusFailed, stored.Status)
	assert.Equal(t, "apply exploded", stored.ErrorMessage)
}

func TestApplyDeliveryStatusUnknownRequest(t *testing.T) {
	s := NewCallbackService(testRepo(t), nil, "secret")
	err := s.ApplyDeliveryStatus(context.Background(), DeliveryStatusUpdate{
		RequestIdentifier: "nope", Status: db.StatusDeployed,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request not found")
}

func TestStoreDeliveryState(t *testing.T) {
	repo := testRepo(t)
	d := NewDispatcher(repo, &fakeQueue{}, policy.NewEngine(), "aws")
	s := NewCallbackService(repo, nil, "secret")
	ctx := context.Background()

	id, err := d.Dispatch(ctx, janeProfile(), "dev", devParams())
	require.NoError(t, err)

	ids := map[string]string{"instance_id": "i-0abc", "sg_id": "sg-0123"}
	require.NoError(t, s.StoreDeliveryState(ctx, id, `{"version":4}`, ids))

	state, err := repo.GetDeliveryState(id)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, ids, state.ResourceIDs)

	stored, _ := repo.GetByIdentifier(id)
	assert.Equal(t, db.StatusDeployed, stored.Status)
}
