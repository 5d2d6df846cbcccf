package db

import (
	"path/filepath"
	"testing"
	"time"
)

func testRepository(t *testing.T) *Repository {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	repo, err := NewRepository(dbPath)
	if err != nil {
		t.Fatalf("NewRepository failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testRequest(identifier string) *Request {
	return &Request{
		RequestIdentifier: identifier,
		UserEmail:         "dev@example.com",
		Department:        "Engineering",
		CloudProvider:     "aws",
		Environment:       "dev",
		ResourceType:      "ec2",
		Parameters: Parameters{
			InstanceType:      "t3.micro",
			Region:            "us-east-1",
			OperatingSystem:   "ubuntu",
			StorageSize:       20,
			KeyPair:           KeyPair{Type: "new", Name: "auto-engineering-abc123"},
			VPC:               ResourceRef{Mode: "default"},
			Subnet:            ResourceRef{Mode: "default"},
			SecurityGroup:     ResourceRef{Mode: "default"},
			AssociatePublicIP: true,
		},
		Status: StatusPending,
	}
}

func TestCreateAndGetRequest(t *testing.T) {
	repo := testRepository(t)

	req := testRequest("engineering_aws_dev_deadbeef")
	if err := repo.CreateRequest(req); err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	if req.ID == 0 {
		t.Error("expected ID to be set after insert")
	}

	got, err := repo.GetByIdentifier("engineering_aws_dev_deadbeef")
	if err != nil {
		t.Fatalf("GetByIdentifier failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected request, got nil")
	}
	if got.Status != StatusPending {
		t.Errorf("expected status %s, got %s", StatusPending, got.Status)
	}
	if got.Parameters.InstanceType != "t3.micro" {
		t.Errorf("expected instance type t3.micro, got %s", got.Parameters.InstanceType)
	}
	if got.Parameters.KeyPair.Name != "auto-engineering-abc123" {
		t.Errorf("unexpected keypair name: %s", got.Parameters.KeyPair.Name)
	}
}

func TestGetByIdentifierNotFound(t *testing.T) {
	repo := testRepository(t)

	got, err := repo.GetByIdentifier("missing")
	if err != nil {
		t.Fatalf("GetByIdentifier failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing request, got %+v", got)
	}
}

func TestDuplicateIdentifierRejected(t *testing.T) {
	repo := testRepository(t)

	req := testRequest("engineering_aws_dev_aaaa1111")
	if err := repo.CreateRequest(req); err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	if err := repo.CreateRequest(testRequest("engineering_aws_dev_aaaa1111")); err == nil {
		t.Error("expected unique constraint violation for duplicate identifier")
	}
}

func TestRecordPullRequest(t *testing.T) {
	repo := testRepository(t)

	req := testRequest("engineering_aws_dev_bbbb2222")
	if err := repo.CreateRequest(req); err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	if err := repo.RecordPullRequest("engineering_aws_dev_bbbb2222", 42); err != nil {
		t.Fatalf("RecordPullRequest failed: %v", err)
	}

	got, err := repo.GetByIdentifier("engineering_aws_dev_bbbb2222")
	if err != nil {
		t.Fatalf("GetByIdentifier failed: %v", err)
	}
	if got.Status != StatusPRCreated {
		t.Errorf("expected status %s, got %s", StatusPRCreated, got.Status)
	}
	if got.PRNumber != 42 {
		t.Errorf("expected PR number 42, got %d", got.PRNumber)
	}
}

func TestRecordPullRequestMissingRequest(t *testing.T) {
	repo := testRepository(t)

	if err := repo.RecordPullRequest("missing", 1); err == nil {
		t.Error("expected error for missing request")
	}
}

func TestUpdateStatusAndMarkDeployed(t *testing.T) {
	repo := testRepository(t)

	req := testRequest("engineering_aws_dev_cccc3333")
	if err := repo.CreateRequest(req); err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	if err := repo.UpdateStatus("engineering_aws_dev_cccc3333", StatusPRFailed, "push rejected"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, _ := repo.GetByIdentifier("engineering_aws_dev_cccc3333")
	if got.Status != StatusPRFailed || got.ErrorMessage != "push rejected" {
		t.Errorf("unexpected state after UpdateStatus: %s / %s", got.Status, got.ErrorMessage)
	}

	if err := repo.MarkDeployed("engineering_aws_dev_cccc3333"); err != nil {
		t.Fatalf("MarkDeployed failed: %v", err)
	}
	got, _ = repo.GetByIdentifier("engineering_aws_dev_cccc3333")
	if got.Status != StatusDeployed {
		t.Errorf("expected status %s, got %s", StatusDeployed, got.Status)
	}
	if got.DeployedAt == "" {
		t.Error("expected deployed_at to be stamped")
	}
}

func TestListByUser(t *testing.T) {
	repo := testRepository(t)

	first := testRequest("engineering_aws_dev_dddd4444")
	if err := repo.CreateRequest(first); err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	other := testRequest("finance_aws_dev_eeee5555")
	other.UserEmail = "someone.else@example.com"
	if err := repo.CreateRequest(other); err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	requests, err := repo.ListByUser("dev@example.com")
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(requests))
	}
	if requests[0].RequestIdentifier != "engineering_aws_dev_dddd4444" {
		t.Errorf("unexpected request: %s", requests[0].RequestIdentifier)
	}
}

func TestListPendingOlderThan(t *testing.T) {
	repo := testRepository(t)

	stale := testRequest("engineering_aws_dev_ffff6666")
	if err := repo.CreateRequest(stale); err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	done := testRequest("engineering_aws_dev_aaaa7777")
	if err := repo.CreateRequest(done); err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	if err := repo.RecordPullRequest("engineering_aws_dev_aaaa7777", 7); err != nil {
		t.Fatalf("RecordPullRequest failed: %v", err)
	}

	// A negative age puts the cutoff in the future, so every pending row qualifies.
	requests, err := repo.ListPendingOlderThan(-time.Hour)
	if err != nil {
		t.Fatalf("ListPendingOlderThan failed: %v", err)
	}
	if len(requests) != 1 {
		t.Fatalf("expected 1 stale pending request, got %d", len(requests))
	}
	if requests[0].RequestIdentifier != "engineering_aws_dev_ffff6666" {
		t.Errorf("unexpected request: %s", requests[0].RequestIdentifier)
	}

	// With a large age, nothing is old enough yet.
	requests, err = repo.ListPendingOlderThan(24 * time.Hour)
	if err != nil {
		t.Fatalf("ListPendingOlderThan failed: %v", err)
	}
	if len(requests) != 0 {
		t.Errorf("expected no stale requests, got %d", len(requests))
	}
}

func TestNotifications(t *testing.T) {
	repo := testRepository(t)

	n := &Notification{
		UserEmail:         "dev@example.com",
		RequestIdentifier: "engineering_aws_dev_bbbb8888",
		Title:             "Deployment Successful - bbbb8888",
		Message:           "Your infrastructure is ready",
		Status:            StatusDeployed,
		Details:           map[string]string{"instance_id": "i-0abc", "public_ip": "203.0.113.10"},
	}
	if err := repo.CreateNotification(n); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}

	notifications, err := repo.ListNotifications("dev@example.com")
	if err != nil {
		t.Fatalf("ListNotifications failed: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications))
	}
	if notifications[0].Details["instance_id"] != "i-0abc" {
		t.Errorf("unexpected details: %v", notifications[0].Details)
	}
	if notifications[0].IsRead {
		t.Error("expected notification to be unread")
	}
}

func TestUpsertDeliveryState(t *testing.T) {
	repo := testRepository(t)

	ids := map[string]string{"instance_id": "i-0abc"}
	if err := repo.UpsertDeliveryState("engineering_aws_dev_cccc9999", "blob-v1", ids); err != nil {
		t.Fatalf("UpsertDeliveryState failed: %v", err)
	}

	// Second upsert for the same identifier updates in place.
	ids["public_ip"] = "203.0.113.10"
	if err := repo.UpsertDeliveryState("engineering_aws_dev_cccc9999", "blob-v2", ids); err != nil {
		t.Fatalf("UpsertDeliveryState (update) failed: %v", err)
	}

	ds, err := repo.GetDeliveryState("engineering_aws_dev_cccc9999")
	if err != nil {
		t.Fatalf("GetDeliveryState failed: %v", err)
	}
	if ds == nil {
		t.Fatal("expected delivery state, got nil")
	}
	if ds.StateBlob != "blob-v2" {
		t.Errorf("expected updated blob, got %s", ds.StateBlob)
	}
	if ds.ResourceIDs["public_ip"] != "203.0.113.10" {
		t.Errorf("unexpected resource ids: %v", ds.ResourceIDs)
	}
	if ds.Status != StatusDeployed {
		t.Errorf("expected status %s, got %s", StatusDeployed, ds.Status)
	}
}
