package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
	_ "modernc.org/sqlite"
)

// Repository provides database operations for provision requests
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository
func NewRepository(dbPath string) (*Repository, error) {
	slog.Info("database_init", "db_path", dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		slog.Error("database_open_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to open database")
	}

	// Create schema
	slog.Info("database_create_schema", "db_path", dbPath)
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		slog.Error("database_schema_failed", "db_path", dbPath, "error", err)
		return nil, errors.Wrap(err, "failed to create schema")
	}

	slog.Info("database_ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// CreateRequest inserts a new provision request record
func (r *Repository) CreateRequest(req *Request) error {
	slog.Info("database_create_request", "request_identifier", req.RequestIdentifier, "status", req.Status)

	params, err := json.Marshal(req.Parameters)
	if err != nil {
		return errors.Wrap(err, "failed to marshal parameters")
	}

	query := `
		INSERT INTO requests (request_identifier, user_email, department, cloud_provider,
		                      environment, resource_type, parameters, status, pr_number, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.Exec(query,
		req.RequestIdentifier, req.UserEmail, req.Department, req.CloudProvider,
		req.Environment, req.ResourceType, string(params), req.Status, req.PRNumber, req.ErrorMessage)
	if err != nil {
		slog.Error("database_insert_failed", "request_identifier", req.RequestIdentifier, "error", err)
		return errors.Wrap(err, "failed to insert request")
	}

	id, err := result.LastInsertId()
	if err != nil {
		slog.Error("database_last_insert_id_failed", "request_identifier", req.RequestIdentifier, "error", err)
		return errors.Wrap(err, "failed to get last insert id")
	}
	req.ID = id

	slog.Info("database_request_created", "request_identifier", req.RequestIdentifier, "request_id", req.ID, "status", req.Status)
	return nil
}

const requestColumns = `id, request_identifier, user_email, department, cloud_provider,
	       environment, resource_type, parameters, status, pr_number, error_message,
	       created_at, updated_at, deployed_at`

func scanRequest(row interface{ Scan(...any) error }) (*Request, error) {
	var req Request
	var params string
	var prNumber sql.NullInt64
	var errorMessage, deployedAt sql.NullString

	err := row.Scan(
		&req.ID, &req.RequestIdentifier, &req.UserEmail, &req.Department, &req.CloudProvider,
		&req.Environment, &req.ResourceType, &params, &req.Status, &prNumber, &errorMessage,
		&req.CreatedAt, &req.UpdatedAt, &deployedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(params), &req.Parameters); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal parameters")
	}

	// Handle nullable fields
	req.PRNumber = int(prNumber.Int64)
	req.ErrorMessage = errorMessage.String
	req.DeployedAt = deployedAt.String

	return &req, nil
}

// GetByIdentifier retrieves a request by its unique identifier
func (r *Repository) GetByIdentifier(identifier string) (*Request, error) {
	slog.Info("database_query_request", "request_identifier", identifier)

	query := `SELECT ` + requestColumns + ` FROM requests WHERE request_identifier = ?`
	req, err := scanRequest(r.db.QueryRow(query, identifier))

	if err == sql.ErrNoRows {
		slog.Info("database_request_not_found", "request_identifier", identifier)
		return nil, nil // Not found
	}
	if err != nil {
		slog.Error("database_query_failed", "request_identifier", identifier, "error", err)
		return nil, errors.Wrap(err, "failed to query request")
	}

	slog.Info("database_request_found", "request_identifier", identifier, "request_id", req.ID, "status", req.Status)
	return req, nil
}

// UpdateStatus updates the status and error message of a request
func (r *Repository) UpdateStatus(identifier, status, errorMessage string) error {
	slog.Info("database_update_status", "request_identifier", identifier, "status", status)

	query := `UPDATE requests SET status = ?, error_message = ?, updated_at = CURRENT_TIMESTAMP WHERE request_identifier = ?`
	result, err := r.db.Exec(query, status, errorMessage, identifier)
	if err != nil {
		slog.Error("database_status_update_failed", "request_identifier", identifier, "status", status, "error", err)
		return errors.Wrap(err, "failed to update status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		slog.Error("database_request_not_found_for_update", "request_identifier", identifier)
		return fmt.Errorf("request not found: %s", identifier)
	}

	slog.Info("database_status_updated", "request_identifier", identifier, "status", status)
	return nil
}

// RecordPullRequest persists the PR number and moves the request to pr_created.
// This is the serialization point of the delivery pipeline: once recorded,
// later stage failures never erase the PR linkage.
func (r *Repository) RecordPullRequest(identifier string, prNumber int) error {
	slog.Info("database_record_pull_request", "request_identifier", identifier, "pr_number", prNumber)

	query := `UPDATE requests SET status = ?, pr_number = ?, error_message = '', updated_at = CURRENT_TIMESTAMP WHERE request_identifier = ?`
	result, err := r.db.Exec(query, StatusPRCreated, prNumber, identifier)
	if err != nil {
		slog.Error("database_record_pr_failed", "request_identifier", identifier, "error", err)
		return errors.Wrap(err, "failed to record pull request")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return fmt.Errorf("request not found: %s", identifier)
	}

	slog.Info("database_pull_request_recorded", "request_identifier", identifier, "pr_number", prNumber)
	return nil
}

// MarkDeployed moves a request to deployed and stamps deployed_at
func (r *Repository) MarkDeployed(identifier string) error {
	slog.Info("database_mark_deployed", "request_identifier", identifier)

	query := `UPDATE requests SET status = ?, deployed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE request_identifier = ?`
	result, err := r.db.Exec(query, StatusDeployed, identifier)
	if err != nil {
		slog.Error("database_mark_deployed_failed", "request_identifier", identifier, "error", err)
		return errors.Wrap(err, "failed to mark deployed")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return fmt.Errorf("request not found: %s", identifier)
	}

	slog.Info("database_request_deployed", "request_identifier", identifier)
	return nil
}

// ListByUser retrieves all requests owned by a user, newest first
func (r *Repository) ListByUser(userEmail string) ([]*Request, error) {
	slog.Info("database_list_requests", "user_email", userEmail)

	query := `SELECT ` + requestColumns + ` FROM requests WHERE user_email = ? ORDER BY created_at DESC`
	return r.listRequests(query, userEmail)
}

// ListRequests retrieves all requests, newest first
func (r *Repository) ListRequests() ([]*Request, error) {
	slog.Info("database_list_requests")

	query := `SELECT ` + requestColumns + ` FROM requests ORDER BY created_at DESC`
	return r.listRequests(query)
}

// ListPendingOlderThan retrieves pending requests created before the cutoff.
// Used by the reconciliation sweep to re-enqueue requests whose delivery
// job was lost.
func (r *Repository) ListPendingOlderThan(age time.Duration) ([]*Request, error) {
	cutoff := time.Now().UTC().Add(-age).Format("2006-01-02 15:04:05")
	slog.Info("database_list_pending_stale", "cutoff", cutoff)

	query := `SELECT ` + requestColumns + ` FROM requests WHERE status = ? AND created_at < ? ORDER BY created_at ASC`
	return r.listRequests(query, StatusPending, cutoff)
}

func (r *Repository) listRequests(query string, args ...any) ([]*Request, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		slog.Error("database_list_query_failed", "error", err)
		return nil, errors.Wrap(err, "failed to list requests")
	}
	defer rows.Close()

	var requests []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			slog.Error("database_scan_row_failed", "error", err)
			return nil, errors.Wrap(err, "failed to scan row")
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		slog.Error("database_rows_error", "error", err)
		return nil, errors.Wrap(err, "rows error")
	}

	slog.Info("database_list_complete", "request_count", len(requests))
	return requests, nil
}

// CreateNotification stores a durable notification for a user
func (r *Repository) CreateNotification(n *Notification) error {
	slog.Info("database_create_notification", "user_email", n.UserEmail, "request_identifier", n.RequestIdentifier, "status", n.Status)

	details, err := json.Marshal(n.Details)
	if err != nil {
		return errors.Wrap(err, "failed to marshal details")
	}

	query := `
		INSERT INTO notifications (user_email, request_identifier, title, message, status, details, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.Exec(query, n.UserEmail, n.RequestIdentifier, n.Title, n.Message, n.Status, string(details), n.IsRead)
	if err != nil {
		slog.Error("database_notification_insert_failed", "user_email", n.UserEmail, "error", err)
		return errors.Wrap(err, "failed to insert notification")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to get last insert id")
	}
	n.ID = id

	return nil
}

// ListNotifications retrieves a user's notifications, newest first
func (r *Repository) ListNotifications(userEmail string) ([]*Notification, error) {
	query := `
		SELECT id, user_email, request_identifier, title, message, status, details, is_read, created_at
		FROM notifications WHERE user_email = ? ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query, userEmail)
	if err != nil {
		slog.Error("database_notifications_query_failed", "user_email", userEmail, "error", err)
		return nil, errors.Wrap(err, "failed to list notifications")
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		var n Notification
		var details sql.NullString
		var isRead int

		err := rows.Scan(&n.ID, &n.UserEmail, &n.RequestIdentifier, &n.Title, &n.Message, &n.Status, &details, &isRead, &n.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan row")
		}

		if details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &n.Details); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal details")
			}
		}
		n.IsRead = isRead != 0

		notifications = append(notifications, &n)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}

	return notifications, nil
}

// UpsertDeliveryState inserts or updates the delivery state for a request
func (r *Repository) UpsertDeliveryState(identifier, stateBlob string, resourceIDs map[string]string) error {
	slog.Info("database_upsert_delivery_state", "request_identifier", identifier)

	ids, err := json.Marshal(resourceIDs)
	if err != nil {
		return errors.Wrap(err, "failed to marshal resource ids")
	}

	query := `
		INSERT INTO delivery_states (request_identifier, state_blob, resource_ids, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(request_identifier) DO UPDATE SET
			state_blob = excluded.state_blob,
			resource_ids = excluded.resource_ids,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.Exec(query, identifier, stateBlob, string(ids), StatusDeployed); err != nil {
		slog.Error("database_delivery_state_upsert_failed", "request_identifier", identifier, "error", err)
		return errors.Wrap(err, "failed to upsert delivery state")
	}

	slog.Info("database_delivery_state_stored", "request_identifier", identifier)
	return nil
}

// GetDeliveryState retrieves the delivery state for a request
func (r *Repository) GetDeliveryState(identifier string) (*DeliveryState, error) {
	query := `
		SELECT id, request_identifier, state_blob, resource_ids, status, created_at, updated_at
		FROM delivery_states WHERE request_identifier = ?
	`
	var ds DeliveryState
	var stateBlob, resourceIDs sql.NullString

	err := r.db.QueryRow(query, identifier).Scan(
		&ds.ID, &ds.RequestIdentifier, &stateBlob, &resourceIDs, &ds.Status, &ds.CreatedAt, &ds.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil // Not found
	}
	if err != nil {
		slog.Error("database_delivery_state_query_failed", "request_identifier", identifier, "error", err)
		return nil, errors.Wrap(err, "failed to query delivery state")
	}

	ds.StateBlob = stateBlob.String
	if resourceIDs.String != "" {
		if err := json.Unmarshal([]byte(resourceIDs.String), &ds.ResourceIDs); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal resource ids")
		}
	}

	return &ds, nil
}
