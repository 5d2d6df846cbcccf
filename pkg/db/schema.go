package db

// Schema defines the SQLite database schema for provision requests.
// It creates the requests table with indexes for efficient querying,
// plus notifications for offline users and delivery_states for
// callback-reported infrastructure state.
const Schema = `
CREATE TABLE IF NOT EXISTS requests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_identifier TEXT NOT NULL UNIQUE,
    user_email TEXT NOT NULL,
    department TEXT NOT NULL,
    cloud_provider TEXT NOT NULL,
    environment TEXT NOT NULL,
    resource_type TEXT NOT NULL,
    parameters TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('pending', 'pr_created', 'pr_failed', 'deployed', 'failed')),
    pr_number INTEGER,
    error_message TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    deployed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_requests_identifier ON requests(request_identifier);
CREATE INDEX IF NOT EXISTS idx_requests_user_email ON requests(user_email);
CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status);
CREATE INDEX IF NOT EXISTS idx_requests_created_at ON requests(created_at);

CREATE TABLE IF NOT EXISTS notifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_email TEXT NOT NULL,
    request_identifier TEXT NOT NULL,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    status TEXT NOT NULL,
    details TEXT,
    is_read INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_email ON notifications(user_email);

CREATE TABLE IF NOT EXISTS delivery_states (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_identifier TEXT NOT NULL UNIQUE,
    state_blob TEXT,
    resource_ids TEXT,
    status TEXT NOT NULL DEFAULT 'deployed',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

// Status constants
const (
	StatusPending   = "pending"
	StatusPRCreated = "pr_created"
	StatusPRFailed  = "pr_failed"
	StatusDeployed  = "deployed"
	StatusFailed    = "failed"
)

// KeyPair is the keypair portion of a request's frozen parameters.
type KeyPair struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// ResourceRef selects a networking resource: default or an existing id.
type ResourceRef struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

// Parameters is the frozen parameter snapshot of a provision request.
type Parameters struct {
	InstanceType      string      `json:"instance_type"`
	Region            string      `json:"region"`
	OperatingSystem   string      `json:"operating_system"`
	StorageSize       int         `json:"storage_size"`
	KeyPair           KeyPair     `json:"key_pair"`
	VPC               ResourceRef `json:"vpc"`
	Subnet            ResourceRef `json:"subnet"`
	SecurityGroup     ResourceRef `json:"security_group"`
	AssociatePublicIP bool        `json:"associate_public_ip"`
}

// Request represents a persisted provision request
type Request struct {
	ID                int64
	RequestIdentifier string
	UserEmail         string
	Department        string
	CloudProvider     string
	Environment       string
	ResourceType      string
	Parameters        Parameters
	Status            string
	PRNumber          int
	ErrorMessage      string
	CreatedAt         string
	UpdatedAt         string
	DeployedAt        string
}

// Notification is a durable per-user delivery notification
type Notification struct {
	ID                int64
	UserEmail         string
	RequestIdentifier string
	Title             string
	Message           string
	Status            string
	Details           map[string]string
	IsRead            bool
	CreatedAt         string
}

// DeliveryState is the callback-reported infrastructure state for a request
type DeliveryState struct {
	ID                int64
	RequestIdentifier string
	StateBlob         string
	ResourceIDs       map[string]string
	Status            string
	CreatedAt         string
	UpdatedAt         string
}
