// Package conversation implements the chat flow that turns a free-form
// provisioning request into a dispatched, policy-checked configuration. Each
// user walks an explicit step machine: requirement gathering, technical
// approval, networking selection, keypair setup, security approval, and the
// final deploy confirmation.
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/catalog"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/extract"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/policy"
)

// Button is one quick-reply option attached to a reply.
type Button struct {
	Text   string `json:"text"`
	Action string `json:"action"`
}

// Reply is the engine's answer to one user message.
type Reply struct {
	Message       string   `json:"message"`
	Buttons       []Button `json:"buttons,omitempty"`
	ShowTextInput bool     `json:"show_text_input"`
}

// Step names
const (
	stepInitial                   = "initial"
	stepAskEnvironment            = "ask_environment"
	stepAskInstanceType           = "ask_instance_type"
	stepAskOS                     = "ask_os"
	stepAskStorage                = "ask_storage"
	stepAskRegion                 = "ask_region"
	stepAwaitingTechnicalApproval = "awaiting_technical_approval"
	stepAskResourceMode           = "ask_resource_mode"
	stepAskExistingVPC            = "ask_existing_vpc"
	stepAskExistingSubnet         = "ask_existing_subnet"
	stepAskExistingSG             = "ask_existing_sg"
	stepAskKeyPairMode            = "ask_keypair_mode"
	stepAskKeyPairName            = "ask_keypair_name"
	stepAwaitingSecurityApproval  = "awaiting_security_approval"
	stepDeployConfirm             = "deploy_confirm"
	stepApprovalRequest           = "approval_request"
)

// Extractor pulls structured requirements out of the opening message.
type Extractor interface {
	Extract(ctx context.Context, message, department string) extract.RequirementSet
}

// Dispatcher persists and enqueues a confirmed request.
type Dispatcher interface {
	Dispatch(ctx context.Context, profile policy.Profile, environment string, params db.Parameters) (string, error)
}

// ApprovalSender routes environment access requests to a manager.
type ApprovalSender interface {
	SendEnvironmentApproval(ctx context.Context, managerEmail, userName, environment, approvalID string) error
}

// Catalog is the read-only cloud inventory used for "existing" selections.
type Catalog interface {
	Available(ctx context.Context) bool
	VPCs(ctx context.Context) []catalog.VPC
	VPCByID(ctx context.Context, id string) *catalog.VPC
	Subnets(ctx context.Context, vpcID string) []catalog.Subnet
	SubnetByID(ctx context.Context, id string) *catalog.Subnet
	SecurityGroups(ctx context.Context, vpcID string) []catalog.SecurityGroup
	SecurityGroupRules(ctx context.Context, id string) *catalog.RuleSet
}

// Engine drives per-user conversations. Safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	sessions map[string]*session

	policy     *policy.Engine
	extractor  Extractor
	dispatcher Dispatcher
	approvals  ApprovalSender
	catalog    Catalog
}

// NewEngine creates a conversation engine. catalog and approvals may be nil;
// the flow degrades to default selections and disabled approval mail.
func NewEngine(policyEngine *policy.Engine, extractor Extractor, dispatcher Dispatcher, approvals ApprovalSender, cat Catalog) *Engine {
	return &Engine{
		sessions:   make(map[string]*session),
		policy:     policyEngine,
		extractor:  extractor,
		dispatcher: dispatcher,
		approvals:  approvals,
		catalog:    cat,
	}
}

var cancelTokens = map[string]bool{"cancel": true, "stop": true, "abort": true}

// HandleMessage processes one user message and returns the next reply.
func (e *Engine) HandleMessage(ctx context.Context, profile policy.Profile, message string) Reply {
	msg := strings.TrimSpace(message)

	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[profile.Email]
	if !ok {
		s = newSession()
		e.sessions[profile.Email] = s
	}

	if cancelTokens[normalize(msg)] {
		e.sessions[profile.Email] = newSession()
		return Reply{Message: "Cancelled. Ready for new request.", ShowTextInput: true}
	}

	slog.Info("conversation_message", "user_email", profile.Email, "step", s.step)

	switch s.step {
	case stepAskEnvironment:
		return e.handleEnvironmentSelection(ctx, s, profile, msg)
	case stepAskInstanceType:
		return e.handleInstanceType(ctx, s, profile, msg)
	case stepAskOS:
		return e.handleOperatingSystem(ctx, s, profile, msg)
	case stepAskStorage:
		return e.handleStorage(ctx, s, profile, msg)
	case stepAskRegion:
		return e.handleRegion(ctx, s, profile, msg)
	case stepAwaitingTechnicalApproval:
		return e.handleTechnicalApproval(ctx, s, profile, msg)
	case stepAskResourceMode:
		return e.handleResourceMode(ctx, s, profile, msg)
	case stepAskExistingVPC:
		return e.handleExistingVPC(ctx, s, profile, msg)
	case stepAskExistingSubnet:
		return e.handleExistingSubnet(ctx, s, profile, msg)
	case stepAskExistingSG:
		return e.handleExistingSG(ctx, s, profile, msg)
	case stepAskKeyPairMode:
		return e.handleKeyPairMode(ctx, s, profile, msg)
	case stepAskKeyPairName:
		return e.handleKeyPairName(ctx, s, profile, msg)
	case stepAwaitingSecurityApproval:
		return e.handleSecurityApproval(ctx, s, profile, msg)
	case stepDeployConfirm:
		return e.handleDeployConfirm(ctx, s, profile, msg)
	case stepApprovalRequest:
		return e.handleApprovalResponse(ctx, s, profile, msg)
	default:
		return e.handleInitial(ctx, s, profile, msg)
	}
}

// Reset clears a user's conversation state.
func (e *Engine) Reset(email string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[email] = newSession()
}

func (e *Engine) reset(email string) *session {
	s := newSession()
	e.sessions[email] = s
	return s
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func yesNoButtons() []Button {
	return []Button{{Text: "Yes", Action: "yes"}, {Text: "No", Action: "no"}}
}

func defaultCancelButtons() []Button {
	return []Button{{Text: "Default", Action: "default"}, {Text: "Cancel", Action: "cancel"}}
}
