package conversation

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/catalog"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/notify"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/policy"
)

func keyPairButtons() []Button {
	return []Button{
		{Text: "Use Existing", Action: "existing"},
		{Text: "Create New", Action: "new"},
		{Text: "Auto-generate", Action: "auto"},
	}
}

func (e *Engine) configureKeyPair(s *session) Reply {
	s.step = stepAskKeyPairMode
	return Reply{
		Message:       "SSH Keypair setup:",
		Buttons:       keyPairButtons(),
		ShowTextInput: true,
	}
}

func autoKeyPairName(department string) string {
	dept := strings.ToLower(strings.TrimSpace(department))
	dept = strings.ReplaceAll(dept, " ", "-")
	if dept == "" {
		dept = "user"
	}
	u := uuid.New()
	return fmt.Sprintf("auto-%s-%s", dept, hex.EncodeToString(u[:])[:6])
}

func (e *Engine) handleKeyPairMode(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	mode := normalize(msg)
	switch mode {
	case "auto", "auto-generate", "autogenerate", "auto generate":
		mode = "auto"
	case "existing", "use existing", "use-existing":
		mode = "existing"
	case "new", "create new", "create-new":
		mode = "new"
	default:
		return Reply{
			Message:       "Please choose 'existing', 'new', or 'auto' for keypair setup",
			Buttons:       keyPairButtons(),
			ShowTextInput: true,
		}
	}

	switch mode {
	case "existing":
		s.step = stepAskKeyPairName
		s.keyPair = db.KeyPair{Type: "existing"}
		s.keyPairSet = true
		return Reply{Message: "Enter the name of existing keypair:", ShowTextInput: true}

	case "new":
		s.step = stepAskKeyPairName
		s.keyPair = db.KeyPair{Type: "new"}
		s.keyPairSet = true
		return Reply{Message: "Enter name for new keypair (or type 'auto' to auto-generate):", ShowTextInput: true}

	default: // auto
		s.keyPair = db.KeyPair{Type: "new", Name: autoKeyPairName(profile.Department)}
		s.keyPairSet = true
		return e.beginSecurityApproval(s)
	}
}

func (e *Engine) handleKeyPairName(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	name := strings.TrimSpace(msg)
	if name == "" {
		return Reply{Message: "Please provide a keypair name or type 'auto'", ShowTextInput: true}
	}

	if strings.EqualFold(name, "auto") {
		s.keyPair.Name = autoKeyPairName(profile.Department)
	} else {
		s.keyPair.Name = name
	}

	return e.beginSecurityApproval(s)
}

func (e *Engine) beginSecurityApproval(s *session) Reply {
	s.step = stepAwaitingSecurityApproval
	return Reply{
		Message:       fmt.Sprintf("Security Approval Required:\n\n%s\n\nApprove this security configuration?", e.securitySummary(s)),
		Buttons:       yesNoButtons(),
		ShowTextInput: true,
	}
}

// securitySummary renders the rules the instance will launch with: the fixed
// default set, or the cached live rules of the chosen group.
func (e *Engine) securitySummary(s *session) string {
	if s.sgMode != "existing" || s.sgID == "" {
		rules := catalog.DefaultRules()
		var b strings.Builder
		b.WriteString("DEFAULT Security Group Rules:\n\n")
		b.WriteString("INBOUND (Ingress):\n")
		for _, rule := range rules.Ingress {
			fmt.Fprintf(&b, "  - %s: %s %s from %s\n",
				rule.Description, strings.ToUpper(rule.Protocol), portInfo(rule), strings.Join(rule.Ranges, ", "))
		}
		b.WriteString("\nOUTBOUND (Egress):\n")
		for _, rule := range rules.Egress {
			fmt.Fprintf(&b, "  - %s: All protocols/ports to %s\n", rule.Description, strings.Join(rule.Ranges, ", "))
		}
		return b.String()
	}

	rules := s.sgRules[s.sgID]
	if rules == nil || (len(rules.Ingress) == 0 && len(rules.Egress) == 0) {
		return fmt.Sprintf("EXISTING Security Group (%s):\n\n"+
			"Unable to fetch detailed security rules.\n"+
			"Please verify the security group manually or choose the default security group for standard web/SSH access.", s.sgID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "EXISTING Security Group (%s) Rules:\n\n", s.sgID)

	b.WriteString("INBOUND (Ingress):\n")
	if len(rules.Ingress) == 0 {
		b.WriteString("  No inbound rules\n")
	}
	for i, rule := range rules.Ingress {
		fmt.Fprintf(&b, "  %d. %s %s from %s\n", i+1, strings.ToUpper(rule.Protocol), portInfo(rule), rangesOr(rule.Ranges, "No sources"))
	}

	b.WriteString("\nOUTBOUND (Egress):\n")
	if len(rules.Egress) == 0 {
		b.WriteString("  No outbound rules\n")
	}
	for i, rule := range rules.Egress {
		fmt.Fprintf(&b, "  %d. %s %s to %s\n", i+1, strings.ToUpper(rule.Protocol), portInfo(rule), rangesOr(rule.Ranges, "No destinations"))
	}

	return b.String()
}

func portInfo(rule catalog.Rule) string {
	if rule.Protocol == "-1" || rule.FromPort == -1 {
		return "All ports"
	}
	if rule.FromPort == rule.ToPort {
		return fmt.Sprintf("Port %d", rule.FromPort)
	}
	return fmt.Sprintf("Ports %d-%d", rule.FromPort, rule.ToPort)
}

func rangesOr(ranges []string, fallback string) string {
	if len(ranges) == 0 {
		return fallback
	}
	return strings.Join(ranges, ", ")
}

func (e *Engine) handleSecurityApproval(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	response := normalize(msg)

	switch {
	case approveTokens[response]:
		s.securityApproved = true
		return e.deployConfirmation(s, profile)

	case denyTokens[response]:
		e.reset(profile.Email)
		return Reply{Message: "Security configuration rejected. Request cancelled.", ShowTextInput: true}
	}

	return Reply{Message: "Please answer yes or no for security approval.", ShowTextInput: true}
}

func (e *Engine) deployConfirmation(s *session, profile policy.Profile) Reply {
	if !s.technicalApproved || !s.securityApproved {
		return Reply{Message: "Both technical and security approvals required before deployment.", ShowTextInput: true}
	}

	s.step = stepDeployConfirm
	return Reply{
		Message:       fmt.Sprintf("Ready for Deployment:\n\n%s\n\nDeploy this configuration?", e.deploymentSummary(s)),
		Buttons:       []Button{{Text: "Deploy", Action: "deploy"}, {Text: "Cancel", Action: "cancel"}},
		ShowTextInput: true,
	}
}

func (e *Engine) deploymentSummary(s *session) string {
	describe := func(mode, id string) string {
		if mode == "" {
			mode = "default"
		}
		if id != "" {
			return fmt.Sprintf("%s: %s", mode, id)
		}
		return mode
	}

	keypair := fmt.Sprintf("%s keypair", s.keyPair.Type)
	if s.keyPair.Type == "" {
		keypair = "unknown keypair"
	}
	if s.keyPair.Name != "" {
		keypair += fmt.Sprintf(": %s", s.keyPair.Name)
	}

	return fmt.Sprintf("Environment: %s\nInstance Type: %s\nOperating System: %s\nStorage: %dGB\nRegion: %s\nVPC: %s\nSubnet: %s\nSecurity Group: %s\nKeypair: %s",
		strings.ToUpper(s.environment), s.instanceType, s.operatingSystem, s.storageSize, s.region,
		describe(s.vpcMode, s.vpcID), describe(s.subnetMode, s.subnetID), describe(s.sgMode, s.sgID), keypair)
}

var deployTokens = map[string]bool{"deploy": true, "yes": true, "y": true}

func (e *Engine) handleDeployConfirm(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	if !deployTokens[normalize(msg)] {
		e.reset(profile.Email)
		return Reply{Message: "Deployment cancelled. Ready for new request.", ShowTextInput: true}
	}

	environment := s.environment
	params := s.parameters()
	e.reset(profile.Email)

	identifier, err := e.dispatcher.Dispatch(ctx, profile, environment, params)
	if err != nil {
		return Reply{
			Message:       fmt.Sprintf("Deployment failed: %v\n\nPlease try again or contact support.", err),
			ShowTextInput: true,
		}
	}

	return Reply{
		Message: fmt.Sprintf("Deployment initiated successfully!\n\nRequest ID: %s\n\nYour EC2 instance is being provisioned. You'll receive notifications when it's ready.",
			notify.ShortID(identifier)),
		ShowTextInput: true,
	}
}

func (e *Engine) handleApprovalResponse(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	response := normalize(msg)

	switch response {
	case "yes", "y":
		environment := s.requestedEnvironment
		if environment == "" {
			environment = "dev"
		}

		if e.approvals == nil {
			e.reset(profile.Email)
			return Reply{Message: "Approval routing is not configured. Contact your manager directly.", ShowTextInput: true}
		}

		u := uuid.New()
		approvalID := fmt.Sprintf("approval_%s", hex.EncodeToString(u[:])[:8])

		// The answer ends the escalation either way; the session resets
		// even when the send fails.
		e.reset(profile.Email)

		if err := e.approvals.SendEnvironmentApproval(ctx, profile.ManagerEmail, profile.Name, environment, approvalID); err != nil {
			return Reply{Message: fmt.Sprintf("Failed to send approval request: %v", err), ShowTextInput: true}
		}
		return Reply{
			Message: fmt.Sprintf("Approval request sent to %s for %s environment access.\n\nYou'll receive notification when decided.",
				profile.ManagerEmail, strings.ToUpper(environment)),
			ShowTextInput: true,
		}

	case "no", "n":
		e.reset(profile.Email)
		return Reply{Message: "Environment approval request cancelled. Ready for new request.", ShowTextInput: true}
	}

	return Reply{Message: "Please answer yes or no.", ShowTextInput: true}
}
