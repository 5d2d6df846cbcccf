package conversation

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/policy"
)

var intentWords = []string{"ec2", "instance", "server", "vm", "create", "deploy"}

// normalizeEnvironment canonicalizes environment spellings, "" when invalid.
func normalizeEnvironment(text string) string {
	switch normalize(text) {
	case "dev", "development":
		return "dev"
	case "qa", "test", "testing":
		return "qa"
	case "prod", "production":
		return "prod"
	}
	return ""
}

var (
	regionShapeRe   = regexp.MustCompile(`^[a-z]{2}-[a-z]+-\d+$`)
	regionCollapsed = regexp.MustCompile(`^([a-z]{2})([a-z]+)(\d)$`)
	digitsRe        = regexp.MustCompile(`\d+`)
)

// normalizeRegion canonicalizes region spellings like useast1 or us_east_1,
// "" when the result is not a region code.
func normalizeRegion(text string) string {
	t := normalize(text)
	t = strings.ReplaceAll(t, "_", "-")
	if m := regionCollapsed.FindStringSubmatch(t); m != nil {
		t = fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3])
	}
	if regionShapeRe.MatchString(t) {
		return t
	}
	return ""
}

func (e *Engine) handleInitial(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	low := normalize(msg)
	hasIntent := false
	for _, word := range intentWords {
		if strings.Contains(low, word) {
			hasIntent = true
			break
		}
	}
	if !hasIntent {
		return Reply{Message: "I help you create cloud resources. What would you like to deploy?", ShowTextInput: true}
	}

	set := e.extractor.Extract(ctx, msg, profile.Department)
	if set.Environment != nil {
		if env := normalizeEnvironment(*set.Environment); env != "" {
			s.environment = env
		}
	}
	if set.InstanceType != nil {
		s.instanceType = *set.InstanceType
	}
	if set.OperatingSystem != nil {
		s.operatingSystem = *set.OperatingSystem
	}
	if set.StorageSize != nil {
		s.storageSize = *set.StorageSize
	}
	if set.Region != nil {
		if region := normalizeRegion(*set.Region); region != "" {
			s.region = region
		}
	}

	if s.environment == "" {
		return e.askEnvironment(s, profile)
	}
	if !e.policy.CheckEnvironmentAccess(profile, s.environment) {
		return e.offerApprovalRequest(s, profile, s.environment)
	}

	if missing := s.missingFields(); len(missing) > 0 {
		return e.askNextField(s, profile, missing[0])
	}
	return e.beginTechnicalApproval(s, profile)
}

// offerApprovalRequest parks the conversation on the manager-approval gate.
func (e *Engine) offerApprovalRequest(s *session, profile policy.Profile, environment string) Reply {
	s.step = stepApprovalRequest
	s.requestedEnvironment = environment
	return Reply{
		Message: fmt.Sprintf("No access to %s environment. Request approval from %s?",
			strings.ToUpper(environment), profile.ManagerEmail),
		Buttons:       yesNoButtons(),
		ShowTextInput: true,
	}
}

func (e *Engine) askEnvironment(s *session, profile policy.Profile) Reply {
	envs := e.policy.AccessibleEnvironments(profile)
	if len(envs) == 0 {
		return e.offerApprovalRequest(s, profile, "prod")
	}

	s.step = stepAskEnvironment
	buttons := make([]Button, 0, len(envs))
	for _, env := range envs {
		buttons = append(buttons, Button{Text: strings.ToUpper(env), Action: env})
	}
	return Reply{
		Message:       fmt.Sprintf("Which environment? Available: %s", strings.Join(envs, ", ")),
		Buttons:       buttons,
		ShowTextInput: true,
	}
}

func (e *Engine) askNextField(s *session, profile policy.Profile, field string) Reply {
	limits := e.policy.GetLimits("aws", s.environment, profile.Department)

	switch field {
	case "instance_type":
		s.step = stepAskInstanceType
		allowed := limits.AllowedInstanceTypes
		if len(allowed) == 0 {
			allowed = []string{"t3.micro"}
		}
		return Reply{
			Message:       fmt.Sprintf("Instance type? Allowed for %s: %s", strings.ToUpper(s.environment), strings.Join(allowed, ", ")),
			Buttons:       valueButtons(allowed, 5),
			ShowTextInput: true,
		}

	case "operating_system":
		s.step = stepAskOS
		return Reply{
			Message: "Operating System?",
			Buttons: []Button{
				{Text: "Ubuntu", Action: "ubuntu"},
				{Text: "Amazon Linux", Action: "amazon-linux"},
				{Text: "Windows", Action: "windows"},
				{Text: "CentOS", Action: "centos"},
			},
			ShowTextInput: true,
		}

	case "storage_size":
		s.step = stepAskStorage
		return Reply{
			Message: "Storage size in GB? (Default: 8)",
			Buttons: []Button{
				{Text: "8", Action: "8"},
				{Text: "20", Action: "20"},
				{Text: "50", Action: "50"},
			},
			ShowTextInput: true,
		}

	case "region":
		s.step = stepAskRegion
		allowed := limits.AllowedRegions
		if len(allowed) == 0 {
			allowed = []string{"us-east-1"}
		}
		return Reply{
			Message:       fmt.Sprintf("AWS Region? Allowed for %s: %s", strings.ToUpper(s.environment), strings.Join(allowed, ", ")),
			Buttons:       valueButtons(allowed, 4),
			ShowTextInput: true,
		}
	}

	return e.askEnvironment(s, profile)
}

func (e *Engine) handleEnvironmentSelection(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	env := normalizeEnvironment(msg)
	if env == "" {
		return Reply{Message: "Please choose dev, qa, or prod.", ShowTextInput: true}
	}

	if !e.policy.CheckEnvironmentAccess(profile, env) {
		return e.offerApprovalRequest(s, profile, env)
	}

	s.environment = env
	if missing := s.missingFields(); len(missing) > 0 {
		return e.askNextField(s, profile, missing[0])
	}
	return e.beginTechnicalApproval(s, profile)
}

func (e *Engine) handleInstanceType(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	itype := strings.TrimSpace(msg)
	allowed := e.policy.GetLimits("aws", s.environment, profile.Department).AllowedInstanceTypes

	if len(allowed) > 0 && !slices.Contains(allowed, itype) {
		return Reply{
			Message: fmt.Sprintf("Instance type '%s' not allowed in %s. Allowed: %s",
				itype, strings.ToUpper(s.environment), strings.Join(allowed, ", ")),
			Buttons:       valueButtons(allowed, 5),
			ShowTextInput: true,
		}
	}

	s.instanceType = itype
	if missing := s.missingFields(); len(missing) > 0 {
		return e.askNextField(s, profile, missing[0])
	}
	return e.beginTechnicalApproval(s, profile)
}

var osChoices = map[string]string{
	"ubuntu":       "ubuntu",
	"ubuntu22":     "ubuntu22",
	"amazon-linux": "amazon-linux",
	"amazon linux": "amazon-linux",
	"windows":      "windows",
	"centos":       "centos",
}

func (e *Engine) handleOperatingSystem(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	osType, ok := osChoices[normalize(msg)]
	if !ok {
		return Reply{
			Message: "Invalid OS. Please choose Ubuntu, Amazon Linux, Windows, or CentOS.",
			Buttons: []Button{
				{Text: "Ubuntu", Action: "ubuntu"},
				{Text: "Amazon Linux", Action: "amazon-linux"},
				{Text: "Windows", Action: "windows"},
			},
			ShowTextInput: true,
		}
	}

	s.operatingSystem = osType
	if missing := s.missingFields(); len(missing) > 0 {
		return e.askNextField(s, profile, missing[0])
	}
	return e.beginTechnicalApproval(s, profile)
}

func (e *Engine) handleStorage(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	digits := digitsRe.FindString(msg)
	if digits == "" {
		return Reply{Message: "Please enter storage size in GB (e.g., 20, 50, 100)", ShowTextInput: true}
	}
	size, err := strconv.Atoi(digits)
	if err != nil || size <= 0 {
		return Reply{Message: "Please enter storage size in GB (e.g., 20, 50, 100)", ShowTextInput: true}
	}

	maxGB := e.policy.GetLimits("aws", s.environment, profile.Department).MaxStorageGB
	if maxGB > 0 && size > maxGB {
		return Reply{
			Message: fmt.Sprintf("Storage %dGB exceeds maximum %dGB for %s. Choose smaller size:",
				size, maxGB, strings.ToUpper(s.environment)),
			Buttons:       []Button{{Text: strconv.Itoa(maxGB), Action: strconv.Itoa(maxGB)}},
			ShowTextInput: true,
		}
	}

	s.storageSize = size
	if missing := s.missingFields(); len(missing) > 0 {
		return e.askNextField(s, profile, missing[0])
	}
	return e.beginTechnicalApproval(s, profile)
}

func (e *Engine) handleRegion(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	region := normalizeRegion(msg)
	if region == "" {
		return Reply{Message: "Please use valid AWS region format (e.g., us-east-1, us-west-2)", ShowTextInput: true}
	}

	allowed := e.policy.GetLimits("aws", s.environment, profile.Department).AllowedRegions
	if len(allowed) > 0 && !slices.Contains(allowed, region) {
		return Reply{
			Message: fmt.Sprintf("Region %s not allowed for %s. Allowed: %s",
				region, strings.ToUpper(s.environment), strings.Join(allowed, ", ")),
			Buttons:       valueButtons(allowed, len(allowed)),
			ShowTextInput: true,
		}
	}

	s.region = region
	if missing := s.missingFields(); len(missing) > 0 {
		return e.askNextField(s, profile, missing[0])
	}
	return e.beginTechnicalApproval(s, profile)
}

func (e *Engine) beginTechnicalApproval(s *session, profile policy.Profile) Reply {
	if msg, ok := e.validateConfiguration(s, profile); !ok {
		return Reply{Message: msg, ShowTextInput: true}
	}

	s.step = stepAwaitingTechnicalApproval
	summary := fmt.Sprintf("Environment: %s\nInstance Type: %s\nOperating System: %s\nStorage: %dGB\nRegion: %s",
		strings.ToUpper(s.environment), s.instanceType, s.operatingSystem, s.storageSize, s.region)

	return Reply{
		Message:       fmt.Sprintf("Technical Approval Required:\n%s\n\nApprove this configuration?", summary),
		Buttons:       yesNoButtons(),
		ShowTextInput: true,
	}
}

// validateConfiguration re-checks the gathered core fields against the
// policy matrix before the technical gate.
func (e *Engine) validateConfiguration(s *session, profile policy.Profile) (string, bool) {
	limits := e.policy.GetLimits("aws", s.environment, profile.Department)

	if s.instanceType != "" && len(limits.AllowedInstanceTypes) > 0 && !slices.Contains(limits.AllowedInstanceTypes, s.instanceType) {
		return fmt.Sprintf("Instance %s not allowed in %s. Allowed: %s",
			s.instanceType, s.environment, strings.Join(limits.AllowedInstanceTypes, ", ")), false
	}
	if limits.MaxStorageGB > 0 && s.storageSize > limits.MaxStorageGB {
		return fmt.Sprintf("%dGB exceeds max %dGB for %s. Choose <= %d",
			s.storageSize, limits.MaxStorageGB, s.environment, limits.MaxStorageGB), false
	}
	if s.region != "" && len(limits.AllowedRegions) > 0 && !slices.Contains(limits.AllowedRegions, s.region) {
		return fmt.Sprintf("Region %s not allowed for %s. Choose: %s",
			s.region, s.environment, strings.Join(limits.AllowedRegions, ", ")), false
	}
	return "", true
}

var approveTokens = map[string]bool{"yes": true, "y": true, "approve": true, "approved": true}
var denyTokens = map[string]bool{"no": true, "n": true, "deny": true, "denied": true}

func (e *Engine) handleTechnicalApproval(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	response := normalize(msg)

	switch {
	case approveTokens[response]:
		s.technicalApproved = true
		s.step = stepAskResourceMode
		s.resourceIdx = 0
		return Reply{
			Message:       "Technical configuration approved. Now configuring networking.\n\nVPC (Virtual Private Cloud) - use default or existing?",
			Buttons:       []Button{{Text: "Default", Action: "default"}, {Text: "Existing", Action: "existing"}},
			ShowTextInput: true,
		}

	case denyTokens[response]:
		e.reset(profile.Email)
		return Reply{Message: "Request cancelled. Ready for new request.", ShowTextInput: true}
	}

	return Reply{Message: "Please answer yes or no for technical approval.", ShowTextInput: true}
}

func valueButtons(values []string, limit int) []Button {
	if len(values) > limit {
		values = values[:limit]
	}
	buttons := make([]Button, 0, len(values))
	for _, v := range values {
		buttons = append(buttons, Button{Text: v, Action: v})
	}
	return buttons
}
