package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/catalog"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/policy"
)

func (e *Engine) handleResourceMode(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	mode := normalize(msg)

	if s.resourceIdx >= len(resourceOrder) {
		return e.configureKeyPair(s)
	}
	resource := s.currentResource()

	if mode != "default" && mode != "existing" {
		return Reply{
			Message: fmt.Sprintf("For %s, choose 'default' or 'existing'", strings.ToUpper(resource)),
			Buttons: []Button{
				{Text: "Default", Action: "default"},
				{Text: "Existing", Action: "existing"},
				{Text: "Cancel", Action: "cancel"},
			},
			ShowTextInput: true,
		}
	}

	s.setResourceMode(resource, mode)
	if mode == "existing" {
		return e.fetchExistingResource(ctx, s, resource)
	}
	return e.moveToNextResource(s)
}

// fetchExistingResource lists the candidates for one networking resource.
// Any catalog failure degrades to a Default-or-Cancel prompt.
func (e *Engine) fetchExistingResource(ctx context.Context, s *session, resource string) Reply {
	if e.catalog == nil || !e.catalog.Available(ctx) {
		return Reply{
			Message:       fmt.Sprintf("AWS credentials not configured for region %s. Choose Default or Cancel:", s.region),
			Buttons:       defaultCancelButtons(),
			ShowTextInput: true,
		}
	}

	// Subnet and security group listings are scoped to an explicitly chosen
	// VPC so cross-VPC selections never reach the deploy stage.
	scopeVPC := ""
	if s.vpcMode == "existing" {
		scopeVPC = s.vpcID
	}

	switch resource {
	case "vpc":
		vpcs := e.catalog.VPCs(ctx)
		if len(vpcs) == 0 {
			return Reply{
				Message:       fmt.Sprintf("No existing VPCs found in region %s. Choose Default or Cancel:", s.region),
				Buttons:       defaultCancelButtons(),
				ShowTextInput: true,
			}
		}

		s.vpcs = vpcs
		s.step = stepAskExistingVPC

		var lines []string
		var buttons []Button
		for i, v := range vpcs {
			if i >= 5 {
				break
			}
			lines = append(lines, fmt.Sprintf("%d. %s (%s) - %s", i+1, v.ID, v.Name, v.CIDR))
			buttons = append(buttons, Button{Text: v.ID, Action: v.ID})
		}
		return Reply{
			Message: fmt.Sprintf("Found %d VPCs in %s:\n%s\n\nSelect VPC ID or choose Default:",
				len(vpcs), s.region, strings.Join(lines, "\n")),
			Buttons:       append(buttons, defaultCancelButtons()...),
			ShowTextInput: true,
		}

	case "subnet":
		subnets := e.catalog.Subnets(ctx, scopeVPC)
		if len(subnets) == 0 {
			return Reply{
				Message:       fmt.Sprintf("No existing subnets found in region %s%s. Choose Default or Cancel:", s.region, vpcContext(scopeVPC)),
				Buttons:       defaultCancelButtons(),
				ShowTextInput: true,
			}
		}

		s.subnets = subnets
		s.step = stepAskExistingSubnet

		var lines []string
		var buttons []Button
		for i, sub := range subnets {
			if i >= 5 {
				break
			}
			lines = append(lines, fmt.Sprintf("%d. %s (%s) - AZ: %s, VPC: %s", i+1, sub.ID, sub.Name, sub.AvailabilityZone, sub.VPCID))
			buttons = append(buttons, Button{Text: sub.ID, Action: sub.ID})
		}
		return Reply{
			Message: fmt.Sprintf("Found %d subnets%s:\n%s\n\nSelect Subnet ID or choose Default:",
				len(subnets), vpcContext(scopeVPC), strings.Join(lines, "\n")),
			Buttons:       append(buttons, defaultCancelButtons()...),
			ShowTextInput: true,
		}

	case "security_group":
		groups := e.catalog.SecurityGroups(ctx, scopeVPC)
		if len(groups) == 0 {
			return Reply{
				Message:       fmt.Sprintf("No existing security groups found in region %s%s. Choose Default or Cancel:", s.region, vpcContext(scopeVPC)),
				Buttons:       defaultCancelButtons(),
				ShowTextInput: true,
			}
		}

		s.securityGroups = groups
		s.step = stepAskExistingSG

		var lines []string
		var buttons []Button
		for i, g := range groups {
			if i >= 5 {
				break
			}
			lines = append(lines, fmt.Sprintf("%d. %s (%s) - %s", i+1, g.ID, g.Name, truncate(g.Description, 50)))
			buttons = append(buttons, Button{Text: g.ID, Action: g.ID})
		}
		return Reply{
			Message: fmt.Sprintf("Found %d security groups%s:\n%s\n\nSelect Security Group ID or choose Default:",
				len(groups), vpcContext(scopeVPC), strings.Join(lines, "\n")),
			Buttons:       append(buttons, defaultCancelButtons()...),
			ShowTextInput: true,
		}
	}

	return e.moveToNextResource(s)
}

func (e *Engine) moveToNextResource(s *session) Reply {
	s.resourceIdx++
	if s.resourceIdx >= len(resourceOrder) {
		return e.configureKeyPair(s)
	}

	s.step = stepAskResourceMode
	next := resourceOrder[s.resourceIdx]
	return Reply{
		Message:       fmt.Sprintf("%s - use default or existing?", strings.ToUpper(next)),
		Buttons:       []Button{{Text: "Default", Action: "default"}, {Text: "Existing", Action: "existing"}},
		ShowTextInput: true,
	}
}

func (e *Engine) handleExistingVPC(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	if normalize(msg) == "default" {
		s.vpcMode = "default"
		return e.moveToNextResource(s)
	}

	vpcID := strings.TrimSpace(msg)

	if len(s.vpcs) > 0 {
		if !vpcListed(s.vpcs, vpcID) {
			var lines []string
			var buttons []Button
			for i, v := range s.vpcs {
				if i >= 5 {
					break
				}
				lines = append(lines, fmt.Sprintf("* %s (%s)", v.ID, v.Name))
				buttons = append(buttons, Button{Text: v.ID, Action: v.ID})
			}
			return Reply{
				Message:       fmt.Sprintf("Invalid VPC ID '%s'. Please select from the list:\n%s", vpcID, strings.Join(lines, "\n")),
				Buttons:       append(buttons, defaultCancelButtons()...),
				ShowTextInput: true,
			}
		}
	} else if e.catalog != nil && e.catalog.Available(ctx) {
		// No cached listing, verify the typed id directly.
		if e.catalog.VPCByID(ctx, vpcID) == nil {
			return Reply{
				Message:       fmt.Sprintf("VPC '%s' not found in region %s. Choose Default or Cancel:", vpcID, s.region),
				Buttons:       defaultCancelButtons(),
				ShowTextInput: true,
			}
		}
	}

	s.vpcID = vpcID
	return e.moveToNextResource(s)
}

func (e *Engine) handleExistingSubnet(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	if normalize(msg) == "default" {
		s.subnetMode = "default"
		return e.moveToNextResource(s)
	}

	subnetID := strings.TrimSpace(msg)

	if len(s.subnets) > 0 {
		var selectedVPC string
		found := false
		for _, sub := range s.subnets {
			if sub.ID == subnetID {
				found = true
				selectedVPC = sub.VPCID
				break
			}
		}

		if !found {
			var lines []string
			var buttons []Button
			for i, sub := range s.subnets {
				if i >= 5 {
					break
				}
				lines = append(lines, fmt.Sprintf("* %s (%s) - AZ: %s", sub.ID, sub.Name, sub.AvailabilityZone))
				buttons = append(buttons, Button{Text: sub.ID, Action: sub.ID})
			}
			return Reply{
				Message:       fmt.Sprintf("Invalid Subnet ID '%s'. Please select from the list:\n%s", subnetID, strings.Join(lines, "\n")),
				Buttons:       append(buttons, defaultCancelButtons()...),
				ShowTextInput: true,
			}
		}

		if reply, ok := e.checkSubnetVPC(s, subnetID, selectedVPC); !ok {
			return reply
		}
	} else if e.catalog != nil && e.catalog.Available(ctx) {
		info := e.catalog.SubnetByID(ctx, subnetID)
		if info == nil {
			return Reply{
				Message:       fmt.Sprintf("Subnet '%s' not found in region %s. Choose Default or Cancel:", subnetID, s.region),
				Buttons:       defaultCancelButtons(),
				ShowTextInput: true,
			}
		}
		if reply, ok := e.checkSubnetVPC(s, subnetID, info.VPCID); !ok {
			return reply
		}
	}

	s.subnetID = subnetID
	return e.moveToNextResource(s)
}

// checkSubnetVPC rejects subnets that belong to a different VPC than the one
// the user explicitly selected.
func (e *Engine) checkSubnetVPC(s *session, subnetID, subnetVPC string) (Reply, bool) {
	if s.vpcMode == "existing" && s.vpcID != "" && subnetVPC != s.vpcID {
		return Reply{
			Message: fmt.Sprintf("Error: Subnet %s belongs to VPC %s, but you selected VPC %s.\nChoose subnet in the correct VPC:",
				subnetID, subnetVPC, s.vpcID),
			Buttons:       defaultCancelButtons(),
			ShowTextInput: true,
		}, false
	}
	return Reply{}, true
}

func (e *Engine) handleExistingSG(ctx context.Context, s *session, profile policy.Profile, msg string) Reply {
	if normalize(msg) == "default" {
		s.sgMode = "default"
		return e.moveToNextResource(s)
	}

	sgID := strings.TrimSpace(msg)

	if len(s.securityGroups) > 0 {
		found := false
		for _, g := range s.securityGroups {
			if g.ID == sgID {
				found = true
				break
			}
		}
		if !found {
			var lines []string
			var buttons []Button
			for i, g := range s.securityGroups {
				if i >= 5 {
					break
				}
				lines = append(lines, fmt.Sprintf("* %s (%s)", g.ID, g.Name))
				buttons = append(buttons, Button{Text: g.ID, Action: g.ID})
			}
			return Reply{
				Message:       fmt.Sprintf("Invalid Security Group ID '%s'. Please select from the list:\n%s", sgID, strings.Join(lines, "\n")),
				Buttons:       append(buttons, defaultCancelButtons()...),
				ShowTextInput: true,
			}
		}
	}

	s.sgID = sgID

	// The security approval gate shows the group's live rules; fetch and
	// cache them now, tolerating failure.
	if e.catalog != nil && e.catalog.Available(ctx) {
		if rules := e.catalog.SecurityGroupRules(ctx, sgID); rules != nil {
			s.sgRules[sgID] = rules
		}
	}

	return e.moveToNextResource(s)
}

func vpcListed(vpcs []catalog.VPC, id string) bool {
	for _, v := range vpcs {
		if v.ID == id {
			return true
		}
	}
	return false
}

func vpcContext(vpcID string) string {
	if vpcID == "" {
		return ""
	}
	return fmt.Sprintf(" in VPC %s", vpcID)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
