// Package catalog provides read-only inventory lookups against the cloud
// provider: networks, subnets, security rules, and key pairs offered as
// "existing" selections during configuration. The contract is failure
// tolerance: any credential, network, or provider-side error degrades to an
// empty result with the cause logged, never an error surfaced to the caller.
package catalog

// VPC is a virtual network candidate.
type VPC struct {
	ID        string
	Name      string
	CIDR      string
	IsDefault bool
}

// Subnet is a subnet candidate, carrying its parent VPC for consistency checks.
type Subnet struct {
	ID               string
	Name             string
	CIDR             string
	VPCID            string
	AvailabilityZone string
	Public           bool
}

// SecurityGroup is a security group candidate.
type SecurityGroup struct {
	ID          string
	Name        string
	Description string
	VPCID       string
}

// Rule is one normalized ingress or egress entry.
type Rule struct {
	Protocol    string
	FromPort    int
	ToPort      int
	Ranges      []string
	Description string
}

// RuleSet holds the normalized rules of a security group.
type RuleSet struct {
	Ingress []Rule
	Egress  []Rule
}

// DefaultRules is the fixed rule set applied when the user picks the default
// security group: SSH, HTTP, and HTTPS in, everything out.
func DefaultRules() RuleSet {
	return RuleSet{
		Ingress: []Rule{
			{Protocol: "tcp", FromPort: 22, ToPort: 22, Ranges: []string{"0.0.0.0/0"}, Description: "SSH"},
			{Protocol: "tcp", FromPort: 80, ToPort: 80, Ranges: []string{"0.0.0.0/0"}, Description: "HTTP"},
			{Protocol: "tcp", FromPort: 443, ToPort: 443, Ranges: []string{"0.0.0.0/0"}, Description: "HTTPS"},
		},
		Egress: []Rule{
			{Protocol: "-1", FromPort: -1, ToPort: -1, Ranges: []string{"0.0.0.0/0"}, Description: "All outbound"},
		},
	}
}
