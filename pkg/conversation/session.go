package conversation

import (
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/catalog"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
)

// resourceOrder is the networking selection sequence.
var resourceOrder = []string{"vpc", "subnet", "security_group"}

// session is one user's in-flight conversation state.
type session struct {
	step string

	// Gathered core configuration.
	environment     string
	instanceType    string
	operatingSystem string
	storageSize     int
	region          string

	// Networking selections.
	resourceIdx int
	vpcMode     string
	subnetMode  string
	sgMode      string
	vpcID       string
	subnetID    string
	sgID        string

	// Keypair selection.
	keyPair    db.KeyPair
	keyPairSet bool

	// Approval gates.
	technicalApproved bool
	securityApproved  bool

	// Environment the user asked approval for.
	requestedEnvironment string

	// Cached catalog listings shown to the user; selections are validated
	// against these.
	vpcs           []catalog.VPC
	subnets        []catalog.Subnet
	securityGroups []catalog.SecurityGroup
	sgRules        map[string]*catalog.RuleSet
}

func newSession() *session {
	return &session{
		step:    stepInitial,
		sgRules: make(map[string]*catalog.RuleSet),
	}
}

// missingFields returns the unset required fields in prompt order.
func (s *session) missingFields() []string {
	var missing []string
	if s.environment == "" {
		missing = append(missing, "environment")
	}
	if s.instanceType == "" {
		missing = append(missing, "instance_type")
	}
	if s.operatingSystem == "" {
		missing = append(missing, "operating_system")
	}
	if s.storageSize == 0 {
		missing = append(missing, "storage_size")
	}
	if s.region == "" {
		missing = append(missing, "region")
	}
	return missing
}

// currentResource is the networking resource being configured.
func (s *session) currentResource() string {
	if s.resourceIdx < len(resourceOrder) {
		return resourceOrder[s.resourceIdx]
	}
	return ""
}

// setResourceMode records the mode for the resource at the given position.
func (s *session) setResourceMode(resource, mode string) {
	switch resource {
	case "vpc":
		s.vpcMode = mode
	case "subnet":
		s.subnetMode = mode
	case "security_group":
		s.sgMode = mode
	}
}

// parameters freezes the session into a request parameter snapshot.
func (s *session) parameters() db.Parameters {
	mode := func(m string) string {
		if m == "" {
			return "default"
		}
		return m
	}

	return db.Parameters{
		InstanceType:      s.instanceType,
		Region:            s.region,
		OperatingSystem:   s.operatingSystem,
		StorageSize:       s.storageSize,
		KeyPair:           s.keyPair,
		VPC:               db.ResourceRef{Mode: mode(s.vpcMode), ID: s.vpcID},
		Subnet:            db.ResourceRef{Mode: mode(s.subnetMode), ID: s.subnetID},
		SecurityGroup:     db.ResourceRef{Mode: mode(s.sgMode), ID: s.sgID},
		AssociatePublicIP: true,
	}
}
