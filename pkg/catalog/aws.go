package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
)

// ec2API is the slice of the EC2 client the catalog uses.
type ec2API interface {
	DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	DescribeSubnets(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	DescribeKeyPairs(ctx context.Context, params *ec2.DescribeKeyPairsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeKeyPairsOutput, error)
	DescribeAvailabilityZones(ctx context.Context, params *ec2.DescribeAvailabilityZonesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeAvailabilityZonesOutput, error)
}

// stsAPI is the credential probe.
type stsAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AWSCatalog looks up live EC2 inventory in one region.
type AWSCatalog struct {
	ec2     ec2API
	sts     stsAPI
	region  string
	timeout time.Duration
}

// NewAWS creates a catalog for the given region using the default credential
// chain.
func NewAWS(ctx context.Context, region string) (*AWSCatalog, error) {
	slog.Info("catalog_init", "region", region)

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return &AWSCatalog{
		ec2:     ec2.NewFromConfig(cfg),
		sts:     sts.NewFromConfig(cfg),
		region:  region,
		timeout: 15 * time.Second,
	}, nil
}

// Region returns the region this catalog queries.
func (c *AWSCatalog) Region() string {
	return c.region
}

// Available probes the configured credentials with a caller-identity call.
func (c *AWSCatalog) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		slog.Warn("catalog_credentials_unavailable", "region", c.region, "error", err)
		return false
	}

	slog.Info("catalog_credentials_ok", "region", c.region, "account", aws.ToString(out.Account))
	return true
}

// VPCs lists the region's VPCs. Errors degrade to an empty list.
func (c *AWSCatalog) VPCs(ctx context.Context) []VPC {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{})
	if err != nil {
		slog.Error("catalog_vpcs_fetch_failed", "region", c.region, "error", err)
		return nil
	}

	var vpcs []VPC
	for _, v := range out.Vpcs {
		vpcs = append(vpcs, VPC{
			ID:        aws.ToString(v.VpcId),
			Name:      nameTag(v.Tags),
			CIDR:      aws.ToString(v.CidrBlock),
			IsDefault: aws.ToBool(v.IsDefault),
		})
	}

	slog.Info("catalog_vpcs_fetched", "region", c.region, "count", len(vpcs))
	return vpcs
}

// VPCByID fetches one VPC, nil when missing or on error.
func (c *AWSCatalog) VPCByID(ctx context.Context, id string) *VPC {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.ec2.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{VpcIds: []string{id}})
	if err != nil {
		slog.Error("catalog_vpc_lookup_failed", "region", c.region, "vpc_id", id, "error", err)
		return nil
	}
	if len(out.Vpcs) == 0 {
		return nil
	}

	v := out.Vpcs[0]
	return &VPC{
		ID:        aws.ToString(v.VpcId),
		Name:      nameTag(v.Tags),
		CIDR:      aws.ToString(v.CidrBlock),
		IsDefault: aws.ToBool(v.IsDefault),
	}
}

// Subnets lists subnets, scoped to a VPC when vpcID is non-empty.
func (c *AWSCatalog) Subnets(ctx context.Context, vpcID string) []Subnet {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	input := &ec2.DescribeSubnetsInput{}
	if vpcID != "" {
		input.Filters = []types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}}
	}

	out, err := c.ec2.DescribeSubnets(ctx, input)
	if err != nil {
		slog.Error("catalog_subnets_fetch_failed", "region", c.region, "vpc_id", vpcID, "error", err)
		return nil
	}

	var subnets []Subnet
	for _, s := range out.Subnets {
		subnets = append(subnets, Subnet{
			ID:               aws.ToString(s.SubnetId),
			Name:             nameTag(s.Tags),
			CIDR:             aws.ToString(s.CidrBlock),
			VPCID:            aws.ToString(s.VpcId),
			AvailabilityZone: aws.ToString(s.AvailabilityZone),
			Public:           aws.ToBool(s.MapPublicIpOnLaunch),
		})
	}

	slog.Info("catalog_subnets_fetched", "region", c.region, "vpc_id", vpcID, "count", len(subnets))
	return subnets
}

// SubnetByID fetches one subnet, nil when missing or on error.
func (c *AWSCatalog) SubnetByID(ctx context.Context, id string) *Subnet {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.ec2.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{SubnetIds: []string{id}})
	if err != nil {
		slog.Error("catalog_subnet_lookup_failed", "region", c.region, "subnet_id", id, "error", err)
		return nil
	}
	if len(out.Subnets) == 0 {
		return nil
	}

	s := out.Subnets[0]
	return &Subnet{
		ID:               aws.ToString(s.SubnetId),
		Name:             nameTag(s.Tags),
		CIDR:             aws.ToString(s.CidrBlock),
		VPCID:            aws.ToString(s.VpcId),
		AvailabilityZone: aws.ToString(s.AvailabilityZone),
		Public:           aws.ToBool(s.MapPublicIpOnLaunch),
	}
}

// SecurityGroups lists security groups, scoped to a VPC when vpcID is non-empty.
func (c *AWSCatalog) SecurityGroups(ctx context.Context, vpcID string) []SecurityGroup {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	input := &ec2.DescribeSecurityGroupsInput{}
	if vpcID != "" {
		input.Filters = []types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}}
	}

	out, err := c.ec2.DescribeSecurityGroups(ctx, input)
	if err != nil {
		slog.Error("catalog_security_groups_fetch_failed", "region", c.region, "vpc_id", vpcID, "error", err)
		return nil
	}

	var groups []SecurityGroup
	for _, g := range out.SecurityGroups {
		groups = append(groups, SecurityGroup{
			ID:          aws.ToString(g.GroupId),
			Name:        aws.ToString(g.GroupName),
			Description: aws.ToString(g.Description),
			VPCID:       aws.ToString(g.VpcId),
		})
	}

	slog.Info("catalog_security_groups_fetched", "region", c.region, "vpc_id", vpcID, "count", len(groups))
	return groups
}

// SecurityGroupRules fetches and normalizes a group's rules, nil when the
// group is missing or the call fails.
func (c *AWSCatalog) SecurityGroupRules(ctx context.Context, id string) *RuleSet {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.ec2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{GroupIds: []string{id}})
	if err != nil {
		slog.Error("catalog_sg_rules_fetch_failed", "region", c.region, "group_id", id, "error", err)
		return nil
	}
	if len(out.SecurityGroups) == 0 {
		return nil
	}

	g := out.SecurityGroups[0]
	return &RuleSet{
		Ingress: normalizeRules(g.IpPermissions),
		Egress:  normalizeRules(g.IpPermissionsEgress),
	}
}

// KeyPairs lists key pair names. Errors degrade to an empty list.
func (c *AWSCatalog) KeyPairs(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.ec2.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{})
	if err != nil {
		slog.Error("catalog_keypairs_fetch_failed", "region", c.region, "error", err)
		return nil
	}

	var names []string
	for _, kp := range out.KeyPairs {
		if name := aws.ToString(kp.KeyName); name != "" {
			names = append(names, name)
		}
	}

	slog.Info("catalog_keypairs_fetched", "region", c.region, "count", len(names))
	return names
}

// AvailabilityZones lists the region's zone names.
func (c *AWSCatalog) AvailabilityZones(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.ec2.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{})
	if err != nil {
		slog.Error("catalog_azs_fetch_failed", "region", c.region, "error", err)
		return nil
	}

	var zones []string
	for _, z := range out.AvailabilityZones {
		if name := aws.ToString(z.ZoneName); name != "" {
			zones = append(zones, name)
		}
	}
	return zones
}

func normalizeRules(perms []types.IpPermission) []Rule {
	var rules []Rule
	for _, p := range perms {
		var ranges []string
		for _, r := range p.IpRanges {
			if cidr := aws.ToString(r.CidrIp); cidr != "" {
				ranges = append(ranges, cidr)
			}
		}
		for _, r := range p.Ipv6Ranges {
			if cidr := aws.ToString(r.CidrIpv6); cidr != "" {
				ranges = append(ranges, cidr)
			}
		}
		rules = append(rules, Rule{
			Protocol: aws.ToString(p.IpProtocol),
			FromPort: int(aws.ToInt32(p.FromPort)),
			ToPort:   int(aws.ToInt32(p.ToPort)),
			Ranges:   ranges,
		})
	}
	return rules
}

func nameTag(tags []types.Tag) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == "Name" {
			return aws.ToString(t.Value)
		}
	}
	return "No Name"
}
