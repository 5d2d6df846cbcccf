// Package tfvars renders provision requests into Terraform variable files
// laid out under terraform/environments/<cloud>/<env>/requests/. Output is
// deterministic: fixed field order, fixed tag order, byte-identical for the
// same request.
package tfvars

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
)

const defaultStorageSize = 8

// amiSpec pairs an AMI name filter with its owner account list.
type amiSpec struct {
	filter string
	owners []string
}

var amiCatalog = map[string]amiSpec{
	"ubuntu":       {"ubuntu/images/hvm-ssd/ubuntu-focal-20.04-amd64-server-*", []string{"099720109477"}},
	"ubuntu22":     {"ubuntu/images/hvm-ssd/ubuntu-jammy-22.04-amd64-server-*", []string{"099720109477"}},
	"amazon-linux": {"amzn2-ami-hvm-*-x86_64-gp2", []string{"137112412989"}},
	"windows":      {"Windows_Server-2019-English-Full-Base-*", []string{"137112412989"}},
	"centos":       {"CentOS-8-*-x86_64-*", []string{"137112412989"}},
}

// Generator writes tfvars files under a fixed working tree root.
type Generator struct {
	workDir string
}

// NewGenerator creates a generator rooted at workDir.
func NewGenerator(workDir string) *Generator {
	return &Generator{workDir: workDir}
}

// Path returns the canonical tfvars path for a request.
func (g *Generator) Path(cloud, environment, identifier string) string {
	return filepath.Join(g.workDir, RelativePath(cloud, environment, identifier))
}

// RelativePath returns the repo-relative tfvars path, the one expected inside
// an infrastructure clone.
func RelativePath(cloud, environment, identifier string) string {
	return filepath.Join("terraform", "environments",
		strings.ToLower(cloud), strings.ToLower(environment), "requests", identifier+".tfvars")
}

// Render produces the tfvars content for a request.
func Render(req *db.Request) string {
	params := req.Parameters

	department := strings.TrimSpace(req.Department)
	if department == "" {
		department = "unknown"
	}

	instanceType := params.InstanceType
	if instanceType == "" {
		instanceType = "t3.micro"
	}
	storage := params.StorageSize
	if storage <= 0 {
		storage = defaultStorageSize
	}
	region := params.Region
	if region == "" {
		region = "us-east-1"
	}
	environment := strings.ToLower(req.Environment)
	if environment == "" {
		environment = "dev"
	}

	osType := strings.ToLower(params.OperatingSystem)
	ami, ok := amiCatalog[osType]
	if !ok {
		ami = amiCatalog["ubuntu"]
	}

	keyName, createKeyPair := resolveKeyPair(params.KeyPair, department, req.RequestIdentifier)

	var b strings.Builder
	writeString(&b, "request_id", req.RequestIdentifier)
	writeString(&b, "department", department)
	writeString(&b, "created_by", req.UserEmail)
	writeString(&b, "environment", environment)
	writeString(&b, "instance_type", instanceType)
	writeInt(&b, "storage_size", storage)
	writeString(&b, "region", region)
	writeBool(&b, "associate_public_ip", params.AssociatePublicIP)
	writeString(&b, "ami_filter", ami.filter)
	writeList(&b, "ami_owners", ami.owners)
	writeString(&b, "key_name", keyName)
	writeBool(&b, "create_new_keypair", createKeyPair)

	vpcID, useVPC := existingRef(params.VPC)
	writeString(&b, "vpc_id", vpcID)
	writeBool(&b, "use_existing_vpc", useVPC)

	subnetID, useSubnet := existingRef(params.Subnet)
	writeString(&b, "subnet_id", subnetID)
	writeBool(&b, "use_existing_subnet", useSubnet)

	sgID, useSG := existingRef(params.SecurityGroup)
	writeString(&b, "security_group_id", sgID)
	writeBool(&b, "use_existing_sg", useSG)

	writeTags(&b, instanceTags(req, department, environment))

	return b.String()
}

// Generate writes the tfvars file atomically and returns its path.
func (g *Generator) Generate(req *db.Request) (string, error) {
	path := g.Path(req.CloudProvider, req.Environment, req.RequestIdentifier)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create tfvars directory")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(Render(req)), 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write tfvars")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", errors.Wrap(err, "failed to finalize tfvars")
	}

	slog.Info("tfvars_generated", "request_identifier", req.RequestIdentifier, "path", path)
	return path, nil
}

// resolveKeyPair maps the frozen keypair selection onto terraform inputs.
// A new keypair without a name gets a generated auto-<dept>-<suffix> name.
func resolveKeyPair(kp db.KeyPair, department, identifier string) (string, bool) {
	name := strings.TrimSpace(kp.Name)

	switch strings.ToLower(kp.Type) {
	case "new":
		if name != "" {
			return name, true
		}
		return fmt.Sprintf("auto-%s-%s", cleanToken(department), identifierSuffix(identifier)), true
	case "existing":
		if name != "" {
			return name, false
		}
	}
	return "default", false
}

func existingRef(ref db.ResourceRef) (string, bool) {
	if ref.Mode == "existing" && ref.ID != "" {
		return ref.ID, true
	}
	return "", false
}

// tagPair keeps instance tags ordered.
type tagPair struct{ key, value string }

func instanceTags(req *db.Request, department, environment string) []tagPair {
	name := "system"
	if at := strings.Index(req.UserEmail, "@"); at > 0 {
		name = req.UserEmail[:at]
	}
	nameClean := cleanToken(strings.ReplaceAll(name, ".", "-"))

	return []tagPair{
		{"Name", fmt.Sprintf("%s-ec2-%s", nameClean, identifierSuffix(req.RequestIdentifier))},
		{"Department", department},
		{"Environment", environment},
		{"RequestID", req.RequestIdentifier},
		{"CreatedBy", req.UserEmail},
		{"ManagedBy", "ConversaCloud"},
	}
}

// identifierSuffix returns the short id shown to users, the segment after the
// last underscore.
func identifierSuffix(identifier string) string {
	if i := strings.LastIndex(identifier, "_"); i >= 0 {
		return identifier[i+1:]
	}
	if len(identifier) > 8 {
		return identifier[len(identifier)-8:]
	}
	return identifier
}

func cleanToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	return strings.ReplaceAll(s, "_", "-")
}

func writeString(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "%s = %q\n", key, value)
}

func writeInt(b *strings.Builder, key string, value int) {
	fmt.Fprintf(b, "%s = %d\n", key, value)
}

func writeBool(b *strings.Builder, key string, value bool) {
	fmt.Fprintf(b, "%s = %t\n", key, value)
}

func writeList(b *strings.Builder, key string, values []string) {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	fmt.Fprintf(b, "%s = [%s]\n", key, strings.Join(quoted, ", "))
}

func writeTags(b *strings.Builder, tags []tagPair) {
	b.WriteString("instance_tags = {\n")
	for _, t := range tags {
		fmt.Fprintf(b, "  %q = %q\n", t.key, t.value)
	}
	b.WriteString("}\n")
}
