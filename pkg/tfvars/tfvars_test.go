package tfvars

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
)

func baseRequest() *db.Request {
	return &db.Request{
		RequestIdentifier: "engineering_aws_dev_a1b2c3d4",
		UserEmail:         "jane.doe@example.com",
		Department:        "Engineering",
		CloudProvider:     "aws",
		Environment:       "dev",
		ResourceType:      "ec2",
		Parameters: db.Parameters{
			InstanceType:      "t3.micro",
			Region:            "us-east-1",
			OperatingSystem:   "ubuntu",
			StorageSize:       20,
			KeyPair:           db.KeyPair{Type: "existing", Name: "deploy-key"},
			AssociatePublicIP: true,
		},
	}
}

func TestRenderGolden(t *testing.T) {
	want := `request_id = "engineering_aws_dev_a1b2c3d4"
department = "Engineering"
created_by = "jane.doe@example.com"
environment = "dev"
instance_type = "t3.micro"
storage_size = 20
region = "us-east-1"
associate_public_ip = true
ami_filter = "ubuntu/images/hvm-ssd/ubuntu-focal-20.04-amd64-server-*"
ami_owners = ["099720109477"]
key_name = "deploy-key"
create_new_keypair = false
vpc_id = ""
use_existing_vpc = false
subnet_id = ""
use_existing_subnet = false
security_group_id = ""
use_existing_sg = false
instance_tags = {
  "Name" = "jane-doe-ec2-a1b2c3d4"
  "Department" = "Engineering"
  "Environment" = "dev"
  "RequestID" = "engineering_aws_dev_a1b2c3d4"
  "CreatedBy" = "jane.doe@example.com"
  "ManagedBy" = "ConversaCloud"
}
`
	assert.Equal(t, want, Render(baseRequest()))
}

func TestRenderDeterministic(t *testing.T) {
	req := baseRequest()
	assert.Equal(t, Render(req), Render(req))
}

func TestRenderExistingNetworkSelections(t *testing.T) {
	req := baseRequest()
	req.Parameters.VPC = db.ResourceRef{Mode: "existing", ID: "vpc-0abc"}
	req.Parameters.Subnet = db.ResourceRef{Mode: "existing", ID: "subnet-0def"}
	req.Parameters.SecurityGroup = db.ResourceRef{Mode: "existing", ID: "sg-0123"}

	out := Render(req)
	assert.Contains(t, out, "vpc_id = \"vpc-0abc\"\nuse_existing_vpc = true\n")
	assert.Contains(t, out, "subnet_id = \"subnet-0def\"\nuse_existing_subnet = true\n")
	assert.Contains(t, out, "security_group_id = \"sg-0123\"\nuse_existing_sg = true\n")
}

func TestRenderDefaultModeClearsIDs(t *testing.T) {
	req := baseRequest()
	req.Parameters.VPC = db.ResourceRef{Mode: "default", ID: "vpc-ignored"}

	out := Render(req)
	assert.Contains(t, out, "vpc_id = \"\"\nuse_existing_vpc = false\n")
}

func TestRenderUnknownOSFallsBackToUbuntu(t *testing.T) {
	req := baseRequest()
	req.Parameters.OperatingSystem = "freebsd"

	out := Render(req)
	assert.Contains(t, out, `ami_filter = "ubuntu/images/hvm-ssd/ubuntu-focal-20.04-amd64-server-*"`)
	assert.Contains(t, out, `ami_owners = ["099720109477"]`)
}

func TestRenderWindowsAMI(t *testing.T) {
	req := baseRequest()
	req.Parameters.OperatingSystem = "windows"

	out := Render(req)
	assert.Contains(t, out, `ami_filter = "Windows_Server-2019-English-Full-Base-*"`)
	assert.Contains(t, out, `ami_owners = ["137112412989"]`)
}

func TestResolveKeyPair(t *testing.T) {
	tests := []struct {
		name       string
		kp         db.KeyPair
		wantName   string
		wantCreate bool
	}{
		{"new with name", db.KeyPair{Type: "new", Name: "custom"}, "custom", true},
		{"new without name autogenerates", db.KeyPair{Type: "new"}, "auto-platform-eng-a1b2c3d4", true},
		{"existing", db.KeyPair{Type: "existing", Name: "deploy-key"}, "deploy-key", false},
		{"unset", db.KeyPair{}, "default", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, create := resolveKeyPair(tt.kp, "Platform Eng", "engineering_aws_dev_a1b2c3d4")
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantCreate, create)
		})
	}
}

func TestGenerateAtomicWrite(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(dir)
	req := baseRequest()

	path, err := gen.Generate(req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "terraform", "environments", "aws", "dev", "requests",
		"engineering_aws_dev_a1b2c3d4.tfvars"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Render(req), string(content))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateOverwrites(t *testing.T) {
	dir := t.TempDir()
	gen := NewGenerator(dir)
	req := baseRequest()

	_, err := gen.Generate(req)
	require.NoError(t, err)

	req.Parameters.StorageSize = 50
	path, err := gen.Generate(req)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "storage_size = 50")
}

func TestRelativePathLowercases(t *testing.T) {
	rel := RelativePath("AWS", "Dev", "id_123")
	assert.Equal(t, filepath.Join("terraform", "environments", "aws", "dev", "requests", "id_123.tfvars"), rel)
}
