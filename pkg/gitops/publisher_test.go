package gitops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/tfvars"
)

type call struct {
	dir  string
	env  []string
	name string
	args []string
}

// fakeRunner scripts per-command outcomes keyed on "name subcommand".
type fakeRunner struct {
	calls   []call
	stdout  map[string]string
	stderr  map[string]string
	fail    map[string]error
	prepare func(c call)
}

func (f *fakeRunner) Run(_ context.Context, dir string, env []string, name string, args ...string) (string, string, error) {
	c := call{dir: dir, env: env, name: name, args: args}
	f.calls = append(f.calls, c)
	if f.prepare != nil {
		f.prepare(c)
	}

	key := name
	if len(args) > 0 {
		key = name + " " + args[0]
	}
	return f.stdout[key], f.stderr[key], f.fail[key]
}

func (f *fakeRunner) commands() []string {
	var out []string
	for _, c := range f.calls {
		key := c.name
		if len(c.args) > 0 {
			key += " " + c.args[0]
		}
		out = append(out, key)
	}
	return out
}

func publishRequest() *db.Request {
	return &db.Request{
		RequestIdentifier: "engineering_aws_dev_a1b2c3d4",
		UserEmail:         "jane.doe@example.com",
		Department:        "Engineering",
		CloudProvider:     "aws",
		Environment:       "dev",
		ResourceType:      "ec2",
		Parameters: db.Parameters{
			InstanceType:    "t3.micro",
			Region:          "us-east-1",
			OperatingSystem: "ubuntu",
			StorageSize:     20,
		},
	}
}

func testPublisher(t *testing.T, runner *fakeRunner) *Publisher {
	t.Helper()
	p := NewPublisher(tfvars.NewGenerator(t.TempDir()), "tok", "acme", "infra", "main", time.Second)
	p.runner = runner
	// The clone never happens with a fake runner, so create the clone dir
	// when the clone command is observed.
	runner.prepare = func(c call) {
		if c.name == "git" && len(c.args) > 0 && c.args[0] == "clone" {
			require.NoError(t, os.MkdirAll(c.args[2], 0o755))
		}
	}
	return p
}

func TestPublishPullRequestHappyPath(t *testing.T) {
	runner := &fakeRunner{
		stdout: map[string]string{"gh pr": "https://github.com/acme/infra/pull/42\n"},
	}
	p := testPublisher(t, runner)

	number, err := p.PublishPullRequest(context.Background(), publishRequest())
	require.NoError(t, err)
	assert.Equal(t, 42, number)

	assert.Equal(t, []string{
		"git clone", "git config", "git config", "git checkout",
		"git add", "git commit", "git fetch", "git push", "gh pr",
	}, runner.commands())

	clone := runner.calls[0]
	assert.Contains(t, clone.args[1], "https://tok@github.com/acme/infra.git")

	push := runner.calls[7]
	assert.Equal(t, "--force-with-lease", push.args[len(push.args)-1])
	assert.True(t, strings.HasPrefix(push.args[2], "infra-engineering_aws_dev_a1b2c3d4-"))

	pr := runner.calls[8]
	assert.Contains(t, pr.env, "GH_TOKEN=tok")
	assert.Contains(t, strings.Join(pr.args, " "), "[DEV] AWS EC2 - engineering_aws_dev_a1b2c3d4")
}

func TestPublishRegeneratesMissingTFVars(t *testing.T) {
	runner := &fakeRunner{
		stdout: map[string]string{"gh pr": "https://github.com/acme/infra/pull/7"},
	}
	p := testPublisher(t, runner)
	req := publishRequest()

	_, err := p.PublishPullRequest(context.Background(), req)
	require.NoError(t, err)

	cloneDir := runner.calls[0].args[2]
	rel := tfvars.RelativePath("aws", "dev", req.RequestIdentifier)
	content, err := os.ReadFile(filepath.Join(cloneDir, rel))
	require.NoError(t, err)
	assert.Equal(t, tfvars.Render(req), string(content))
}

func TestPublishCopiesCanonicalTFVars(t *testing.T) {
	runner := &fakeRunner{
		stdout: map[string]string{"gh pr": "https://github.com/acme/infra/pull/7"},
	}
	p := testPublisher(t, runner)
	req := publishRequest()

	canonical, err := p.generator.Generate(req)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(canonical, []byte("# pinned\n"), 0o644))

	_, err = p.PublishPullRequest(context.Background(), req)
	require.NoError(t, err)

	cloneDir := runner.calls[0].args[2]
	rel := tfvars.RelativePath("aws", "dev", req.RequestIdentifier)
	content, err := os.ReadFile(filepath.Join(cloneDir, rel))
	require.NoError(t, err)
	assert.Equal(t, "# pinned\n", string(content))
}

func TestPublishNothingToCommitIsNotFatal(t *testing.T) {
	runner := &fakeRunner{
		stdout: map[string]string{"gh pr": "https://github.com/acme/infra/pull/9"},
		stderr: map[string]string{"git commit": "nothing to commit, working tree clean"},
		fail:   map[string]error{"git commit": fmt.Errorf("exit status 1")},
	}
	p := testPublisher(t, runner)

	number, err := p.PublishPullRequest(context.Background(), publishRequest())
	require.NoError(t, err)
	assert.Equal(t, 9, number)
}

func TestPublishPushFailureSurfaces(t *testing.T) {
	runner := &fakeRunner{
		stderr: map[string]string{"git push": "remote rejected"},
		fail:   map[string]error{"git push": fmt.Errorf("exit status 1")},
	}
	p := testPublisher(t, runner)

	_, err := p.PublishPullRequest(context.Background(), publishRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to push branch")

	for _, c := range runner.calls {
		assert.NotEqual(t, "gh", c.name)
	}
}

func TestPublishCloneFailureSurfaces(t *testing.T) {
	runner := &fakeRunner{
		fail: map[string]error{"git clone": fmt.Errorf("exit status 128")},
	}
	p := testPublisher(t, runner)

	_, err := p.PublishPullRequest(context.Background(), publishRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to clone")
	assert.Len(t, runner.calls, 1)
}

func TestParsePRNumber(t *testing.T) {
	tests := []struct {
		stdout  string
		want    int
		wantErr bool
	}{
		{"https://github.com/acme/infra/pull/42\n", 42, false},
		{"Creating pull request...\nhttps://github.com/acme/infra/pull/17", 17, false},
		{"", 0, true},
		{"https://github.com/acme/infra/pull/not-a-number", 0, true},
	}

	for _, tt := range tests {
		number, err := parsePRNumber(tt.stdout)
		if tt.wantErr {
			assert.Error(t, err, tt.stdout)
			continue
		}
		require.NoError(t, err, tt.stdout)
		assert.Equal(t, tt.want, number)
	}
}
