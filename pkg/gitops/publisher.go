// Package gitops publishes provision requests as pull requests against the
// infrastructure repository. Each publish works in a throwaway clone: branch,
// commit the rendered tfvars file, push, open the PR with gh.
package gitops

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/db"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/tfvars"
)

const (
	commitAuthorName  = "conversacloud-bot"
	commitAuthorEmail = "bot@conversacloud.local"
)

// Runner executes one external command in a directory with extra environment
// entries, returning captured stdout and stderr.
type Runner interface {
	Run(ctx context.Context, dir string, env []string, name string, args ...string) (stdout, stderr string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Publisher opens pull requests on the infrastructure repository.
type Publisher struct {
	runner     Runner
	generator  *tfvars.Generator
	token      string
	owner      string
	repo       string
	baseBranch string
	timeout    time.Duration
}

// NewPublisher creates a publisher using the real git and gh binaries.
func NewPublisher(generator *tfvars.Generator, token, owner, repo, baseBranch string, timeout time.Duration) *Publisher {
	if baseBranch == "" {
		baseBranch = "main"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Publisher{
		runner:     execRunner{},
		generator:  generator,
		token:      token,
		owner:      owner,
		repo:       repo,
		baseBranch: baseBranch,
		timeout:    timeout,
	}
}

// PublishPullRequest renders the request's tfvars into a fresh clone of the
// infrastructure repo, pushes a branch, and opens a pull request. It returns
// the PR number.
func (p *Publisher) PublishPullRequest(ctx context.Context, req *db.Request) (int, error) {
	workspace, err := os.MkdirTemp("", "conversacloud-git-*")
	if err != nil {
		return 0, errors.Wrap(err, "failed to create git workspace")
	}
	defer os.RemoveAll(workspace)

	slog.Info("pr_publish_start",
		"request_identifier", req.RequestIdentifier,
		"repo", fmt.Sprintf("%s/%s", p.owner, p.repo))

	cloneDir := filepath.Join(workspace, p.repo)
	cloneURL := fmt.Sprintf("https://%s@github.com/%s/%s.git", p.token, p.owner, p.repo)
	if _, stderr, err := p.run(ctx, workspace, nil, "git", "clone", cloneURL, cloneDir); err != nil {
		slog.Error("git_clone_failed", "request_identifier", req.RequestIdentifier, "stderr", stderr)
		return 0, errors.Wrap(err, "failed to clone infrastructure repo")
	}

	if _, _, err := p.run(ctx, cloneDir, nil, "git", "config", "user.email", commitAuthorEmail); err != nil {
		return 0, errors.Wrap(err, "failed to configure git author email")
	}
	if _, _, err := p.run(ctx, cloneDir, nil, "git", "config", "user.name", commitAuthorName); err != nil {
		return 0, errors.Wrap(err, "failed to configure git author name")
	}

	branch := fmt.Sprintf("infra-%s-%d", req.RequestIdentifier, time.Now().Unix())
	if _, stderr, err := p.run(ctx, cloneDir, nil, "git", "checkout", "-b", branch); err != nil {
		slog.Error("git_branch_failed", "branch", branch, "stderr", stderr)
		return 0, errors.Wrap(err, "failed to create branch")
	}

	if err := p.ensureTFVars(req, cloneDir); err != nil {
		return 0, err
	}

	if _, _, err := p.run(ctx, cloneDir, nil, "git", "add", "."); err != nil {
		return 0, errors.Wrap(err, "failed to stage changes")
	}

	commitMsg := fmt.Sprintf("Add provision request %s", req.RequestIdentifier)
	if _, stderr, err := p.run(ctx, cloneDir, nil, "git", "commit", "-m", commitMsg); err != nil {
		// Re-running a delivery against an already-pushed branch is fine.
		if !strings.Contains(stderr, "nothing to commit") {
			slog.Error("git_commit_failed", "request_identifier", req.RequestIdentifier, "stderr", stderr)
			return 0, errors.Wrap(err, "failed to commit tfvars")
		}
		slog.Info("git_commit_empty", "request_identifier", req.RequestIdentifier)
	}

	if _, _, err := p.run(ctx, cloneDir, nil, "git", "fetch", "origin"); err != nil {
		return 0, errors.Wrap(err, "failed to fetch origin")
	}

	if _, stderr, err := p.run(ctx, cloneDir, nil, "git", "push", "origin", branch, "--force-with-lease"); err != nil {
		slog.Error("git_push_failed", "branch", branch, "stderr", stderr)
		return 0, errors.Wrap(err, "failed to push branch")
	}

	title := fmt.Sprintf("[%s] AWS EC2 - %s", strings.ToUpper(req.Environment), req.RequestIdentifier)
	body := prBody(req)
	env := []string{"GH_TOKEN=" + p.token}
	stdout, stderr, err := p.run(ctx, cloneDir, env, "gh", "pr", "create",
		"--title", title,
		"--body", body,
		"--base", p.baseBranch,
		"--head", branch,
		"--repo", fmt.Sprintf("%s/%s", p.owner, p.repo))
	if err != nil {
		slog.Error("gh_pr_create_failed", "request_identifier", req.RequestIdentifier, "stderr", stderr)
		return 0, errors.Wrap(err, "failed to create pull request")
	}

	number, err := parsePRNumber(stdout)
	if err != nil {
		return 0, err
	}

	slog.Info("pr_published",
		"request_identifier", req.RequestIdentifier,
		"branch", branch,
		"pr_number", number)
	return number, nil
}

// ensureTFVars copies the canonical tfvars file into the clone, regenerating
// it in place when the canonical copy is missing.
func (p *Publisher) ensureTFVars(req *db.Request, cloneDir string) error {
	rel := tfvars.RelativePath(req.CloudProvider, req.Environment, req.RequestIdentifier)
	dst := filepath.Join(cloneDir, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(err, "failed to create tfvars directory in clone")
	}

	src := p.generator.Path(req.CloudProvider, req.Environment, req.RequestIdentifier)
	content, err := os.ReadFile(src)
	if err != nil {
		slog.Warn("tfvars_canonical_missing", "request_identifier", req.RequestIdentifier, "path", src)
		content = []byte(tfvars.Render(req))
	}

	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return errors.Wrap(err, "failed to write tfvars into clone")
	}
	return nil
}

// run executes one command under the publisher's per-command timeout.
func (p *Publisher) run(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.runner.Run(ctx, dir, env, name, args...)
}

// parsePRNumber extracts the PR number from the URL gh prints.
func parsePRNumber(stdout string) (int, error) {
	url := strings.TrimSpace(stdout)
	if url == "" {
		return 0, fmt.Errorf("gh returned no pull request URL")
	}
	if i := strings.LastIndex(url, "\n"); i >= 0 {
		url = strings.TrimSpace(url[i+1:])
	}

	tail := url[strings.LastIndex(url, "/")+1:]
	number, err := strconv.Atoi(tail)
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected pull request URL %q", url)
	}
	return number, nil
}

func prBody(req *db.Request) string {
	params := req.Parameters
	var b strings.Builder
	fmt.Fprintf(&b, "Automated provision request `%s`.\n\n", req.RequestIdentifier)
	fmt.Fprintf(&b, "- Requested by: %s\n", req.UserEmail)
	fmt.Fprintf(&b, "- Department: %s\n", req.Department)
	fmt.Fprintf(&b, "- Environment: %s\n", req.Environment)
	fmt.Fprintf(&b, "- Instance type: %s\n", params.InstanceType)
	fmt.Fprintf(&b, "- Operating system: %s\n", params.OperatingSystem)
	fmt.Fprintf(&b, "- Storage: %dGB\n", params.StorageSize)
	fmt.Fprintf(&b, "- Region: %s\n", params.Region)
	return b.String()
}
