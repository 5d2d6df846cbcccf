// Package policy implements the static permission matrix that bounds what a
// department may request in a given cloud provider and environment. Lookups
// fail closed: any combination absent from the matrix yields empty allow-lists,
// a zero storage ceiling, and a mandatory approval flag.
package policy

import (
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Limits bounds what a department may request in one provider+environment.
type Limits struct {
	AllowedInstanceTypes []string `yaml:"allowed_instance_types"`
	AllowedRegions       []string `yaml:"allowed_regions"`
	MaxStorageGB         int      `yaml:"max_storage_gb"`
	RequiresApproval     bool     `yaml:"requires_approval"`
}

// failClosed is returned for every combination the matrix does not know.
var failClosed = Limits{RequiresApproval: true}

// Profile identifies a requesting user and their explicit environment grants.
type Profile struct {
	Email             string
	Name              string
	Department        string
	ManagerEmail      string
	EnvironmentAccess map[string]bool
}

// ResourceParams is the parameter set checked by the composite guard.
type ResourceParams struct {
	CloudProvider string
	Environment   string
	InstanceType  string
	Region        string
	StorageSize   int
}

// Matrix maps provider -> environment -> department -> limits.
type Matrix map[string]map[string]map[string]Limits

// Engine answers policy questions from an immutable matrix.
type Engine struct {
	matrix Matrix
}

// NewEngine creates an engine backed by the built-in matrix.
func NewEngine() *Engine {
	return &Engine{matrix: builtinMatrix}
}

// NewEngineFromFile creates an engine whose matrix is loaded from a YAML file.
// The file replaces the built-in matrix entirely.
func NewEngineFromFile(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read policy file")
	}

	var matrix Matrix
	if err := yaml.Unmarshal(data, &matrix); err != nil {
		return nil, errors.Wrap(err, "failed to parse policy file")
	}
	if len(matrix) == 0 {
		return nil, errors.Wrap(os.ErrInvalid, "policy file defines no providers")
	}

	slog.Info("policy_matrix_loaded", "path", path, "providers", len(matrix))
	return &Engine{matrix: matrix}, nil
}

// GetLimits returns the limits for a (provider, environment, department)
// tuple. Missing keys at any level return the fail-closed record.
func (e *Engine) GetLimits(provider, environment, department string) Limits {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		provider = "aws"
	}
	environment = strings.ToLower(strings.TrimSpace(environment))
	if environment == "" {
		environment = "dev"
	}
	department = strings.TrimSpace(department)
	if department == "" {
		return failClosed
	}

	envs, ok := e.matrix[provider]
	if !ok {
		return failClosed
	}
	depts, ok := envs[environment]
	if !ok {
		return failClosed
	}
	limits, ok := depts[department]
	if !ok {
		return failClosed
	}
	return limits
}

// CheckEnvironmentAccess reports whether a profile may use an environment.
// An explicit per-environment grant wins; otherwise dev and qa are open to
// departments whose policy does not require approval there. Production always
// requires an explicit grant.
func (e *Engine) CheckEnvironmentAccess(profile Profile, environment string) bool {
	environment = strings.ToLower(strings.TrimSpace(environment))
	if environment == "" {
		return false
	}

	if granted, ok := profile.EnvironmentAccess[environment]; ok {
		return granted
	}

	if profile.Department == "" {
		return false
	}

	limits := e.GetLimits("aws", environment, profile.Department)
	if (environment == "dev" || environment == "qa") && !limits.RequiresApproval {
		return true
	}

	return false
}

// CanCreateResource is the composite final guard: environment access plus
// instance type, region, storage ceiling, and explicit prod approval. The
// conversation validates each field incrementally; this re-checks the whole
// set before dispatch.
func (e *Engine) CanCreateResource(profile Profile, params ResourceParams) bool {
	if params.Environment == "" {
		return false
	}
	if !e.CheckEnvironmentAccess(profile, params.Environment) {
		return false
	}

	limits := e.GetLimits(params.CloudProvider, params.Environment, profile.Department)

	if params.InstanceType != "" && len(limits.AllowedInstanceTypes) > 0 &&
		!slices.Contains(limits.AllowedInstanceTypes, params.InstanceType) {
		return false
	}
	if params.Region != "" && len(limits.AllowedRegions) > 0 &&
		!slices.Contains(limits.AllowedRegions, params.Region) {
		return false
	}
	if params.StorageSize > limits.MaxStorageGB {
		return false
	}
	if limits.RequiresApproval && strings.EqualFold(params.Environment, "prod") &&
		!profile.EnvironmentAccess["prod"] {
		return false
	}

	return true
}

// AccessibleEnvironments lists the environments a profile may use, in the
// fixed dev, qa, prod order.
func (e *Engine) AccessibleEnvironments(profile Profile) []string {
	var envs []string
	for _, env := range []string{"dev", "qa", "prod"} {
		if e.CheckEnvironmentAccess(profile, env) {
			envs = append(envs, env)
		}
	}
	return envs
}
