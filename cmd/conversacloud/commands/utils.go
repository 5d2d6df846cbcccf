package commands

import (
	"os"
	"path/filepath"

	"github.com/kadimisettimanoharreddy/conversacloud/internal/config"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/errors"
	"github.com/kadimisettimanoharreddy/conversacloud/pkg/policy"
)

// ensureDirectories creates all necessary directories for the application
func ensureDirectories(sqlitePath, fsmDBPath, workDir string) error {
	// Create database directory
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0755); err != nil {
		return errors.Wrap(err, "failed to create database directory")
	}

	// Create FSM database directory (only needed when running deliveries)
	if fsmDBPath != "" {
		if err := os.MkdirAll(fsmDBPath, 0755); err != nil {
			return errors.Wrap(err, "failed to create FSM directory")
		}
	}

	// Create tfvars work directory (only needed when running deliveries)
	if workDir != "" {
		if err := os.MkdirAll(workDir, 0755); err != nil {
			return errors.Wrap(err, "failed to create work directory")
		}
	}

	return nil
}

// loadPolicyEngine returns the built-in matrix or the configured override.
func loadPolicyEngine(cfg *config.Config) (*policy.Engine, error) {
	if cfg.PolicyFile == "" {
		return policy.NewEngine(), nil
	}
	engine, err := policy.NewEngineFromFile(cfg.PolicyFile)
	if err != nil {
		return nil, errors.Wrap(err, "policy load failed")
	}
	return engine, nil
}
