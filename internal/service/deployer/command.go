package deployer

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/oshokin/screeps-deploy/internal/api/screeps"
	"github.com/oshokin/screeps-deploy/internal/config"
	"github.com/oshokin/screeps-deploy/internal/logger"
	"github.com/oshokin/screeps-deploy/internal/repository/bundle"
	"github.com/oshokin/screeps-deploy/internal/service/gitutil"
)

// Options contains inputs for the deployer entry point.
type Options struct {
	// ConfigPath is the path to the destination configuration file
	// (defaults to screeps.json). Ignored when Config is set.
	ConfigPath string
	// Config is an inline destination map taking precedence over ConfigPath.
	Config config.Map
	// Destination is the name of the deployment target in the config map.
	Destination string
	// BranchOverride replaces the configured branch when set.
	BranchOverride string
	// OutputDir is the build output directory the code mapping is read from.
	OutputDir string
	// RepoDir is the directory used for git branch detection (defaults to ".").
	RepoDir string
	// AllowNoDestination turns a missing destination into a logged no-op.
	AllowNoDestination bool
	// DryRun performs all local work but skips every network call.
	DryRun bool
}

var (
	// errDestinationRequired is returned when no destination is supplied
	// and AllowNoDestination is not set.
	errDestinationRequired = errors.New("destination must be provided")
	// errUnknownDestination is returned when the destination is absent from the config map.
	errUnknownDestination = errors.New("destination not found in configuration")
)

// deployer drives one deployment of a build output directory to a server branch.
// It is unexported—callers should use Run, which encapsulates setup and validation.
type deployer struct {
	// server is the resolved destination entry with defaults applied.
	server *config.Server
	// branch is the resolved target branch name.
	branch string
	// outputDir is the directory the code mapping is built from.
	outputDir string
}

// Run executes the deployment workflow: resolve the destination, resolve
// the branch, authenticate, and create-or-update the branch with the code
// mapping built from the output directory.
//
// A failure after the branch was cloned leaves the new branch in place;
// both remote calls are idempotent, so re-running the deployment is the
// documented recovery.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "deployer")

	if opts.Destination == "" {
		if opts.AllowNoDestination {
			logger.Warn(ctx, "No destination specified, skipping deployment")

			return nil
		}

		return errDestinationRequired
	}

	server, err := resolveDestination(opts)
	if err != nil {
		return err
	}

	branch, err := resolveBranch(ctx, opts, server)
	if err != nil {
		return err
	}

	d := &deployer{
		server:    server,
		branch:    branch,
		outputDir: opts.OutputDir,
	}

	if opts.DryRun {
		return d.dryRun(ctx)
	}

	release, err := acquireLock(ctx, d.outputDir)
	if err != nil {
		return err
	}
	defer release()

	if err = d.deploy(ctx); err != nil {
		return fmt.Errorf("deploy to %s: %w", opts.Destination, err)
	}

	return nil
}

// resolveDestination loads the config map and validates the destination entry.
func resolveDestination(opts *Options) (*config.Server, error) {
	destinations := opts.Config

	if destinations == nil {
		var err error

		destinations, err = config.LoadMap(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
	}

	server, ok := destinations[opts.Destination]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownDestination, opts.Destination)
	}

	if err := server.Validate(); err != nil {
		return nil, fmt.Errorf("destination %s: %w", opts.Destination, err)
	}

	server.ApplyDefaults()

	return server, nil
}

// resolveBranch applies the override, the "auto" sentinel and the default.
func resolveBranch(ctx context.Context, opts *Options, server *config.Server) (string, error) {
	branch := server.Branch
	if opts.BranchOverride != "" {
		branch = opts.BranchOverride
	}

	if branch == config.BranchAuto {
		repoDir := opts.RepoDir
		if repoDir == "" {
			repoDir = "."
		}

		detected, err := gitutil.CurrentBranch(ctx, repoDir)
		if err != nil {
			return "", fmt.Errorf("detect branch: %w", err)
		}

		logger.InfoKV(ctx, "Resolved branch from git checkout", "branch", detected)

		return detected, nil
	}

	if branch == "" {
		branch = config.DefaultBranch
	}

	return branch, nil
}

// dryRun builds the code mapping locally and reports what would be uploaded.
func (d *deployer) dryRun(ctx context.Context) error {
	mapping, err := bundle.FromDirectory(d.outputDir)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Dry run, skipping upload",
		"branch", d.branch,
		"modules", len(mapping))

	return nil
}

// deploy performs the ordered remote sequence:
// signin (when no token) -> list branches -> clone-if-missing -> set code.
func (d *deployer) deploy(ctx context.Context) error {
	client, err := screeps.New(
		d.server.Protocol,
		d.server.Hostname,
		d.server.Port,
		d.server.Path,
		screeps.WithToken(d.server.Token),
	)
	if err != nil {
		return err
	}

	if !d.server.HasToken() {
		if err = client.Signin(ctx, d.server.Email, d.server.Password); err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
	}

	branches, err := client.Branches(ctx)
	if err != nil {
		return fmt.Errorf("fetch branches: %w", err)
	}

	mapping, err := bundle.FromDirectory(d.outputDir)
	if err != nil {
		return err
	}

	if !branchExists(branches, d.branch) {
		logger.InfoKV(ctx, "Branch does not exist yet, cloning", "branch", d.branch)

		if err = client.CloneBranch(ctx, "", d.branch, mapping); err != nil {
			return err
		}
	}

	if err = client.SetCode(ctx, d.branch, mapping); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Code deployed",
		"branch", d.branch,
		"modules", len(mapping))

	return nil
}

// branchExists reports whether the named branch is in the listing.
func branchExists(branches []screeps.Branch, name string) bool {
	return slices.ContainsFunc(branches, func(b screeps.Branch) bool {
		return b.Name == name
	})
}
