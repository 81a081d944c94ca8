package updater

import (
	"bytes"
	"context"
	"crypto"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/doitdistributed/go-update"

	"github.com/oshokin/screeps-deploy/internal/logger"
	"github.com/oshokin/screeps-deploy/internal/version"

	// Ensure SHA512 is available for checksum verification.
	_ "crypto/sha512"
)

// Options contains inputs for the self-update entry point.
type Options struct {
	// ManifestURL points at the release manifest (e.g. https://host/releases/manifest.yaml).
	ManifestURL string
	// Timeout bounds each download request.
	Timeout time.Duration
}

const (
	// ManifestFilename is the conventional manifest name inside a release folder.
	ManifestFilename = "screeps-deploy-release.yaml"

	// defaultTimeout bounds manifest and binary downloads when unset.
	defaultTimeout = 60 * time.Second

	// checksumFunction verifies downloaded binaries.
	checksumFunction = crypto.SHA512

	// targetFileMode is applied to the replaced executable.
	targetFileMode os.FileMode = 0o755
)

// errManifestURLRequired is returned when no manifest URL is provided.
var errManifestURLRequired = errors.New("manifest URL must be provided")

// Run fetches the release manifest, compares versions and replaces the
// running executable with the published binary when they differ.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "updater")

	if opts.ManifestURL == "" {
		return errManifestURLRequired
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := &http.Client{Timeout: timeout}

	logger.InfoKV(ctx, "Fetching release manifest", "url", opts.ManifestURL)

	contents, err := download(ctx, httpClient, opts.ManifestURL)
	if err != nil {
		return fmt.Errorf("fetch manifest: %w", err)
	}

	manifest, err := ParseManifest(contents)
	if err != nil {
		return err
	}

	if manifest.VersionNumber == version.Short() {
		logger.InfoKV(ctx, "Already up to date", "version", version.Short())

		return nil
	}

	binary, err := manifest.BinaryForPlatform()
	if err != nil {
		return err
	}

	checksum, err := binary.ChecksumBytes()
	if err != nil {
		return err
	}

	binaryURL, err := resolveRelative(opts.ManifestURL, binary.Name)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Downloading release binary",
		"url", binaryURL,
		"version", manifest.VersionNumber)

	payload, err := download(ctx, httpClient, binaryURL)
	if err != nil {
		return fmt.Errorf("download binary: %w", err)
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	applyOptions := update.Options{
		TargetPath: executable,
		TargetMode: targetFileMode,
		Checksum:   checksum,
		Hash:       checksumFunction,
	}

	if err = update.Apply(bytes.NewReader(payload), applyOptions); err != nil {
		if rollbackErr := update.RollbackError(err); rollbackErr != nil {
			return fmt.Errorf("apply update failed and rollback failed: %w", rollbackErr)
		}

		return fmt.Errorf("apply update: %w", err)
	}

	logger.InfoKV(ctx, "Updated successfully",
		"from", version.Short(),
		"to", manifest.VersionNumber)

	return nil
}

// download fetches one URL into memory.
func download(ctx context.Context, httpClient *http.Client, rawURL string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	response, err := httpClient.Do(request)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", rawURL, response.StatusCode)
	}

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return contents, nil
}

// resolveRelative resolves an artifact name against the manifest URL.
func resolveRelative(manifestURL, name string) (string, error) {
	base, err := url.Parse(manifestURL)
	if err != nil {
		return "", fmt.Errorf("parse manifest URL: %w", err)
	}

	relative, err := url.Parse(name)
	if err != nil {
		return "", fmt.Errorf("parse artifact name: %w", err)
	}

	return base.ResolveReference(relative).String(), nil
}
