package updater

import (
	"encoding/base64"
	"fmt"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Manifest describes a published release of the tool.
type Manifest struct {
	// VersionNumber is the semantic version of the release.
	VersionNumber string `yaml:"version"`
	// Binaries maps platform keys (GOOS-GOARCH) to their artifacts.
	Binaries map[string]Binary `yaml:"binaries"`
}

// Binary is one downloadable artifact of a release.
type Binary struct {
	// Name is the artifact filename relative to the release folder.
	Name string `yaml:"name"`
	// Checksum is the base64-encoded SHA-512 checksum of the artifact.
	Checksum string `yaml:"checksum"`
}

// ParseManifest decodes a YAML release manifest.
func ParseManifest(contents []byte) (*Manifest, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(contents, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	return &manifest, nil
}

// BinaryForPlatform returns the artifact for the current platform.
func (m *Manifest) BinaryForPlatform() (Binary, error) {
	key := platformKey()

	binary, ok := m.Binaries[key]
	if !ok {
		return Binary{}, fmt.Errorf("manifest has no binary for platform %s", key)
	}

	return binary, nil
}

// ChecksumBytes decodes the base64 checksum of the artifact.
func (b Binary) ChecksumBytes() ([]byte, error) {
	checksum, err := base64.StdEncoding.DecodeString(b.Checksum)
	if err != nil {
		return nil, fmt.Errorf("decode checksum: %w", err)
	}

	return checksum, nil
}

// platformKey identifies the current platform in the manifest.
func platformKey() string {
	return runtime.GOOS + "-" + runtime.GOARCH
}
