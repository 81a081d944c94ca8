package updater

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/screeps-deploy/internal/version"
)

// TestParseManifest decodes a release manifest and its artifact lookup.
func TestParseManifest(t *testing.T) {
	t.Parallel()

	checksum := base64.StdEncoding.EncodeToString([]byte("not-a-real-checksum"))
	contents := "version: 2.0.0\nbinaries:\n  " + platformKey() + ":\n    name: screeps-deploy\n    checksum: " + checksum + "\n"

	manifest, err := ParseManifest([]byte(contents))
	require.NoError(t, err)
	require.Equal(t, "2.0.0", manifest.VersionNumber)

	binary, err := manifest.BinaryForPlatform()
	require.NoError(t, err)
	require.Equal(t, "screeps-deploy", binary.Name)

	decoded, err := binary.ChecksumBytes()
	require.NoError(t, err)
	require.Equal(t, []byte("not-a-real-checksum"), decoded)
}

// TestBinaryForPlatformMissing fails when the platform has no artifact.
func TestBinaryForPlatformMissing(t *testing.T) {
	t.Parallel()

	manifest := &Manifest{
		VersionNumber: "2.0.0",
		Binaries:      map[string]Binary{"plan9-mips": {Name: "screeps-deploy"}},
	}

	if platformKey() == "plan9-mips" {
		t.Skip("improbable test platform")
	}

	_, err := manifest.BinaryForPlatform()
	require.Error(t, err)
}

// TestPlatformKey matches the running platform.
func TestPlatformKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, runtime.GOOS+"-"+runtime.GOARCH, platformKey())
}

// TestRunUpToDate stops after the manifest when versions match.
func TestRunUpToDate(t *testing.T) {
	t.Parallel()

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++

		_, _ = w.Write([]byte("version: " + version.Short() + "\nbinaries: {}\n"))
	}))
	defer server.Close()

	err := Run(context.Background(), &Options{ManifestURL: server.URL + "/" + ManifestFilename})
	require.NoError(t, err)
	require.Equal(t, 1, requests)
}

// TestRunRequiresManifestURL rejects empty options.
func TestRunRequiresManifestURL(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{})
	require.ErrorIs(t, err, errManifestURLRequired)
}
