package deployer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/screeps-deploy/internal/config"
)

// fakeServer emulates the server API with an in-memory branch set.
type fakeServer struct {
	*httptest.Server

	// mu protects the state below.
	mu sync.Mutex
	// branches is the set of existing branch names.
	branches map[string]bool
	// calls counts requests per endpoint path.
	calls map[string]int
	// rejectAuth makes the signin endpoint fail.
	rejectAuth bool
}

// newFakeServer starts a fake API server with the provided branches.
func newFakeServer(t *testing.T, branches ...string) *fakeServer {
	t.Helper()

	fake := &fakeServer{
		branches: make(map[string]bool, len(branches)),
		calls:    make(map[string]int),
	}
	for _, branch := range branches {
		fake.branches[branch] = true
	}

	fake.Server = httptest.NewServer(http.HandlerFunc(fake.handle))
	t.Cleanup(fake.Server.Close)

	return fake
}

// handle dispatches one API request against the in-memory state.
func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[r.URL.Path]++

	switch r.URL.Path {
	case "/api/auth/signin":
		if f.rejectAuth {
			_, _ = w.Write([]byte(`{"ok":0,"error":"invalid credentials"}`))

			return
		}

		_, _ = w.Write([]byte(`{"ok":1,"token":"deadbeef"}`))
	case "/api/user/branches":
		type branchEntry struct {
			Branch string `json:"branch"`
		}

		list := make([]branchEntry, 0, len(f.branches))
		for name := range f.branches {
			list = append(list, branchEntry{Branch: name})
		}

		_ = json.NewEncoder(w).Encode(map[string]any{"ok": 1, "list": list})
	case "/api/user/clone-branch":
		var body struct {
			NewName string `json:"newName"`
		}

		_ = json.NewDecoder(r.Body).Decode(&body)
		f.branches[body.NewName] = true

		_, _ = w.Write([]byte(`{"ok":1}`))
	case "/api/user/code":
		_, _ = w.Write([]byte(`{"ok":1}`))
	default:
		http.NotFound(w, r)
	}
}

// callCount returns how many requests hit the endpoint.
func (f *fakeServer) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[path]
}

// totalCalls returns how many requests the server received in total.
func (f *fakeServer) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, count := range f.calls {
		total += count
	}

	return total
}

// destination builds a config entry pointing at the fake server.
func (f *fakeServer) destination(t *testing.T) *config.Server {
	t.Helper()

	parsed, err := url.Parse(f.URL)
	require.NoError(t, err)

	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	return &config.Server{
		Token:    "deadbeef",
		Protocol: parsed.Scheme,
		Hostname: parsed.Hostname(),
		Port:     port,
	}
}

// writeOutputDir creates a small build output directory.
func writeOutputDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js"), []byte("var x = 1;"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.js.map"), []byte(`{"version":3}`), 0o600))

	return dir
}

// TestRunMissingDestination covers the skip flag and the hard failure.
func TestRunMissingDestination(t *testing.T) {
	t.Parallel()

	missingConfig := filepath.Join(t.TempDir(), "screeps.json")

	// Skip flag set: logged no-op, the config file is never read.
	err := Run(context.Background(), &Options{
		ConfigPath:         missingConfig,
		AllowNoDestination: true,
	})
	require.NoError(t, err)

	// Without the flag the same situation is a configuration error.
	err = Run(context.Background(), &Options{ConfigPath: missingConfig})
	require.ErrorIs(t, err, errDestinationRequired)
}

// TestRunConfigFileErrors covers missing and malformed config paths.
func TestRunConfigFileErrors(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), &Options{
		ConfigPath:  filepath.Join(t.TempDir(), "screeps.json"),
		Destination: "main",
	})
	require.ErrorIs(t, err, config.ErrNotFound)

	broken := filepath.Join(t.TempDir(), "screeps.json")
	require.NoError(t, os.WriteFile(broken, []byte("{broken"), 0o600))

	err = Run(context.Background(), &Options{
		ConfigPath:  broken,
		Destination: "main",
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, config.ErrNotFound)
}

// TestRunUnknownDestination fails lookup before any network call.
func TestRunUnknownDestination(t *testing.T) {
	t.Parallel()

	fake := newFakeServer(t, "default")
	destinations := config.Map{"main": fake.destination(t)}

	err := Run(context.Background(), &Options{
		Config:      destinations,
		Destination: "missing",
		OutputDir:   writeOutputDir(t),
	})
	require.ErrorIs(t, err, errUnknownDestination)
	require.Zero(t, fake.totalCalls())
}

// TestRunMissingCredentials fails validation before any network call.
func TestRunMissingCredentials(t *testing.T) {
	t.Parallel()

	fake := newFakeServer(t, "default")

	server := fake.destination(t)
	server.Token = ""
	server.Email = "user@example.com"

	err := Run(context.Background(), &Options{
		Config:      config.Map{"main": server},
		Destination: "main",
		OutputDir:   writeOutputDir(t),
	})
	require.Error(t, err)
	require.Zero(t, fake.totalCalls())
}

// TestRunAutoBranchOutsideRepository fails detection before any network call.
func TestRunAutoBranchOutsideRepository(t *testing.T) {
	t.Parallel()

	fake := newFakeServer(t, "default")

	server := fake.destination(t)
	server.Branch = config.BranchAuto

	err := Run(context.Background(), &Options{
		Config:      config.Map{"main": server},
		Destination: "main",
		OutputDir:   writeOutputDir(t),
		RepoDir:     t.TempDir(),
	})
	require.Error(t, err)
	require.Zero(t, fake.totalCalls())
}

// TestRunDryRun performs local work only.
func TestRunDryRun(t *testing.T) {
	t.Parallel()

	fake := newFakeServer(t, "default")

	err := Run(context.Background(), &Options{
		Config:      config.Map{"main": fake.destination(t)},
		Destination: "main",
		OutputDir:   writeOutputDir(t),
		DryRun:      true,
	})
	require.NoError(t, err)
	require.Zero(t, fake.totalCalls())
}

// TestRunExistingBranch uploads without cloning when the branch exists.
func TestRunExistingBranch(t *testing.T) {
	t.Parallel()

	fake := newFakeServer(t, "default")

	err := Run(context.Background(), &Options{
		Config:      config.Map{"main": fake.destination(t)},
		Destination: "main",
		OutputDir:   writeOutputDir(t),
	})
	require.NoError(t, err)

	// Token was preloaded, no signin happened.
	require.Zero(t, fake.callCount("/api/auth/signin"))
	require.Equal(t, 1, fake.callCount("/api/user/branches"))
	require.Zero(t, fake.callCount("/api/user/clone-branch"))
	require.Equal(t, 1, fake.callCount("/api/user/code"))
}

// TestRunCreatesMissingBranchOnce clones on the first run only; the second
// run sees the branch and goes straight to set-code.
func TestRunCreatesMissingBranchOnce(t *testing.T) {
	t.Parallel()

	fake := newFakeServer(t, "default")

	server := fake.destination(t)
	server.Branch = "feature"

	opts := &Options{
		Config:      config.Map{"main": server},
		Destination: "main",
		OutputDir:   writeOutputDir(t),
	}

	for run := 0; run < 2; run++ {
		require.NoError(t, Run(context.Background(), opts), fmt.Sprintf("run %d", run))
	}

	require.Equal(t, 1, fake.callCount("/api/user/clone-branch"))
	require.Equal(t, 2, fake.callCount("/api/user/code"))
}

// TestRunSigninFlow exchanges email and password when no token is set.
func TestRunSigninFlow(t *testing.T) {
	t.Parallel()

	fake := newFakeServer(t, "default")

	server := fake.destination(t)
	server.Token = ""
	server.Email = "user@example.com"
	server.Password = "hunter2"

	err := Run(context.Background(), &Options{
		Config:      config.Map{"main": server},
		Destination: "main",
		OutputDir:   writeOutputDir(t),
	})
	require.NoError(t, err)
	require.Equal(t, 1, fake.callCount("/api/auth/signin"))
	require.Equal(t, 1, fake.callCount("/api/user/code"))
}

// TestRunAuthenticationRejected aborts the sequence on signin failure.
func TestRunAuthenticationRejected(t *testing.T) {
	t.Parallel()

	fake := newFakeServer(t, "default")
	fake.rejectAuth = true

	server := fake.destination(t)
	server.Token = ""
	server.Email = "user@example.com"
	server.Password = "wrong"

	err := Run(context.Background(), &Options{
		Config:      config.Map{"main": server},
		Destination: "main",
		OutputDir:   writeOutputDir(t),
	})
	require.Error(t, err)
	require.Zero(t, fake.callCount("/api/user/branches"))
	require.Zero(t, fake.callCount("/api/user/code"))
}

// TestRunBranchOverride deploys to the override instead of the configured branch.
func TestRunBranchOverride(t *testing.T) {
	t.Parallel()

	fake := newFakeServer(t, "default", "override")

	err := Run(context.Background(), &Options{
		Config:         config.Map{"main": fake.destination(t)},
		Destination:    "main",
		BranchOverride: "override",
		OutputDir:      writeOutputDir(t),
	})
	require.NoError(t, err)
	require.Zero(t, fake.callCount("/api/user/clone-branch"))
	require.Equal(t, 1, fake.callCount("/api/user/code"))
}
