package deployer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAcquireLock takes and releases the deploy marker.
func TestAcquireLock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()

	release, err := acquireLock(ctx, dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, lockFilename))
	require.NoError(t, err)

	// A second deployment is refused while the lock is fresh.
	_, err = acquireLock(ctx, dir)
	require.ErrorIs(t, err, errDeployInProgress)

	release()

	// After release the lock can be taken again.
	release, err = acquireLock(ctx, dir)
	require.NoError(t, err)

	release()
}

// TestAcquireLockRecoversStaleMarker removes an old marker when no
// sibling deploy process is alive.
func TestAcquireLockRecoversStaleMarker(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, lockFilename)

	require.NoError(t, os.WriteFile(path, nil, 0o600))

	stale := time.Now().Add(-2 * lockLifetime)
	require.NoError(t, os.Chtimes(path, stale, stale))

	// The test binary name does not collide with other processes, so the
	// stale marker is recovered and the lock acquired.
	release, err := acquireLock(context.Background(), dir)
	require.NoError(t, err)

	release()
}
