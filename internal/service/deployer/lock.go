package deployer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/screeps-deploy/internal/logger"
)

const (
	// lockFilename marks that a deployment is running right now to avoid
	// parallel uploads from watch-mode rebuilds.
	lockFilename = ".screeps-deploy.lock"

	// lockLifetime is the period after which a stale lock is eligible for recovery.
	lockLifetime = 30 * time.Second
)

// errDeployInProgress is returned when another deployment holds the lock.
var errDeployInProgress = errors.New("another deployment is running now")

// acquireLock creates the deploy marker in the output directory and
// returns a release function. A stale marker is recovered when no other
// process with our executable name is alive.
func acquireLock(ctx context.Context, dir string) (func(), error) {
	path := filepath.Join(dir, lockFilename)

	if info, err := os.Stat(path); err == nil {
		if time.Since(info.ModTime()) <= lockLifetime {
			return nil, errDeployInProgress
		}

		logger.Info(ctx, "Deploy lock is stale, attempting cleanup")

		if isSiblingProcessRunning() {
			return nil, errDeployInProgress
		}

		if err = os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("check deploy lock: %w", err)
	}

	marker, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, errDeployInProgress
		}

		return nil, fmt.Errorf("create deploy lock: %w", err)
	}

	if err = marker.Close(); err != nil {
		return nil, fmt.Errorf("close deploy lock: %w", err)
	}

	release := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf(ctx, "Unable to remove deploy lock: %v", err)
		}
	}

	return release, nil
}

// isSiblingProcessRunning reports whether another process with the same
// executable name as ours is alive.
func isSiblingProcessRunning() bool {
	processes, err := ps.Processes()
	if err != nil {
		// Cannot prove the lock is orphaned, keep it.
		return true
	}

	var (
		thisProcessID = os.Getpid()
		executable    = filepath.Base(os.Args[0])
	)

	for _, process := range processes {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == executable {
			return true
		}
	}

	return false
}
