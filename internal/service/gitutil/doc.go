// Package gitutil detects the current git branch for destinations
// configured with the "auto" branch sentinel.
package gitutil
