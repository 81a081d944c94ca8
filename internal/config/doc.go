// Package config loads and validates the destination map that describes
// where code is deployed: per-destination credentials, server address and
// target branch. The on-disk format is the conventional screeps.json,
// with YAML accepted as an alternative.
package config
