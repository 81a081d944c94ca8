// Package updater keeps the tool current: it fetches a YAML release
// manifest, verifies the published binary checksum and swaps the running
// executable in place.
package updater
