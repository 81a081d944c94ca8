// Package builder bundles automation code with esbuild and rewrites the
// generated source maps into requireable modules before they hit disk.
package builder
