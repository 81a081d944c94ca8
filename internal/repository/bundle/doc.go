// Package bundle converts a finished build output directory into the
// module mapping uploaded to a server branch.
package bundle
