// Package screeps is a thin client for the server HTTP API:
// signin, branch listing, branch cloning and code upload.
package screeps
