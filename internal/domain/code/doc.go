// Package code models the module mapping uploaded to a server branch:
// module names bound to inline text or base64-wrapped binary payloads.
package code
