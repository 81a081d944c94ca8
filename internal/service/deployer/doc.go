// Package deployer pushes a build output directory to a named branch on
// a server: destination resolution, branch resolution (including the
// "auto" git sentinel), authentication, and the strictly ordered
// signin -> list -> clone-if-missing -> set-code call chain.
package deployer
