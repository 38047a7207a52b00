// Package staging sweeps run workspaces left behind in the staging directory,
// typically by a process that was killed mid-run.
package staging
