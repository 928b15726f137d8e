// Package replica contains the top-level object of ld-sync, which keeps a local copy of the flag data
// of one LaunchDarkly environment up to date and summarizes the evaluations reported against it.
package replica
