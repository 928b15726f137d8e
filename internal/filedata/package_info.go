// Package filedata contains the file data source, which reads flags and segments from local JSON or YAML
// files instead of connecting to LaunchDarkly, and can reload them when they change.
package filedata
