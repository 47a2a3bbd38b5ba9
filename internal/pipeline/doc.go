// Package pipeline runs one backup: archive the source into the workspace,
// upload the artifact to the configured remote and remove the local scratch
// files again. The steps run strictly one after the other.
package pipeline
