// Package publish builds the orderbot-sync image, tags it for the registry named by AWS_ECR_REPO and
// pushes it. Every step is a docker CLI invocation whose behavior and errors belong to docker.
package publish

import "strings"

const (
	// ImageName is the local image name passed to docker build.
	ImageName = "orderbot-sync"
	// Tag is the tag docker applies when none is given.
	Tag = "latest"
	// Platform is fixed so images built on arm64 hosts still run on the amd64 fleet.
	Platform = "linux/amd64"
	// RegistryEnvVar names the environment variable holding the registry prefix.
	RegistryEnvVar = "AWS_ECR_REPO"
)

// LocalReference returns the reference produced by the build step, orderbot-sync:latest.
func LocalReference() string {
	return ImageName + ":" + Tag
}

// RemoteReference joins repo and the local reference. repo is used verbatim; an empty repo yields
// "/orderbot-sync:latest", which docker rejects.
func RemoteReference(repo string) string {
	return repo + "/" + LocalReference()
}

// Unqualified reports whether repo is empty or blank. Callers flag it; they do not rewrite it.
func Unqualified(repo string) bool {
	return strings.TrimSpace(repo) == ""
}
