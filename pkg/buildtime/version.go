package buildtime

// set with `-ldflags "-X github.com/GeRDI-Project/Store-Service-Library-Store/pkg/buildtime.version=..."`
var version = "dev"

// set with `-ldflags "-X github.com/GeRDI-Project/Store-Service-Library-Store/pkg/buildtime.revision=..."`
var revision = "unknown"

// version string when this service has been built.
func VERSION() string {
	return version
}

func GIT_REVISION() string {
	return revision
}

func VersionString() string {
	return version + " (commit: " + revision + ")"
}
