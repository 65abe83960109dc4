package version

// version is stamped at build time:
//
//	go build -ldflags "-X github.com/cbodonnell/jigsaw/pkg/version.version=v1.2.3"
var version = "dev"

// Get returns the build version.
func Get() string {
	return version
}
