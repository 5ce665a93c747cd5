package version

// Version is the version of the trading binary.
// This value is set at build time using ldflags:
// -ldflags "-X github.com/rxtech-lab/argo-smartorder/internal/version.Version=1.2.3"
// "main" marks a development build.
var Version = "v0.1.0"

// GetVersion returns the current version of the binary.
func GetVersion() string {
	return Version
}
