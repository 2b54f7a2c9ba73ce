// Package version carries build stamps, set with
// -ldflags "-X github.com/Jon-Bright/ledtwinkle/version.GitHash=... -X github.com/Jon-Bright/ledtwinkle/version.BuildTime=..."
package version

var (
	BuildTime = "unknown"
	GitHash   = "unknown"
)

func String() string {
	return GitHash + " built " + BuildTime
}
