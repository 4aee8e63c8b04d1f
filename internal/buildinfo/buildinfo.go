// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

// Inject via: -X github.com/ngspreakleap/kalyan-linebot-go/internal/buildinfo.Version=...
var (
	Version   = "" // semantic version or tag
	Commit    = "" // git commit SHA
	BuildDate = "" // RFC3339 build timestamp
)

// Release returns the identifier reported to error tracking and /livez.
func Release() string {
	switch {
	case Version != "" && Commit != "":
		return Version + "+" + shortCommit()
	case Version != "":
		return Version
	case Commit != "":
		return shortCommit()
	default:
		return "dev"
	}
}

func shortCommit() string {
	if len(Commit) > 7 {
		return Commit[:7]
	}
	return Commit
}
