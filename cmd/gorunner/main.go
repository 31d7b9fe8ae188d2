// Command gorunner is the declarative HTTP integration runner's entry
// point.
package main

import "github.com/3leaps/gorunner/internal/cmd"

// Set via -ldflags "-X main.version=... -X main.commit=... -X main.buildDate=..."
var (
	version   = "dev"
	commit    = "HEAD"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	cmd.Execute()
}
