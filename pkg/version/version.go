// Package version reports build metadata of the llmi binary.
package version

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/pkg/errors"
)

var (
	// Version is set at build time via -ldflags
	Version = "dev"

	// GitCommit is the commit the binary was built from
	GitCommit = "unknown"

	// BuildTime is when the binary was built
	BuildTime = "unknown"
)

// Info represents version information
type Info struct {
	Version          string `json:"version"`
	GitCommit        string `json:"gitCommit"`
	BuildTime        string `json:"buildTime"`
	GoVersion        string `json:"goVersion"`
	BridgeAPIVersion string `json:"bridgeApiVersion"`
}

// Get returns the version information. bridgeAPI is the runtime bridge
// version spoken to skill handlers.
func Get(bridgeAPI string) Info {
	return Info{
		Version:          Version,
		GitCommit:        GitCommit,
		BuildTime:        BuildTime,
		GoVersion:        runtime.Version(),
		BridgeAPIVersion: bridgeAPI,
	}
}

// String returns the string representation of version info
func (i Info) String() string {
	return fmt.Sprintf("Version: %s, GitCommit: %s, BuildTime: %s, GoVersion: %s, BridgeAPI: %s",
		i.Version, i.GitCommit, i.BuildTime, i.GoVersion, i.BridgeAPIVersion)
}

// JSON returns the indented JSON representation of version info
func (i Info) JSON() (string, error) {
	data, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal version info")
	}
	return string(data), nil
}
