package buildinfo

import "fmt"

var (
	Version    = "v0.1.0"
	CommitHash = "unknown"
)

type Info struct {
	About      string `json:"about,omitempty"`
	Service    string `json:"service,omitempty"`
	Version    string `json:"version,omitempty"`
	CommitHash string `json:"commit_hash,omitempty"`
}

func GetBuildInfo() Info {
	return Info{
		About:      "https://github.com/decentraminds/osmosis-streaming-driver",
		Service:    "osmosis-streaming-driver",
		Version:    Version,
		CommitHash: CommitHash,
	}
}

// UserAgent identifies the driver towards upstream streams and the server.
func UserAgent() string {
	return fmt.Sprintf("osmosis-streaming-driver/%s", Version)
}
