package buildinfo

// Version is the semantic version, set at build time via -ldflags.
var Version = "dev"

// Build is the git commit hash or build identifier, set at build time via -ldflags.
var Build = ""

// Name identifies this program to MCP peers.
const Name = "tooldispatch"
