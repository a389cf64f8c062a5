package scorer

// Version is the semantic version of the priority-scorer module
const Version = "0.3.0"

// VersionInfo holds version metadata for logging and health output
type VersionInfo struct {
	Version string
	Name    string
}

// GetVersion returns the module name and version.
//
// Usage:
//
//	info := scorer.GetVersion()
//	slog.Info("starting", "name", info.Name, "version", info.Version)
func GetVersion() VersionInfo {
	return VersionInfo{
		Version: Version,
		Name:    "priority-scorer",
	}
}
