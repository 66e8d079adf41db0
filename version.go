// Package towow provides the version information for the Towow negotiation
// engine.
package towow

// Version is the current version of the engine.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
