package local

import "runtime"

// Platform answers host capability questions the pipelines depend on.
type Platform interface {
	// RequiresExecutableSuffix reports whether compiled programs need an
	// ".exe" file extension to be launchable.
	RequiresExecutableSuffix() bool
}

// HostPlatform describes the machine the server is running on.
type HostPlatform struct{}

func (HostPlatform) RequiresExecutableSuffix() bool {
	return runtime.GOOS == "windows"
}

// executableName appends the platform's executable suffix to base.
func executableName(p Platform, base string) string {
	if p.RequiresExecutableSuffix() {
		return base + ".exe"
	}
	return base
}
