// Package buildinfo holds build-time metadata, kept apart from user configuration.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Context is the build metadata injected with -ldflags at link time.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string

	// Revision is the VCS commit, read from the embedded build info when not injected.
	Revision string
}

// New returns a Context for the given link-time values, filling the revision
// from the module build info when available.
func New(version, buildDate string) *Context {
	c := &Context{Version: version, BuildDate: buildDate}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				c.Revision = s.Value
			}
		}
	}
	return c
}

// GetVersion returns the version or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// GetRevision returns the short VCS revision or UnknownValue.
func (c *Context) GetRevision() string {
	if c == nil || c.Revision == "" {
		return UnknownValue
	}
	if len(c.Revision) > 12 {
		return c.Revision[:12]
	}
	return c.Revision
}

// String is the long version line printed by --version.
func (c *Context) String() string {
	return fmt.Sprintf("%s (built %s, revision %s, %s %s/%s)",
		c.GetVersion(), c.GetBuildDate(), c.GetRevision(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
