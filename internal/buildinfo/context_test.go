package buildinfo

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextGetters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		ctx      *Context
		version  string
		date     string
		revision string
	}{
		{name: "nil context", ctx: nil, version: UnknownValue, date: UnknownValue, revision: UnknownValue},
		{name: "empty context", ctx: &Context{}, version: UnknownValue, date: UnknownValue, revision: UnknownValue},
		{
			name:     "full context",
			ctx:      &Context{Version: "v0.3.0", BuildDate: "2026-10-01", Revision: "0123456789abcdef"},
			version:  "v0.3.0",
			date:     "2026-10-01",
			revision: "0123456789ab",
		},
		{name: "short revision", ctx: &Context{Revision: "abc"}, version: UnknownValue, date: UnknownValue, revision: "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.version, tt.ctx.GetVersion())
			assert.Equal(t, tt.date, tt.ctx.GetBuildDate())
			assert.Equal(t, tt.revision, tt.ctx.GetRevision())
		})
	}
}

func TestNewAndString(t *testing.T) {
	t.Parallel()

	c := New("v1.0.0", "")
	assert.Equal(t, "v1.0.0", c.Version)

	s := c.String()
	assert.True(t, strings.HasPrefix(s, "v1.0.0 (built unknown, revision "))
	assert.Contains(t, s, runtime.Version())
}
