package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func restore(t *testing.T) {
	v, r, b := Version, Revision, BuildDate
	t.Cleanup(func() {
		Version, Revision, BuildDate = v, r, b
	})
}

func TestVersionStrings(t *testing.T) {
	assert.Equal(t, "metaguard", AppName)
	assert.Contains(t, Short(), Version)
	assert.Contains(t, Short(), Revision)

	detailed := Detailed()
	assert.True(t, strings.HasPrefix(detailed, AppName+" "+Version))
	assert.Contains(t, detailed, "/")

	assert.Equal(t, "metaguard/"+Version, UserAgent())
}

func TestApplyBuildInfoFillsDevBuild(t *testing.T) {
	restore(t)
	Version, Revision, BuildDate = devVersion, "HEAD", "unknown"

	applyBuildInfo("v1.4.0", map[string]string{
		"vcs.revision": "abcdef1234567890",
		"vcs.modified": "true",
		"vcs.time":     "2026-01-02T03:04:05Z",
	})

	assert.Equal(t, "1.4.0", Version)
	assert.Equal(t, "abcdef123456-dirty", Revision)
	assert.Equal(t, "2026-01-02T03:04:05Z", BuildDate)
}

func TestApplyBuildInfoKeepsLdflags(t *testing.T) {
	restore(t)
	Version, Revision, BuildDate = "2.0.0", "deadbeef", "from-ldflags"

	applyBuildInfo("(devel)", map[string]string{
		"vcs.revision": "abcdef",
		"vcs.time":     "2026-01-02T03:04:05Z",
	})

	assert.Equal(t, "2.0.0", Version)
	assert.Equal(t, "deadbeef", Revision)
	assert.Equal(t, "from-ldflags", BuildDate)
}
