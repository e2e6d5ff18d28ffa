package config

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault(t *testing.T) {
	c := NewDefault()
	assert.Equal(t, TextReport, c.ReportFormat)
	assert.Equal(t, ColorAuto, c.Color)
	assert.True(t, c.PreserveAliasTargets)
	assert.Zero(t, c.MaxRounds)
	assert.True(t, c.MatchPkgFilter("anything"))
	assert.NoError(t, c.validate())
}

func TestLoad(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 50, c.MaxRounds)
	assert.False(t, c.PreserveAliasTargets)
	assert.Equal(t, DotReport, c.ReportFormat)
	assert.Equal(t, ColorNever, c.Color)
	assert.True(t, c.ReportUnresolved, "missing fields keep their default")

	assert.True(t, c.MatchPkgFilter("example.com/shapes"))
	assert.True(t, c.MatchPkgFilter("example.com/zoo/cats"))
	assert.False(t, c.MatchPkgFilter("example.com/other"))

	assert.Equal(t, filepath.Join("testdata", "shapes.go"), c.RelPath("shapes.go"))
	assert.Equal(t, "report.txt", c.ReportFile)

	lvl, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, lvl)
}

func TestRelPath(t *testing.T) {
	c := NewDefault()
	assert.Equal(t, "report.txt", c.RelPath("report.txt"), "default configs have no directory")

	c, err := Load(filepath.Join("testdata", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "out", "r.dot"), c.RelPath(filepath.Join("out", "r.dot")))

	abs, err := filepath.Abs("report.txt")
	require.NoError(t, err)
	assert.Equal(t, abs, c.RelPath(abs))
}

func TestLoadErrors(t *testing.T) {
	for _, name := range []string{"bad-format.yaml", "bad-level.yaml", "missing.yaml"} {
		_, err := Load(filepath.Join("testdata", name))
		assert.Error(t, err, name)
	}
}

func TestPrefixFilter(t *testing.T) {
	c, err := Load(filepath.Join("testdata", "prefix-filter.yaml"))
	require.NoError(t, err)
	assert.True(t, c.MatchPkgFilter("example.com/[unclosed/x"))
	assert.False(t, c.MatchPkgFilter("example.com/x"))

	c.SetPkgFilter("^fmt$")
	assert.True(t, c.MatchPkgFilter("fmt"))
	assert.False(t, c.MatchPkgFilter("fmt/x"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	c := NewDefault()
	c.LogLevel = "warn"

	log := c.NewLogger(&buf)
	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
