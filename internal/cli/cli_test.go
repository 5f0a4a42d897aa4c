package cli

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Genivia/ugrep-indexer/internal/config"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, config.DefaultAccuracy, cfg.Accuracy)
	require.Equal(t, ".", cfg.Path)
	require.Equal(t, config.MinZmax, cfg.Zmax)
	require.False(t, cfg.Check)
}

func TestParseGroupedShorts(t *testing.T) {
	cfg, err := Parse([]string{"-qvz9", "some/dir"})
	require.NoError(t, err)
	require.True(t, cfg.Quiet)
	require.True(t, cfg.NoMessages, "quiet implies no-messages")
	require.True(t, cfg.Verbose)
	require.True(t, cfg.Decompress)
	require.Equal(t, 9, cfg.Accuracy)
	require.Equal(t, "some/dir", cfg.Path)
}

func TestParseLongOptions(t *testing.T) {
	cfg, err := Parse([]string{"--accuracy=3", "--hidden", "--ignore-binary", "--dereference-files"})
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Accuracy)
	require.True(t, cfg.Hidden)
	require.True(t, cfg.IgnoreBinary)
	require.True(t, cfg.DereferenceFiles)
}

func TestParseIgnoreFiles(t *testing.T) {
	cfg, err := Parse([]string{"-X", "--ignore-files=.myignore"})
	require.NoError(t, err)
	require.Equal(t, []string{config.DefaultIgnoreFile, ".myignore"}, cfg.IgnoreFiles)

	cfg, err = Parse([]string{"-X=.other"})
	require.NoError(t, err)
	require.Equal(t, []string{".other"}, cfg.IgnoreFiles)
}

func TestParseModePrecedence(t *testing.T) {
	cfg, err := Parse([]string{"-c", "-d", "-f"})
	require.NoError(t, err)
	require.True(t, cfg.Check)
	require.False(t, cfg.Delete, "check wins over delete")
	require.False(t, cfg.Force, "check wins over force")

	cfg, err = Parse([]string{"-d", "-f"})
	require.NoError(t, err)
	require.True(t, cfg.Delete)
	require.False(t, cfg.Force, "delete wins over force")
}

func TestParseZmax(t *testing.T) {
	cfg, err := Parse([]string{"-z", "--zmax=7"})
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Zmax)

	_, err = Parse([]string{"--zmax=0"})
	require.Error(t, err)
	_, err = Parse([]string{"--zmax=100"})
	require.Error(t, err)
	_, err = Parse([]string{"--zmax=x"})
	require.Error(t, err)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]string{"-Y"})
	require.Error(t, err)

	_, err = Parse([]string{"--bogus"})
	require.Error(t, err)

	_, err = Parse([]string{"a", "b"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "already specified")
}

func TestParseEndOfOptions(t *testing.T) {
	cfg, err := Parse([]string{"--", "-weird-dir"})
	require.NoError(t, err)
	require.Equal(t, "-weird-dir", cfg.Path)
}
