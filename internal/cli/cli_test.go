package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePositive(t *testing.T) {
	v, err := parsePositive("price", "2500.5")
	require.NoError(t, err)
	require.Equal(t, "2500.5", v.String())

	_, err = parsePositive("price", "")
	require.Error(t, err)

	_, err = parsePositive("price", "abc")
	require.Error(t, err)

	_, err = parsePositive("price", "-1")
	require.Error(t, err)
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"serve", "oracles", "history", "sweep", "export", "simulate-alert", "version"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		require.Equal(t, name, cmd.Name())
	}
}

func TestVersionSkipsConfig(t *testing.T) {
	out := &strings.Builder{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs([]string{"version", "--config", "/does/not/exist.yaml"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), "predicated dev")
}
