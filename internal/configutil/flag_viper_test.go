package configutil

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "t", RunE: func(*cobra.Command, []string) error { return nil }}
	cmd.Flags().String("mode", "background", "")
	cmd.Flags().Bool("mock", false, "")
	cmd.Flags().Int("limit", 20, "")
	cmd.Flags().Duration("ttl", time.Hour, "")
	return cmd
}

func TestFlagWinsOverViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("reveal_mode", "background")

	cmd := newCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--mode", "sequential", "--limit", "5"}))

	assert.Equal(t, "sequential", FlagOrViperString(cmd, "mode", "reveal_mode"))
	assert.Equal(t, 5, FlagOrViperInt(cmd, "limit", "limit"))
	assert.True(t, Changed(cmd, "mode", "reveal_mode"))
}

func TestViperWinsOverDefault(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("use_mock_llm", true)
	viper.Set("session_ttl", "5m")

	cmd := newCmd()
	require.NoError(t, cmd.ParseFlags(nil))

	assert.True(t, FlagOrViperBool(cmd, "mock", "use_mock_llm"))
	assert.Equal(t, 5*time.Minute, FlagOrViperDuration(cmd, "ttl", "session_ttl"))
	assert.Equal(t, "background", FlagOrViperString(cmd, "mode", "reveal_mode"))
	assert.False(t, Changed(cmd, "mode", "reveal_mode"))
}
