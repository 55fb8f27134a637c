package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func topologyFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.StringP("topology", "t", "", "")
	require.NoError(t, f.Parse(args))
	return f
}

func TestApplyPositional(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"positional", []string{"shop.yaml"}, "shop.yaml"},
		{"flag wins", []string{"-t", "a.yaml", "b.yaml"}, "a.yaml"},
		{"none", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := topologyFlags(t, tt.args...)
			require.NoError(t, applyPositional(f))

			got, err := f.GetString("topology")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyPositionalReportsSetFailure(t *testing.T) {
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, f.Parse([]string{"shop.yaml"}))

	err := applyPositional(f)
	assert.ErrorContains(t, err, "shop.yaml")
}
