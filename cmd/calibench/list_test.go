package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCmd(t *testing.T) {
	out, err := executeCommand(rootCmd, "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, registry.Names(), lines)
	assert.Contains(t, lines, "fib")
	assert.Contains(t, lines, "sha256")
}

func TestListCmd_RejectsArgs(t *testing.T) {
	_, err := executeCommand(rootCmd, "list", "extra")
	assert.Error(t, err)
}
