package main

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrainInit_LogsLines(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	err := drainInit(logger, strings.NewReader("booted\nidle\n"))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "line=booted")
	assert.Contains(t, buf.String(), "line=idle")
}

func TestDrainInit_ReportsReadError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	broken := errors.New("read |0: input/output error")

	r := io.MultiReader(strings.NewReader("partial\n"), iotest.ErrReader(broken))
	err := drainInit(logger, r)
	assert.ErrorIs(t, err, broken)
}
