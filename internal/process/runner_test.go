package process

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if err := LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunnerCapturesOutput(t *testing.T) {
	skipWithoutShell(t)

	res, err := NewExecRunner().Run(context.Background(), "sh", "-c", "echo out; echo err 1>&2")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, "sh", res.Command)
}

func TestExecRunnerReportsExitCode(t *testing.T) {
	skipWithoutShell(t)

	res, err := NewExecRunner().Run(context.Background(), "sh", "-c", "echo bad input 1>&2; exit 3")
	require.Error(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "bad input\n", res.Stderr)
}

func TestExecRunnerStopsOnDeadline(t *testing.T) {
	skipWithoutShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewExecRunner().Run(ctx, "sh", "-c", "sleep 10")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	res, err := NewExecRunner().Run(context.Background(), "definitely-not-a-real-binary-xyz")
	require.Error(t, err)
	assert.Equal(t, -1, res.ExitCode)
}

func TestResultString(t *testing.T) {
	res := Result{Command: "ffmpeg", Args: []string{"-i", "in.mp3", "out.wav"}}
	assert.Equal(t, "ffmpeg -i in.mp3 out.wav", res.String())
}
