package vm

import (
	"bufio"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLauncherRequiresCommand(t *testing.T) {
	t.Parallel()

	_, err := NewLauncher("").Launch(context.Background())
	assert.Error(t, err)
}

func TestLauncherWiresStdioPipes(t *testing.T) {
	t.Parallel()

	proc, err := NewLauncher("cat").Launch(context.Background())
	require.NoError(t, err)
	defer func() { _ = proc.Kill() }()

	_, err = proc.Stdin().Write([]byte("hello runtime\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(proc.Stdout()).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "hello runtime\n", line)
	assert.NoError(t, proc.Err(), "process is still running")
}

func TestLauncherTerminateEndsProcess(t *testing.T) {
	t.Parallel()

	proc, err := NewLauncher("cat").Launch(context.Background())
	require.NoError(t, err)

	require.NoError(t, proc.Terminate())

	select {
	case <-proc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after terminate")
	}
}

func TestLauncherExposesVirtualEnvironment(t *testing.T) {
	t.Parallel()

	proc, err := NewLauncher("sh", "-c", "printf '%s\\n' \"$BLINKA_FORCEBOARD $MU2_VIRTUAL\"").Launch(context.Background())
	require.NoError(t, err)
	defer func() { _ = proc.Kill() }()

	line, err := bufio.NewReader(proc.Stdout()).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "GENERIC_LINUX_PC 1\n", line)
}
