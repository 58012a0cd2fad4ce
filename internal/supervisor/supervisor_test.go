package supervisor

import (
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostOfStripsScheme(t *testing.T) {
	require.Equal(t, "connect.example.invalid", hostOf("https://connect.example.invalid"))
	require.Equal(t, "localhost:8080", hostOf("http://localhost:8080"))
	require.Equal(t, "not-a-url", hostOf("not-a-url"))
}

func TestClassifySignal(t *testing.T) {
	require.Equal(t, signalShutdown, classify(os.Interrupt))
	require.Equal(t, signalShutdown, classify(syscall.SIGTERM))
	require.Equal(t, signalReload, classify(syscall.SIGHUP))
	require.Equal(t, signalNone, classify(syscall.SIGUSR1))
}
