package serial

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/johnnohj/mu2-runtime/internal/domain"
)

func TestOpenRequiresPort(t *testing.T) {
	t.Parallel()

	_, err := Open("", DefaultBaud)
	assert.ErrorContains(t, err, "serial port is empty")
}

func TestOpenMissingDevice(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "ttyACM0"), DefaultBaud)
	assert.ErrorIs(t, err, domain.ErrTransport)
}
