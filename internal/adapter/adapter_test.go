package adapter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTLSConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing CA", func(t *testing.T) {
		_, err := loadTLSConfig(filepath.Join(dir, "nope.pem"), "", "")
		assert.ErrorContains(t, err, "CA certificate file")
	})

	t.Run("garbage CA", func(t *testing.T) {
		ca := filepath.Join(dir, "ca.pem")
		require.NoError(t, os.WriteFile(ca, []byte("not a pem"), 0o600))

		_, err := loadTLSConfig(ca, "", "")
		assert.ErrorContains(t, err, "parse CA certificate")
	})

	t.Run("panics", func(t *testing.T) {
		assert.Panics(t, func() {
			MakeTLSConfig(filepath.Join(dir, "nope.pem"), "", "")
		})
	})
}
