package common

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jbester/totpcodes/pkg/config"
	"github.com/jbester/totpcodes/pkg/totp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))

	_, err := totp.Run(nil, time.Unix(59, 0))
	assert.Equal(t, ExitNoTokens, ExitCode(errors.Wrap(err, "codes")))

	_, err = totp.Run([]string{"otpauth://totp/x?secret=1O0="}, time.Unix(59, 0))
	assert.Equal(t, ExitInvalidToken, ExitCode(err))

	_, err = config.ReadConfig(strings.NewReader(""), nil)
	assert.Equal(t, ExitInvalidConfig, ExitCode(errors.Wrap(err, "cannot load")))

	_, err = config.ReadConfig(strings.NewReader("tokens: [oops"), nil)
	assert.Equal(t, ExitYAML, ExitCode(errors.Wrap(err, "cannot load")))

	assert.Equal(t, ExitEncryptedError, ExitCode(errors.Wrap(config.ErrInvalidHMAC, "cannot load")))
	assert.Equal(t, ExitError, ExitCode(errors.New("anything else")))
}

func TestExitCodeOSError(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.True(t, os.IsNotExist(err))
	assert.NotEqual(t, ExitError, ExitCode(err))
	assert.NotEqual(t, 0, ExitCode(err))
}

func TestConfigFileName(t *testing.T) {
	assert.Equal(t, "tokens.yaml", filepath.Base(GetConfigFileName()))
	assert.Equal(t, GetConfigDirectory(), filepath.Dir(GetConfigFileName()))
	assert.True(t, Exists(t.TempDir()))
	assert.False(t, Exists(filepath.Join(t.TempDir(), "missing")))
}
