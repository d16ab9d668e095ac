package config

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// Config is the token list read from a configuration file
//
//	tokens:
//	  - otpauth://totp/Example:alice@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Example
//
// Tokens is nil when the file has no tokens key, and empty for tokens: []
type Config struct {
	Tokens []string `yaml:"tokens"`
}

// MarshalYAML writes nil tokens as null so absent and empty stay distinct
func (cfg Config) MarshalYAML() (interface{}, error) {
	if cfg.Tokens == nil {
		return map[string]interface{}{"tokens": nil}, nil
	}
	return map[string][]string{"tokens": cfg.Tokens}, nil
}

var ErrInsecurePermissions = errors.New("configuration file is readable by other users")

// Check the file is only accessible by its owner.  Always passes on windows.
func CheckPermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := stat.Mode().Perm(); mode&0077 != 0 {
		return errors.Wrapf(ErrInsecurePermissions, "%v has mode %04o", path, mode)
	}
	return nil
}
