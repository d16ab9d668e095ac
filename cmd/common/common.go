package common

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/howeyc/gopass"
	"github.com/jbester/totpcodes/pkg/config"
	"github.com/jbester/totpcodes/pkg/totp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Exit codes
const (
	ExitError          = 1
	ExitNoTokens       = 25
	ExitInvalidConfig  = 26
	ExitYAML           = 27
	ExitInvalidToken   = 28
	ExitEncryptedError = 29
)

// Print err and exit with the code ExitCode maps it to
func DieWithError(err error) {
	log.WithError(err).Debug("exiting")
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(ExitCode(err))
}

// Map an error to a process exit code
func ExitCode(err error) int {
	var errno syscall.Errno
	switch {
	case err == nil:
		return 0
	case totp.IsKind(err, totp.NoCredentialsConfigured):
		return ExitNoTokens
	case totp.KindOf(err) != totp.Unknown:
		return ExitInvalidToken
	case errors.Is(err, config.ErrInvalidConfig):
		return ExitInvalidConfig
	case errors.Is(err, config.ErrYAML):
		return ExitYAML
	case errors.Is(err, config.ErrEncrypted),
		errors.Is(err, config.ErrInvalidHMAC),
		errors.Is(err, config.ErrUnsupportedVersion):
		return ExitEncryptedError
	case errors.As(err, &errno) && errno != 0 && int(errno) < 256:
		return int(errno)
	}
	return ExitError
}

// Set up logrus for the command line.  Diagnostics go to stderr.
func SetupLogging(debug bool) {
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}
}

func Prompt(prompt string) (string, error) {
	fmt.Print(prompt)
	var b = bufio.NewReader(os.Stdin)
	return b.ReadString('\n')
}

func GetConfigFileName() string {
	return filepath.Join(GetConfigDirectory(), "tokens.yaml")
}

func GetConfigDirectory() string {
	var homeDirectory string
	if runtime.GOOS == "windows" {
		homeDirectory = os.Getenv("APPDATA")
	} else {
		homeDirectory = os.Getenv("HOME")
	}
	return filepath.Join(homeDirectory, ".totpcodes")
}

func Exists(path string) bool {
	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return true
}

// Read the passphrase for a sealed configuration file
func GetPassword() ([]byte, error) {
	fmt.Printf("Enter password: ")
	return gopass.GetPasswd()
}

// Ask for a new passphrase twice.  Returns nil for no passphrase.
func GetNewPassword() ([]byte, error) {
	for {
		fmt.Printf("Enter the passphrase (empty for no passphrase): ")
		password, err := gopass.GetPasswd()
		if err != nil {
			return nil, err
		}
		if string(password) == "" {
			return nil, nil
		}
		fmt.Printf("Enter the same passphrase again: ")
		password2, err := gopass.GetPasswd()
		if err != nil {
			return nil, err
		}
		if string(password) == string(password2) {
			return password, nil
		}
		fmt.Println("Passwords don't match")
	}
}
