package config

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"
	"gopkg.in/yaml.v3"
)

// A sealed file is
//
//	marker || iv || aes-256-cbc(yaml || 0 || random padding) || hmac-sha256
//
// with the aes and hmac key derived from the passphrase and iv.  Anything
// without the marker is read as plain yaml.

const magicMarkerFormat = "totp%08x"
const magicMarkerLength = 4 + 8

func makeFileMarker(version uint32) []byte {
	return []byte(fmt.Sprintf(magicMarkerFormat, version))
}

const sealVersion = 1

var magicId = makeFileMarker(sealVersion)

const fileIvSize = aes.BlockSize
const aesIvSize = aes.BlockSize
const aesKeySize = 256 / 8
const macSize = 256 / 8

var ErrEncrypted = errors.New("configuration file is encrypted")
var ErrInvalidHMAC = errors.New("invalid HMAC")
var ErrInvalidConfig = errors.New("invalid configuration file")
var ErrYAML = errors.New("could not parse YAML")
var ErrUnsupportedVersion = errors.New("unsupported configuration file version")

// ParseError wraps a YAML decoding failure and matches ErrYAML
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return ErrYAML.Error() + ": " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrYAML }

func getSealVersion(b []byte) (uint32, error) {
	var version uint32
	if len(b) < magicMarkerLength {
		return 0, errors.New("too short")
	}
	_, err := fmt.Sscanf(string(b[:magicMarkerLength]), magicMarkerFormat, &version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func isSealed(b []byte) bool {
	var ver, err = getSealVersion(b)
	if err != nil {
		return false
	}
	return ver != 0
}

// Test if a file is encrypted
func IsEncrypted(path string) bool {
	var fp, err = os.Open(path)
	if err != nil {
		return false
	}
	defer fp.Close()

	var b = make([]byte, magicMarkerLength)
	if _, err = io.ReadFull(fp, b); err != nil {
		return false
	}
	return isSealed(b)
}

// Read a config from the given Reader.  key is only needed for sealed files.
func ReadConfig(reader io.Reader, key []byte) (*Config, error) {
	content, err := ioutil.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "could not read config file")
	}

	if isSealed(content) {
		if key == nil {
			return nil, ErrEncrypted
		}
		if content, err = open(key, content); err != nil {
			return nil, err
		}
	}

	if len(bytes.TrimSpace(content)) == 0 {
		return nil, ErrInvalidConfig
	}

	var cfg Config
	if err = yaml.Unmarshal(content, &cfg); err != nil {
		return nil, &ParseError{Err: err}
	}
	return &cfg, nil
}

func LoadConfig(path string, key []byte) (*Config, error) {
	var fp, err = os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return ReadConfig(fp, key)
}

// generate a key using HKDF
func kdf(secret []byte, iv []byte) ([]byte, error) {
	var key = make([]byte, aesKeySize)
	kdf := hkdf.New(sha256.New, secret, iv, magicId)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, errors.Wrap(err, "key generation error")
	}
	return key, nil
}

// encrypt and mac plaintext, prefixed with the marker
func seal(password []byte, iv []byte, plaintext []byte) ([]byte, error) {
	const minimumIncrement = aes.BlockSize * 100
	if len(iv) != aesIvSize {
		return nil, errors.New("iv isn't expected iv size")
	}
	key, err := kdf(password, iv)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "aes new cipher failed")
	}

	// terminate, then align to minimum increment and aes block size
	plaintext = append(plaintext, 0)
	if len(plaintext)%minimumIncrement != 0 {
		var padding = make([]byte, minimumIncrement-(len(plaintext)%minimumIncrement))
		if _, err := rand.Read(padding); err != nil {
			return nil, errors.Wrap(err, "could not generate random padding")
		}
		plaintext = append(plaintext, padding...)
	}

	var header = len(magicId) + fileIvSize
	var sealed = make([]byte, header+len(plaintext))
	copy(sealed, magicId)
	copy(sealed[len(magicId):], iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(sealed[header:], plaintext)

	// append hmac after encryption
	mac := hmac.New(sha256.New, key)
	mac.Write(sealed)
	return append(sealed, mac.Sum(nil)...), nil
}

// verify and decrypt a sealed file, returning the yaml it holds
func open(password []byte, content []byte) ([]byte, error) {
	version, err := getSealVersion(content)
	if err != nil || version != sealVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", version)
	}

	var header = len(magicId) + fileIvSize
	if len(content) < header+aes.BlockSize+macSize || (len(content)-header-macSize)%aes.BlockSize != 0 {
		return nil, errors.Wrap(ErrInvalidConfig, "sealed file truncated")
	}
	var iv = content[len(magicId):header]
	key, err := kdf(password, iv)
	if err != nil {
		return nil, err
	}

	// mac everything before the mac
	var payload = content[:len(content)-macSize]
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), content[len(content)-macSize:]) {
		return nil, ErrInvalidHMAC
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "aes new cipher failed")
	}
	var decrypted = make([]byte, len(payload)-header)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(decrypted, payload[header:])

	// strip the terminator and padding
	if i := bytes.IndexByte(decrypted, 0); i >= 0 {
		decrypted = decrypted[:i]
	}
	return decrypted, nil
}

// Save a config to a given file location.   It will be created with 600 permissions
func SaveConfig(path string, cfg *Config, secret []byte) error {
	var permissions os.FileMode = 0600

	fp, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, permissions)
	if err != nil {
		return err
	}
	if err = fp.Chmod(permissions); err != nil {
		fp.Close()
		return err
	}

	if err = WriteConfig(fp, cfg, secret); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

// Write a config to the given io.writer, sealed when secret is non-nil
func WriteConfig(writer io.Writer, cfg *Config, secret []byte) error {
	if cfg == nil {
		return fmt.Errorf("invalid config")
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "unmarshallable config")
	}

	if secret != nil {
		// NB - IV is used for KDF as well so it's a full AES Block
		var iv = make([]byte, aesIvSize)
		if _, err := rand.Read(iv); err != nil {
			return errors.Wrap(err, "could not generate secure random")
		}
		if data, err = seal(secret, iv, data); err != nil {
			return err
		}
	}
	_, err = writer.Write(data)
	return err
}
