package totp

import (
	"crypto/hmac"
	"fmt"
	"hash"
	"time"

	"bitbucket.org/jbester/binaryio"
	"github.com/pkg/errors"
)

// GeneratedCode is a one-time code ready for display
type GeneratedCode struct {
	Label  string
	Digits int
	Value  uint32
}

// String renders the code zero padded to Digits
func (code GeneratedCode) String() string {
	return fmt.Sprintf("%0*d", code.Digits, code.Value)
}

// 10^digits for digits in [MinDigits, MaxDigits]
func modulus(digits int) uint64 {
	var m uint64 = 1
	for i := 0; i < digits; i++ {
		m *= 10
	}
	return m
}

// RFC 4226 section 5.3
func calculateHotp(algorithm func() hash.Hash, secret []byte, counter uint64, digits int) (uint32, error) {
	if len(secret) == 0 {
		return 0, newError(MissingSecret, errors.New("empty secret"))
	}
	var writer = binaryio.BigEndianBufferWriter()
	writer.WriteUint64(counter)
	msg := writer.Bytes()
	h := hmac.New(algorithm, secret)
	h.Write(msg)
	digest := h.Sum(nil)
	o := digest[len(digest)-1] & 0x0f
	var reader = binaryio.BigEndianBufferReader(digest[o : o+4])
	token, err := reader.ReadUint32()
	if err != nil {
		return 0, errors.Wrap(err, "truncate digest")
	}
	token &= 0x7fffffff
	return uint32(uint64(token) % modulus(digits)), nil
}

func (cred Credential) validate() error {
	if cred.Digits < MinDigits || cred.Digits > MaxDigits {
		return paramError("digits", errors.Errorf("%d not in [%d, %d]", cred.Digits, MinDigits, MaxDigits))
	}
	if cred.Mode == TOTP && cred.Period <= 0 {
		return paramError("period", errors.Errorf("%d is not positive", cred.Period))
	}
	if cred.Mode != TOTP && cred.Mode != HOTP {
		return newError(UnsupportedMode, errors.Errorf("%d", cred.Mode))
	}
	return nil
}

// counter returns the moving factor at now
func (cred Credential) counter(now time.Time) (uint64, error) {
	if cred.Mode == HOTP {
		return cred.Counter, nil
	}
	var seconds = now.Unix()
	if seconds < 0 {
		return 0, newError(ClockError, errors.Errorf("%v is before the unix epoch", now.UTC()))
	}
	return uint64(seconds / cred.Period), nil
}

// Generate computes the code for cred.  now is ignored for HOTP credentials.
func Generate(cred Credential, now time.Time) (GeneratedCode, error) {
	if err := cred.validate(); err != nil {
		return GeneratedCode{}, err
	}
	algorithm, err := cred.Algorithm.Hash()
	if err != nil {
		return GeneratedCode{}, err
	}
	counter, err := cred.counter(now)
	if err != nil {
		return GeneratedCode{}, err
	}
	value, err := calculateHotp(algorithm, cred.Secret, counter, cred.Digits)
	if err != nil {
		return GeneratedCode{}, err
	}
	return GeneratedCode{Label: cred.Label, Digits: cred.Digits, Value: value}, nil
}

// Generate is shorthand for Generate(cred, now)
func (cred Credential) Generate(now time.Time) (GeneratedCode, error) {
	return Generate(cred, now)
}

// Remaining returns how long the TOTP code at now stays valid.  Zero for HOTP.
func (cred Credential) Remaining(now time.Time) time.Duration {
	if cred.Mode != TOTP || cred.Period <= 0 || now.Unix() < 0 {
		return 0
	}
	var step = time.Duration(cred.Period) * time.Second
	var elapsed = time.Duration(now.Unix()%cred.Period)*time.Second + time.Duration(now.Nanosecond())
	return step - elapsed
}
