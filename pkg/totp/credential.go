package totp

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	Scheme        = "otpauth"
	DefaultLabel  = "unknown"
	DefaultDigits = 6
	DefaultPeriod = 30
	MinDigits     = 1
	MaxDigits     = 10
)

// Algorithm is the HMAC hash
type Algorithm int

const (
	SHA1 Algorithm = iota
	SHA256
	SHA512
)

var algorithms = map[string]Algorithm{
	"SHA1":   SHA1,
	"SHA256": SHA256,
	"SHA512": SHA512,
}

func (a Algorithm) String() string {
	switch a {
	case SHA1:
		return "SHA1"
	case SHA256:
		return "SHA256"
	case SHA512:
		return "SHA512"
	}
	return "Algorithm(" + strconv.Itoa(int(a)) + ")"
}

// Hash returns the constructor HMAC is keyed with
func (a Algorithm) Hash() (func() hash.Hash, error) {
	switch a {
	case SHA1:
		return sha1.New, nil
	case SHA256:
		return sha256.New, nil
	case SHA512:
		return sha512.New, nil
	}
	return nil, newError(UnsupportedAlgorithm, errors.Errorf("%v", a))
}

// ParseAlgorithm accepts SHA1, SHA256 or SHA512 in any case
func ParseAlgorithm(name string) (Algorithm, error) {
	if a, ok := algorithms[strings.ToUpper(name)]; ok {
		return a, nil
	}
	return SHA1, paramError("algorithm", errors.Errorf("unrecognized algorithm %q", name))
}

// Mode selects counter or time based codes
type Mode int

const (
	TOTP Mode = iota
	HOTP
)

func (m Mode) String() string {
	if m == HOTP {
		return "hotp"
	}
	return "totp"
}

// Credential is a decoded provisioning url
type Credential struct {
	Label     string // issuer
	Account   string // path label, informational only
	Secret    []byte
	Algorithm Algorithm
	Digits    int
	Mode      Mode
	Period    int64  // TOTP step in seconds
	Counter   uint64 // HOTP counter
}

// ParseURL decodes an otpauth:// provisioning url.
//
//	otpauth://{hotp|totp}/{label}?secret=BASE32&issuer=STR&algorithm=SHA1&digits=N&period=SECONDS&counter=N
//
// Everything except secret is optional.
func ParseURL(raw string) (Credential, error) {
	var cred = Credential{
		Label:     DefaultLabel,
		Algorithm: SHA1,
		Digits:    DefaultDigits,
		Period:    DefaultPeriod,
	}

	u, err := url.Parse(raw)
	if err != nil {
		// url.Error quotes the input, which carries the secret
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return Credential{}, newError(MalformedURL, err)
	}
	if u.Scheme == "" {
		return Credential{}, newError(MalformedURL, errors.New("not an absolute url"))
	}
	if !strings.EqualFold(u.Scheme, Scheme) {
		return Credential{}, newError(UnsupportedScheme, errors.Errorf("%q", u.Scheme))
	}

	// otpauth://totp/label puts the mode in the host, otpauth:totp/label in the opaque part
	var path = u.Opaque
	if path == "" {
		path = u.Host + "/" + u.Path
	} else if p, err := url.PathUnescape(path); err == nil {
		path = p
	}
	var segments = strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return Credential{}, newError(UnsupportedMode, errors.New("no mode in path"))
	}
	switch strings.ToLower(segments[0]) {
	case "totp":
		cred.Mode = TOTP
	case "hotp":
		cred.Mode = HOTP
	default:
		return Credential{}, newError(UnsupportedMode, errors.Errorf("%q", segments[0]))
	}
	cred.Account = strings.Join(segments[1:], "/")

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return Credential{}, newError(MalformedURL, err)
	}

	var secret = query.Get("secret")
	if strings.TrimSpace(secret) == "" {
		return Credential{}, newError(MissingSecret, nil)
	}
	if cred.Secret, err = DecodeSecret(secret); err != nil {
		return Credential{}, err
	}
	if len(cred.Secret) == 0 {
		return Credential{}, newError(MissingSecret, errors.New("secret decodes to zero bytes"))
	}

	// last issuer wins, an empty one is kept
	if issuers, ok := query["issuer"]; ok && len(issuers) > 0 {
		cred.Label = issuers[len(issuers)-1]
	}

	if name, ok := lookup(query, "algorithm"); ok {
		if cred.Algorithm, err = ParseAlgorithm(name); err != nil {
			return Credential{}, err
		}
	}

	if s, ok := lookup(query, "digits"); ok {
		digits, err := strconv.Atoi(s)
		if err != nil {
			return Credential{}, paramError("digits", err)
		}
		if digits < MinDigits || digits > MaxDigits {
			return Credential{}, paramError("digits", errors.Errorf("%d not in [%d, %d]", digits, MinDigits, MaxDigits))
		}
		cred.Digits = digits
	}

	switch cred.Mode {
	case TOTP:
		if s, ok := lookup(query, "period"); ok {
			period, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return Credential{}, paramError("period", err)
			}
			if period <= 0 {
				return Credential{}, paramError("period", errors.Errorf("%d is not positive", period))
			}
			cred.Period = period
		}
	case HOTP:
		if s, ok := lookup(query, "counter"); ok {
			counter, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return Credential{}, paramError("counter", err)
			}
			cred.Counter = counter
		}
	}

	return cred, nil
}

func lookup(query url.Values, key string) (string, bool) {
	if _, ok := query[key]; !ok {
		return "", false
	}
	return strings.TrimSpace(query.Get(key)), true
}
