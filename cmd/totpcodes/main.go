package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jbester/totpcodes/cmd/common"
	"github.com/jbester/totpcodes/pkg/config"
	"github.com/jbester/totpcodes/pkg/totp"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	debug         = kingpin.Flag("debug", "Verbose diagnostics on stderr").Bool()
	at            = kingpin.Flag("time", "Generate codes for this unix time instead of now").PlaceHolder("SECONDS").String()
	codes         = kingpin.Command("codes", "Print the current code for every token in the config").Default()
	codesConfig   = codes.Arg("config", "Configuration file").Default(common.GetConfigFileName()).String()
	keepGoing     = codes.Flag("keep-going", "Print the remaining codes when a token is invalid").Short('k').Bool()
	workers       = codes.Flag("workers", "Number of tokens to compute at once").Default("1").Int()
	verbose       = codes.Flag("verbose", "Show the seconds left before each code changes").Short('v').Bool()
	strict        = codes.Flag("strict", "Refuse configuration files other users can read").Bool()
	url           = kingpin.Command("url", "Print the current code for a single otpauth url")
	urlArg        = url.Arg("url", "Provisioning url").String()
	passphrase    = kingpin.Command("passphrase", "Set or remove the passphrase of a config")
	sealingConfig = passphrase.Arg("config", "Configuration file").Default(common.GetConfigFileName()).String()
)

// the clock is the --time override when given, otherwise now
func clock(at string) (time.Time, error) {
	if at == "" {
		return time.Now(), nil
	}
	seconds, err := strconv.ParseInt(at, 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid --time %q", at)
	}
	return time.Unix(seconds, 0), nil
}

func loadConfig(path string) (*config.Config, error) {
	var password []byte
	var err error
	if config.IsEncrypted(path) {
		log.WithField("path", path).Debug("config is sealed")
		if password, err = common.GetPassword(); err != nil {
			return nil, errors.Wrap(err, "cannot read password")
		}
	}
	cfg, err := config.LoadConfig(path, password)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load %v", path)
	}
	return cfg, nil
}

func writeCode(w io.Writer, code totp.GeneratedCode, remaining time.Duration, verbose bool) {
	if verbose && remaining > 0 {
		fmt.Fprintf(w, "%v => %v (%ds)\n", code.Label, code, int(remaining.Seconds()))
		return
	}
	fmt.Fprintf(w, "%v => %v\n", code.Label, code)
}

// writeCodes prints one line per token.  With keepGoing, failed tokens get an
// error line and the first failure is returned after every token is printed.
func writeCodes(w io.Writer, tokens []string, runner totp.Runner, t time.Time, keepGoing, verbose bool) error {
	if !keepGoing {
		generated, err := runner.Run(tokens, t)
		if err != nil {
			return err
		}
		for i, code := range generated {
			writeCode(w, code, remaining(tokens[i], t), verbose)
		}
		return nil
	}

	runner.Policy = totp.ContinueOnError
	results, err := runner.RunEach(tokens, t)
	if err != nil {
		return err
	}
	var failed error
	for i, result := range results {
		if result.Err == nil {
			writeCode(w, result.Code, remaining(tokens[i], t), verbose)
			continue
		}
		if failed == nil {
			failed = result.Err
		}
		var name, cause = fmt.Sprintf("#%d", i+1), result.Err
		var item *totp.ItemError
		if errors.As(result.Err, &item) {
			cause = item.Err
			if item.Label != "" {
				name = item.Label
			}
		}
		fmt.Fprintf(w, "%v => error: %v\n", name, cause)
	}
	return failed
}

func DoCodes(path string) error {
	if err := config.CheckPermissions(path); err != nil {
		if *strict || !errors.Is(err, config.ErrInsecurePermissions) {
			return err
		}
		log.Warn(err.Error())
	}

	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	log.WithField("tokens", len(cfg.Tokens)).Debug("loaded config")

	t, err := clock(*at)
	if err != nil {
		return err
	}
	return writeCodes(os.Stdout, cfg.Tokens, totp.Runner{Workers: *workers}, t, *keepGoing, *verbose)
}

// only TOTP codes expire
func remaining(raw string, t time.Time) time.Duration {
	if cred, err := totp.ParseURL(raw); err == nil {
		return cred.Remaining(t)
	}
	return 0
}

func DoURL(raw string) error {
	// if no url passed in - ask for one
	if raw == "" {
		s, err := common.Prompt("Enter otpauth url: ")
		if err != nil {
			return errors.Wrap(err, "cannot process input")
		}
		raw = s
	}

	cred, err := totp.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return errors.Wrap(err, "cannot parse url")
	}
	t, err := clock(*at)
	if err != nil {
		return err
	}
	code, err := cred.Generate(t)
	if err != nil {
		return errors.Wrap(err, "cannot generate code")
	}
	writeCode(os.Stdout, code, cred.Remaining(t), *verbose)
	return nil
}

func DoPassphrase(path string) error {
	if !common.Exists(path) {
		return errors.Errorf("no config at %v", path)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	password, err := common.GetNewPassword()
	if err != nil {
		return errors.Wrap(err, "cannot read password")
	}
	log.WithField("sealed", password != nil).Debug("saving config")
	return config.SaveConfig(path, cfg, password)
}

func main() {
	var cmd = kingpin.Parse()
	common.SetupLogging(*debug)

	var err error
	switch cmd {
	case codes.FullCommand():
		err = DoCodes(*codesConfig)
	case url.FullCommand():
		err = DoURL(*urlArg)
	case passphrase.FullCommand():
		err = DoPassphrase(*sealingConfig)
	}
	if err != nil {
		common.DieWithError(err)
	}
	os.Exit(0)
}
