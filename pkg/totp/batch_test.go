package totp

import (
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rfcSecret = EncodeSecret([]byte("12345678901234567890"))

var batch = []string{
	"otpauth://totp/First?secret=" + rfcSecret + "&issuer=First&digits=8",
	"otpauth://hotp/Second?secret=" + rfcSecret + "&issuer=Second&counter=1",
	"otpauth://totp/Third?secret=JBSWY3DPEHPK3PXP",
}

func TestRunPreservesOrder(t *testing.T) {
	codes, err := Run(batch, time.Unix(59, 0))
	require.NoError(t, err)
	require.Len(t, codes, 3)
	assert.Equal(t, GeneratedCode{Label: "First", Digits: 8, Value: 94287082}, codes[0])
	assert.Equal(t, GeneratedCode{Label: "Second", Digits: 6, Value: 287082}, codes[1])
	assert.Equal(t, DefaultLabel, codes[2].Label)
}

func TestRunNoCredentials(t *testing.T) {
	codes, err := Run(nil, time.Unix(59, 0))
	assert.True(t, IsKind(err, NoCredentialsConfigured), "%v", err)
	assert.Nil(t, codes)

	_, err = Runner{Policy: ContinueOnError}.RunEach(nil, time.Unix(59, 0))
	assert.True(t, IsKind(err, NoCredentialsConfigured), "%v", err)
}

func TestRunEmptyList(t *testing.T) {
	codes, err := Run([]string{}, time.Unix(59, 0))
	assert.NoError(t, err)
	assert.Empty(t, codes)
}

func TestRunFailFastReportsFailingURL(t *testing.T) {
	var urls = []string{batch[0], "://not a url", batch[2]}
	codes, err := Run(urls, time.Unix(59, 0))
	require.Error(t, err)
	assert.Nil(t, codes)

	var item *ItemError
	require.True(t, errors.As(err, &item))
	assert.Equal(t, 1, item.Index)
	assert.True(t, IsKind(err, MalformedURL))
	assert.Contains(t, err.Error(), "token #2")
}

func TestRunFailFastLabelsGenerationFailures(t *testing.T) {
	var urls = []string{batch[0], batch[2]}
	_, err := Run(urls, time.Unix(-30, 0))
	var item *ItemError
	require.True(t, errors.As(err, &item))
	assert.Equal(t, 0, item.Index)
	assert.Equal(t, "First", item.Label)
	assert.True(t, IsKind(err, ClockError))
}

func TestRunErrorHidesSecret(t *testing.T) {
	_, err := Run([]string{"otpauth://totp/x?secret=" + rfcSecret + "&digits=99"}, time.Unix(59, 0))
	require.Error(t, err)
	assert.NotContains(t, err.Error(), rfcSecret)

	_, err = Run([]string{"://x?secret=" + rfcSecret}, time.Unix(59, 0))
	require.Error(t, err)
	assert.True(t, IsKind(err, MalformedURL))
	assert.NotContains(t, err.Error(), rfcSecret)
}

func TestRunContinueOnError(t *testing.T) {
	var runner = Runner{Policy: ContinueOnError}
	var urls = []string{batch[0], "otpauth://totp/x", batch[2]}

	codes, err := runner.Run(urls, time.Unix(59, 0))
	assert.True(t, IsKind(err, MissingSecret), "%v", err)
	require.Len(t, codes, 2)
	assert.Equal(t, "First", codes[0].Label)
	assert.Equal(t, DefaultLabel, codes[1].Label)

	results, err := runner.RunEach(urls, time.Unix(59, 0))
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, uint32(94287082), results[0].Code.Value)
	var item *ItemError
	require.True(t, errors.As(results[1].Err, &item))
	assert.Equal(t, 1, item.Index)
	assert.NoError(t, results[2].Err)
}

func TestRunWorkers(t *testing.T) {
	var urls []string
	for i := 0; i < 50; i++ {
		urls = append(urls, fmt.Sprintf("otpauth://hotp/n?secret=%s&issuer=n%d&counter=%d", rfcSecret, i, i%10))
	}
	sequential, err := Run(urls, time.Unix(59, 0))
	require.NoError(t, err)
	parallel, err := Runner{Workers: 8}.Run(urls, time.Unix(59, 0))
	require.NoError(t, err)
	assert.Equal(t, sequential, parallel)
	assert.Equal(t, "n49", parallel[49].Label)
	assert.Equal(t, uint32(520489), parallel[49].Value)
}

func TestRunWorkersFailFastReportsLowestIndex(t *testing.T) {
	var urls = []string{batch[0], batch[1], "https://bad", batch[2], "otpauth://motp/x?secret=" + rfcSecret}
	_, err := Runner{Workers: 4}.Run(urls, time.Unix(59, 0))
	var item *ItemError
	require.True(t, errors.As(err, &item))
	assert.Equal(t, 2, item.Index)
	assert.True(t, IsKind(err, UnsupportedScheme))
}

func TestErrorIs(t *testing.T) {
	_, err := Run([]string{"otpauth://totp/x?secret=" + rfcSecret + "&digits=x"}, time.Unix(59, 0))
	assert.True(t, errors.Is(err, &Error{Kind: InvalidParameter}))
	assert.True(t, errors.Is(err, &Error{Kind: InvalidParameter, Param: "digits"}))
	assert.False(t, errors.Is(err, &Error{Kind: InvalidParameter, Param: "period"}))
	assert.False(t, errors.Is(err, &Error{Kind: MissingSecret}))
	assert.Equal(t, Unknown, KindOf(errors.New("other")))
	assert.Equal(t, "no credentials configured", NoCredentialsConfigured.String())
}
