package totp

import (
	"sync"
	"time"
)

// Policy decides what a Runner does when one url fails
type Policy int

const (
	// FailFast stops at the first failing url
	FailFast Policy = iota
	// ContinueOnError computes every url and reports failures per item
	ContinueOnError
)

// Result is the outcome for one url under ContinueOnError
type Result struct {
	Code GeneratedCode
	Err  error
}

// Runner computes codes for a list of provisioning urls.
// The zero value is a sequential fail-fast runner.
type Runner struct {
	Policy  Policy
	Workers int
}

// Run computes the codes for urls, in order, using the default runner
func Run(urls []string, now time.Time) ([]GeneratedCode, error) {
	return Runner{}.Run(urls, now)
}

func generateOne(index int, raw string, now time.Time) Result {
	cred, err := ParseURL(raw)
	if err != nil {
		return Result{Err: &ItemError{Index: index, Err: err}}
	}
	code, err := Generate(cred, now)
	if err != nil {
		return Result{Err: &ItemError{Index: index, Label: cred.Label, Err: err}}
	}
	return Result{Code: code}
}

// Run returns one code per url in input order.  A nil urls means nothing was
// configured and fails with NoCredentialsConfigured; an empty list is fine.
// Under FailFast the first failure (lowest index) is returned as an *ItemError
// and no codes are returned.  Under ContinueOnError the successful codes are
// returned along with the first failure.
func (runner Runner) Run(urls []string, now time.Time) ([]GeneratedCode, error) {
	results, err := runner.compute(urls, now, runner.Policy == FailFast)
	if err != nil {
		return nil, err
	}

	var codes = make([]GeneratedCode, 0, len(results))
	var first error
	for _, result := range results {
		if result.Err != nil {
			if runner.Policy == FailFast {
				return nil, result.Err
			}
			if first == nil {
				first = result.Err
			}
			continue
		}
		codes = append(codes, result.Code)
	}
	return codes, first
}

// RunEach computes every url regardless of the policy and reports the outcome of each
func (runner Runner) RunEach(urls []string, now time.Time) ([]Result, error) {
	return runner.compute(urls, now, false)
}

func (runner Runner) compute(urls []string, now time.Time, stopEarly bool) ([]Result, error) {
	if urls == nil {
		return nil, newError(NoCredentialsConfigured, nil)
	}

	var results = make([]Result, len(urls))
	if runner.Workers <= 1 || len(urls) <= 1 {
		for i, raw := range urls {
			results[i] = generateOne(i, raw, now)
			if stopEarly && results[i].Err != nil {
				return results[:i+1], nil
			}
		}
		return results, nil
	}

	// each worker writes only its own slots so ordering needs no lock
	var indexes = make(chan int)
	var wg sync.WaitGroup
	var workers = runner.Workers
	if workers > len(urls) {
		workers = len(urls)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = generateOne(i, urls[i], now)
			}
		}()
	}
	for i := range urls {
		indexes <- i
	}
	close(indexes)
	wg.Wait()
	return results, nil
}
