package fixture

import (
	"fmt"
	"strings"

	"github.com/dskow/fixturegen/internal/apperror"
	"github.com/dskow/fixturegen/internal/token"
)

// Result is the verification outcome of a single token variable.
type Result struct {
	Key       string
	WantValid bool
	Valid     bool
	Role      string // unverified rol claim, empty when undecodable
	Reason    string // verification error, empty when valid
}

// OK reports whether the token behaved as its key says it should.
func (r Result) OK() bool { return r.WantValid == r.Valid }

// Report lists the verification results of an environment, in value order.
type Report struct {
	Results []Result
}

// Mismatches returns the results whose outcome contradicts their key.
func (r *Report) Mismatches() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// isTokenKey reports whether the variable holds a token. Keys ending in
// _valid_token must verify; every other token must be rejected.
func isTokenKey(key string) (isToken, wantValid bool) {
	if !strings.HasSuffix(key, "_token") {
		return false, false
	}
	return true, strings.HasSuffix(key, "_valid_token")
}

// VerifyEnvironment checks every token variable of env against secret the
// way the API would.
func VerifyEnvironment(env *Environment, secret []byte) *Report {
	report := &Report{}
	for _, v := range env.Values {
		isToken, wantValid := isTokenKey(v.Key)
		if !isToken {
			continue
		}
		res := Result{Key: v.Key, WantValid: wantValid}
		res.Role, _ = token.Extract(v.Value, "rol")
		if _, err := token.Verify(v.Value, secret); err != nil {
			res.Reason = err.Error()
		} else {
			res.Valid = true
		}
		report.Results = append(report.Results, res)
	}
	return report
}

// VerifyFile reads the environment at path and verifies it. A report with
// mismatches is returned together with a VerificationFailure error.
func VerifyFile(path string, secret []byte) (*Report, error) {
	env, err := Read(path)
	if err != nil {
		return nil, apperror.New(apperror.VerificationFailure, "read environment", err)
	}

	report := VerifyEnvironment(env, secret)
	if len(report.Results) == 0 {
		return report, apperror.New(apperror.VerificationFailure, "verify environment",
			fmt.Errorf("%s contains no token variables", path))
	}
	if bad := report.Mismatches(); len(bad) > 0 {
		keys := make([]string, len(bad))
		for i, b := range bad {
			keys[i] = b.Key
		}
		return report, apperror.New(apperror.VerificationFailure, "verify environment",
			fmt.Errorf("unexpected verification outcome for %s", strings.Join(keys, ", ")))
	}
	return report, nil
}
