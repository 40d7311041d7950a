package toolchain

import (
	"regexp"
	"strconv"
)

// TestEvidence is the parsed outcome of a test-verb invocation.
type TestEvidence struct {
	Run, Passed, Failed, Skipped int
	CoveragePercent              *float64
	WarningCount, ErrorCount     int
}

// testPatterns maps each framework to the regexes used to pull
// run/passed/failed/skipped counts out of combined stdout+stderr
// (pytest/jest/go test/cargo test summary lines).
var testPatterns = map[TestFramework]struct {
	summary  *regexp.Regexp // captures the counts as numbered groups; group order differs per framework
	coverage *regexp.Regexp
}{
	TestPytest: {
		summary:  regexp.MustCompile(`(?m)(\d+) passed(?:, (\d+) failed)?(?:, (\d+) skipped)?`),
		coverage: regexp.MustCompile(`TOTAL\s+\d+\s+\d+\s+(\d+)%`),
	},
	TestUnittest: {
		summary: regexp.MustCompile(`(?m)Ran (\d+) tests?.*?\n\n(OK|FAILED)(?:\s+\(failures=(\d+)(?:, errors=(\d+))?\))?`),
	},
	TestJest: {
		summary:  regexp.MustCompile(`Tests:\s+(?:(\d+) failed, )?(?:(\d+) skipped, )?(\d+) passed, (\d+) total`),
		coverage: regexp.MustCompile(`All files\s*\|\s*([\d.]+)`),
	},
	TestMocha: {
		summary: regexp.MustCompile(`(\d+) passing(?:\s*\n\s*(\d+) failing)?`),
	},
	TestJUnit: {
		summary: regexp.MustCompile(`Tests run: (\d+), Failures: (\d+), Errors: (\d+), Skipped: (\d+)`),
	},
	TestGoTest: {
		summary:  regexp.MustCompile(`(?m)^(ok|FAIL)\s+\S+`),
		coverage: regexp.MustCompile(`coverage:\s+([\d.]+)% of statements`),
	},
	TestCargoTest: {
		summary: regexp.MustCompile(`test result: (ok|FAILED)\. (\d+) passed; (\d+) failed; (\d+) ignored`),
	},
	TestRSpec: {
		summary: regexp.MustCompile(`(\d+) examples?, (\d+) failures?(?:, (\d+) pending)?`),
	},
	TestPHPUnit: {
		summary: regexp.MustCompile(`Tests: (\d+), Assertions: \d+(?:, Failures: (\d+))?`),
	},
}

var warningPattern = regexp.MustCompile(`(?i)\bwarning\b`)
var errorPattern = regexp.MustCompile(`(?i)\berror\b`)

// ParseTestEvidence extracts run/passed/failed/skipped/coverage counts
// from a test-verb invocation's combined output, plus rough
// warning/error counts (case-insensitive word matches) for any verb's output.
func ParseTestEvidence(framework TestFramework, combinedOutput string) TestEvidence {
	var ev TestEvidence
	ev.WarningCount = len(warningPattern.FindAllStringIndex(combinedOutput, -1))
	ev.ErrorCount = len(errorPattern.FindAllStringIndex(combinedOutput, -1))

	pat, ok := testPatterns[framework]
	if !ok {
		return ev
	}

	switch framework {
	case TestPytest:
		if m := pat.summary.FindStringSubmatch(combinedOutput); m != nil {
			passed := atoiOr0(m[1])
			failed := atoiOr0(m[2])
			skipped := atoiOr0(m[3])
			ev.Passed, ev.Failed, ev.Skipped = passed, failed, skipped
			ev.Run = passed + failed + skipped
		}
	case TestGoTest:
		matches := pat.summary.FindAllStringSubmatch(combinedOutput, -1)
		for _, m := range matches {
			ev.Run++
			if m[1] == "ok" {
				ev.Passed++
			} else {
				ev.Failed++
			}
		}
	case TestCargoTest:
		if m := pat.summary.FindStringSubmatch(combinedOutput); m != nil {
			ev.Passed = atoiOr0(m[2])
			ev.Failed = atoiOr0(m[3])
			ev.Skipped = atoiOr0(m[4])
			ev.Run = ev.Passed + ev.Failed + ev.Skipped
		}
	case TestJest:
		if m := pat.summary.FindStringSubmatch(combinedOutput); m != nil {
			ev.Failed = atoiOr0(m[1])
			ev.Skipped = atoiOr0(m[2])
			ev.Passed = atoiOr0(m[3])
			ev.Run = atoiOr0(m[4])
		}
	case TestMocha:
		if m := pat.summary.FindStringSubmatch(combinedOutput); m != nil {
			ev.Passed = atoiOr0(m[1])
			ev.Failed = atoiOr0(m[2])
			ev.Run = ev.Passed + ev.Failed
		}
	case TestJUnit:
		if m := pat.summary.FindStringSubmatch(combinedOutput); m != nil {
			ev.Run = atoiOr0(m[1])
			failures := atoiOr0(m[2])
			errs := atoiOr0(m[3])
			ev.Skipped = atoiOr0(m[4])
			ev.Failed = failures + errs
			ev.Passed = ev.Run - ev.Failed - ev.Skipped
		}
	case TestRSpec:
		if m := pat.summary.FindStringSubmatch(combinedOutput); m != nil {
			ev.Run = atoiOr0(m[1])
			ev.Failed = atoiOr0(m[2])
			ev.Skipped = atoiOr0(m[3])
			ev.Passed = ev.Run - ev.Failed - ev.Skipped
		}
	case TestPHPUnit:
		if m := pat.summary.FindStringSubmatch(combinedOutput); m != nil {
			ev.Run = atoiOr0(m[1])
			ev.Failed = atoiOr0(m[2])
			ev.Passed = ev.Run - ev.Failed
		}
	case TestUnittest:
		if m := pat.summary.FindStringSubmatch(combinedOutput); m != nil {
			ev.Run = atoiOr0(m[1])
			failures := atoiOr0(m[3])
			errs := atoiOr0(m[4])
			ev.Failed = failures + errs
			ev.Passed = ev.Run - ev.Failed
		}
	}

	if pat.coverage != nil {
		if m := pat.coverage.FindStringSubmatch(combinedOutput); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				ev.CoveragePercent = &v
			}
		}
	}

	return ev
}

func atoiOr0(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
