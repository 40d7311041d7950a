package toolchain

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"sandboxcore/internal/isolate"
	"sandboxcore/internal/journal"
)

// InvocationOutcome is the adapter-level verified outcome for one verb
// invocation, distinct from the History Analyzer's generic
// command_executed outcome: a test verb whose process exits 0 but
// reports failed > 0 is Partial here, even though the underlying
// command action itself is recorded as a plain exit-code-0 success in
// the journal (Open Question 1).
type InvocationOutcome struct {
	Language          Language
	Verb              Verb
	Command           string
	ActionID          string
	Status            string // Success, Partial, Failure
	TestEvidence      *TestEvidence
	ArtifactsProduced int
	Raw               RunResult
}

// Adapter drives a detected isolate's toolchain and records each
// invocation through the journal.
type Adapter struct {
	j          *journal.Journal
	cacheRoot  string
	defaultTimeout time.Duration
}

// New builds an Adapter. cacheRoot may be empty to disable package-cache
// mount wiring.
func New(j *journal.Journal, cacheRoot string, defaultTimeout time.Duration) *Adapter {
	return &Adapter{j: j, cacheRoot: cacheRoot, defaultTimeout: defaultTimeout}
}

// Invoke resolves the command for (detected language, verb), runs it
// inside iso's sandbox directory, records a command action in the
// journal, and derives the adapter-level outcome.
func (a *Adapter) Invoke(ctx context.Context, iso *isolate.Isolate, sessionID, taskID string, verb Verb) (*InvocationOutcome, error) {
	det := Detect(iso.SandboxPath())
	cmdLine, err := ResolveCommand(det.Language, verb)
	if err != nil {
		return nil, err
	}

	env := BuildEnv(iso.SandboxPath(), sessionID, filepath.Join(iso.SandboxPath(), ".sandbox", "tmp"), nil)
	for _, mount := range CacheMounts(a.cacheRoot, det.Language) {
		for k, v := range mount.Env {
			env = append(env, k+"="+v)
		}
	}

	before := snapshotArtifacts(iso.SandboxPath())
	result := Run(ctx, cmdLine, iso.SandboxPath(), env, a.defaultTimeout)
	after := snapshotArtifacts(iso.SandboxPath())

	actionID, err := a.j.LogCommand(cmdLine, iso.SandboxPath(), result.Stdout, result.Stderr, result.ExitCode, result.Duration, sessionID, taskID)
	if err != nil {
		return nil, fmt.Errorf("record command action: %w", err)
	}

	outcome := &InvocationOutcome{
		Language:          det.Language,
		Verb:              verb,
		Command:           cmdLine,
		ActionID:          actionID,
		ArtifactsProduced: diffArtifacts(before, after),
		Raw:               result,
	}

	if verb == VerbTest {
		framework := DetectTestFramework(iso.SandboxPath(), det)
		ev := ParseTestEvidence(framework, result.Stdout+"\n"+result.Stderr)
		outcome.TestEvidence = &ev
		outcome.Status = deriveTestStatus(result, ev)
	} else {
		outcome.Status = deriveGenericStatus(result)
	}

	return outcome, nil
}

// deriveTestStatus implements Open Question 1's adapter-side rule: an
// exit_code==0 test run that nonetheless reports failed tests is
// Partial, not Success.
func deriveTestStatus(result RunResult, ev TestEvidence) string {
	if result.ExitCode != 0 {
		return "Failure"
	}
	if ev.Failed > 0 {
		return "Partial"
	}
	return "Success"
}

func deriveGenericStatus(result RunResult) string {
	if result.ExitCode == 0 {
		return "Success"
	}
	return "Failure"
}
