package isolate

import (
	"os"
	"os/exec"
	"path/filepath"

	"sandboxcore/internal/logging"
)

// hasVCSMetadata reports whether dir contains a .git directory.
func hasVCSMetadata(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info.IsDir()
}

// resetWorkingTree performs `git reset --hard HEAD` inside sandboxPath
// against the cloned .git metadata. A failure is logged and returned to
// the caller but never aborts isolate creation: a sandbox with an unreset
// working tree is still usable.
func resetWorkingTree(sandboxPath string) error {
	cmd := exec.Command("git", "reset", "--hard", "HEAD")
	cmd.Dir = sandboxPath
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	out, err := cmd.CombinedOutput()
	if err != nil {
		logging.S().Warnw("working-tree reset failed", "path", sandboxPath, "output", string(out), "error", err)
		return err
	}
	return nil
}
