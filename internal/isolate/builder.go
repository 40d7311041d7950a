package isolate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"sandboxcore/internal/logging"
	"sandboxcore/internal/security"
)

// Builder materializes isolates under a manager-owned root.
type Builder struct {
	root      string
	mediator  *security.Mediator
	runtime   *ContainerRuntime // nil when no container engine is available
}

// NewBuilder builds an isolate Builder rooted at root. runtime may be
// nil; Builder then only ever produces directory-scoped isolates,
// satisfying non-goal (a)'s graceful degradation.
func NewBuilder(root string, mediator *security.Mediator, runtime *ContainerRuntime) (*Builder, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create manager root: %w", err)
	}
	return &Builder{root: root, mediator: mediator, runtime: runtime}, nil
}

// CreateIsolate clones source into a fresh sandbox directory under the
// manager root and optionally provisions a container.
func (b *Builder) CreateIsolate(ctx context.Context, source, id string, cfg IsolationConfig) (*Isolate, error) {
	info, err := os.Stat(source)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("source %q is not a directory", source)
	}

	if id == "" {
		id = uuid.NewString()
	}
	sandboxPath := filepath.Join(b.root, fmt.Sprintf("workspace_%s", id))

	iso := &Isolate{
		ID:              id,
		SourcePath:      source,
		sandboxPath:     sandboxPath,
		IsolationConfig: cfg,
		CreatedAt:       time.Now().UTC(),
		status:          StatusCreating,
		Metadata:        Metadata{Extra: map[string]string{}},
	}

	n, err := copyTree(source, sandboxPath)
	if err != nil {
		_ = iso.setStatus(StatusError)
		return iso, fmt.Errorf("clone workspace: %w", err)
	}
	iso.setTotalFiles(n)

	if hasVCSMetadata(source) {
		if err := resetWorkingTree(sandboxPath); err != nil {
			logging.S().Warnw("vcs reset failed, isolate creation continues", "isolate", id, "error", err)
		}
	}

	if err := b.activateSecurity(ctx, iso); err != nil {
		_ = iso.setStatus(StatusError)
		logging.S().Errorw("isolate security activation failed", "isolate", id, "error", err)
		return iso, nil
	}

	if err := iso.setStatus(StatusActive); err != nil {
		return iso, err
	}
	return iso, nil
}

// activateSecurity provisions a container (if configured and a runtime
// is available) and applies network/resource setup via the mediator.
// Any failure here flips the isolate to Error but is otherwise
// non-fatal: the isolate is kept around for inspection rather than torn
// down, so the caller can see what state it ended up in.
func (b *Builder) activateSecurity(ctx context.Context, iso *Isolate) error {
	_ = b.mediator.SetupNetworkIsolation()

	if !iso.IsolationConfig.UseContainer || b.runtime == nil {
		return nil
	}

	seccompDir := filepath.Join(iso.sandboxPath, "..", fmt.Sprintf(".sandbox_%s", iso.ID))
	if err := os.MkdirAll(seccompDir, 0o755); err != nil {
		return err
	}
	seccompPath, err := writeSeccompProfile(seccompDir)
	if err != nil {
		return err
	}

	image := iso.IsolationConfig.Image
	if image == "" {
		image = "ubuntu:22.04"
	}

	containerID, err := b.runtime.Provision(ctx, ProvisionOptions{
		Image:         image,
		SandboxPath:   iso.sandboxPath,
		CPULimit:      iso.IsolationConfig.CPULimit,
		MemoryLimitMB: iso.IsolationConfig.MemoryLimitMB,
		PidsLimit:     64,
		NetworkNone:   iso.IsolationConfig.NetworkIsolation,
		EnvVars:       iso.IsolationConfig.EnvVars,
		MountPoints:   iso.IsolationConfig.MountPoints,
		SeccompPath:   seccompPath,
	})
	if err != nil {
		return err
	}

	iso.mu.Lock()
	iso.Metadata.ContainerID = containerID
	iso.mu.Unlock()

	b.mediator.ApplyResourceLimits(b.runtime, containerID)
	return nil
}

// MergeBack copies sandbox contents (excluding VCS metadata) to target.
func (b *Builder) MergeBack(iso *Isolate, target string) (bool, error) {
	if err := os.MkdirAll(target, 0o755); err != nil {
		return false, err
	}
	_, err := copyTreeExcludingVCS(iso.SandboxPath(), target)
	if err != nil {
		logging.S().Errorw("merge back failed", "isolate", iso.ID, "error", err)
		return false, err
	}
	return true, nil
}

func copyTreeExcludingVCS(src, dst string) (int, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, entry := range entries {
		if entry.Name() == ".git" {
			continue
		}
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		n, err := copyTreeWalk(srcPath, dstPath)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// Destroy stops and removes the container (if any) and removes the
// sandbox directory. The isolate is flagged Destroyed regardless of
// partial failure so the owning session can be purged.
func (b *Builder) Destroy(ctx context.Context, iso *Isolate) bool {
	ok := true

	iso.mu.RLock()
	containerID := iso.Metadata.ContainerID
	iso.mu.RUnlock()

	if containerID != "" && b.runtime != nil {
		if err := b.runtime.Stop(ctx, containerID); err != nil {
			logging.S().Warnw("stop container failed", "isolate", iso.ID, "error", err)
			ok = false
		}
		if err := b.runtime.Remove(ctx, containerID); err != nil {
			logging.S().Warnw("remove container failed", "isolate", iso.ID, "error", err)
			ok = false
		}
	}

	if err := os.RemoveAll(iso.SandboxPath()); err != nil {
		logging.S().Warnw("remove sandbox dir failed", "isolate", iso.ID, "error", err)
		ok = false
	}

	_ = iso.setStatus(StatusDestroyed)
	return ok
}

// Suspend pauses the container backend, or flips status only in the
// directory-scoped fallback.
func (b *Builder) Suspend(ctx context.Context, iso *Isolate) error {
	iso.mu.RLock()
	containerID := iso.Metadata.ContainerID
	iso.mu.RUnlock()

	if containerID != "" && b.runtime != nil {
		if err := b.runtime.Pause(ctx, containerID); err != nil {
			return fmt.Errorf("pause container: %w", err)
		}
	}
	return iso.setStatus(StatusSuspended)
}

// Resume unpauses the container backend, or flips status only.
func (b *Builder) Resume(ctx context.Context, iso *Isolate) error {
	iso.mu.RLock()
	containerID := iso.Metadata.ContainerID
	iso.mu.RUnlock()

	if containerID != "" && b.runtime != nil {
		if err := b.runtime.Unpause(ctx, containerID); err != nil {
			return fmt.Errorf("unpause container: %w", err)
		}
	}
	return iso.setStatus(StatusActive)
}
