package isolate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	dockerclient "github.com/docker/docker/client"

	"sandboxcore/internal/logging"
)

// ContainerRuntime wraps the Docker Engine API client, talking to the
// daemon directly instead of shelling out to the docker CLI.
type ContainerRuntime struct {
	cli *dockerclient.Client
}

// NewContainerRuntime connects to the local Docker daemon. Returns an
// error the caller should treat as "degrade to the directory-scoped
// fallback", per non-goal (a).
func NewContainerRuntime() (*ContainerRuntime, error) {
	cli, err := dockerclient.NewClientWithOpts(dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3e9)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}
	return &ContainerRuntime{cli: cli}, nil
}

// ProvisionOptions describes the container to create for an isolate.
type ProvisionOptions struct {
	Image         string
	SandboxPath   string
	CPULimit      float64
	MemoryLimitMB int64
	PidsLimit     int64
	NetworkNone   bool
	EnvVars       map[string]string
	MountPoints   map[string]string
	SeccompPath   string
}

// Provision creates and starts a long-lived container for an isolate,
// mirroring container_sandbox.go's buildDockerArgs ceiling/flag choices
// (read-only root, all capabilities dropped, no-new-privileges,
// seccomp) but via the Engine API's typed structs instead of argv
// construction.
func (r *ContainerRuntime) Provision(ctx context.Context, opts ProvisionOptions) (string, error) {
	if err := r.ensureImage(ctx, opts.Image); err != nil {
		return "", err
	}

	env := make([]string, 0, len(opts.EnvVars))
	for k, v := range opts.EnvVars {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	mounts := []mount.Mount{{
		Type:   mount.TypeBind,
		Source: opts.SandboxPath,
		Target: "/workspace",
	}}
	for host, containerPath := range opts.MountPoints {
		mounts = append(mounts, mount.Mount{Type: mount.TypeBind, Source: host, Target: containerPath})
	}

	hostConfig := &container.HostConfig{
		Mounts:         mounts,
		ReadonlyRootfs: true,
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		Resources: container.Resources{
			NanoCPUs:  int64(opts.CPULimit * 1e9),
			Memory:    opts.MemoryLimitMB * 1024 * 1024,
			PidsLimit: &opts.PidsLimit,
		},
	}
	if opts.NetworkNone {
		hostConfig.NetworkMode = "none"
	}
	if opts.SeccompPath != "" {
		hostConfig.SecurityOpt = append(hostConfig.SecurityOpt, "seccomp="+opts.SeccompPath)
	}

	resp, err := r.cli.ContainerCreate(ctx, &container.Config{
		Image:      opts.Image,
		Env:        env,
		WorkingDir: "/workspace",
		Tty:        false,
		Cmd:        []string{"sleep", "infinity"},
		User:       "sandbox",
	}, hostConfig, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}
	return resp.ID, nil
}

func (r *ContainerRuntime) ensureImage(ctx context.Context, name string) error {
	_, _, err := r.cli.ImageInspectWithRaw(ctx, name)
	if err == nil {
		return nil
	}
	reader, err := r.cli.ImagePull(ctx, name, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", name, err)
	}
	defer reader.Close()
	var discard map[string]any
	dec := json.NewDecoder(reader)
	for dec.Decode(&discard) == nil {
	}
	return nil
}

// Pause/Unpause/Stop/Remove implement the lifecycle verbs the Lifecycle
// Manager calls through.

func (r *ContainerRuntime) Pause(ctx context.Context, containerID string) error {
	return r.cli.ContainerPause(ctx, containerID)
}

func (r *ContainerRuntime) Unpause(ctx context.Context, containerID string) error {
	return r.cli.ContainerUnpause(ctx, containerID)
}

func (r *ContainerRuntime) Stop(ctx context.Context, containerID string) error {
	timeout := 10
	return r.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout})
}

func (r *ContainerRuntime) Remove(ctx context.Context, containerID string) error {
	return r.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true, RemoveVolumes: true})
}

// UpdateLimits implements security.ContainerBackend.
func (r *ContainerRuntime) UpdateLimits(containerID string, cpuPercent float64, memoryMB int64, pids int) error {
	ctx := context.Background()
	pidsLimit := int64(pids)
	_, err := r.cli.ContainerUpdate(ctx, containerID, container.UpdateConfig{
		Resources: container.Resources{
			NanoCPUs:  int64(cpuPercent / 100 * 1e9),
			Memory:    memoryMB * 1024 * 1024,
			PidsLimit: &pidsLimit,
		},
	})
	return err
}

// Stats implements security.ContainerBackend by reading one stats
// sample (non-streaming).
func (r *ContainerRuntime) Stats(containerID string) (float64, int64, int, error) {
	ctx := context.Background()
	resp, err := r.cli.ContainerStatsOneShot(ctx, containerID)
	if err != nil {
		return 0, 0, 0, err
	}
	defer resp.Body.Close()

	var stats container.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return 0, 0, 0, err
	}

	cpuPercent := computeCPUPercent(&stats)
	memoryMB := int64(stats.MemoryStats.Usage / (1024 * 1024))
	pids := int(stats.PidsStats.Current)
	return cpuPercent, memoryMB, pids, nil
}

func computeCPUPercent(s *container.StatsResponse) float64 {
	cpuDelta := float64(s.CPUStats.CPUUsage.TotalUsage) - float64(s.PreCPUStats.CPUUsage.TotalUsage)
	sysDelta := float64(s.CPUStats.SystemUsage) - float64(s.PreCPUStats.SystemUsage)
	if sysDelta <= 0 || cpuDelta <= 0 {
		return 0
	}
	cpuCount := float64(len(s.CPUStats.CPUUsage.PercpuUsage))
	if cpuCount == 0 {
		cpuCount = 1
	}
	return (cpuDelta / sysDelta) * cpuCount * 100
}

// Close releases the underlying client.
func (r *ContainerRuntime) Close() error { return r.cli.Close() }

// writeSeccompProfile writes a restrictive seccomp profile (default
// action ERRNO, broad allow-list, explicit deny of
// ptrace/mount/reboot/kexec/acct/swap) to dir and returns its path.
func writeSeccompProfile(dir string) (string, error) {
	profile := map[string]any{
		"defaultAction": "SCMP_ACT_ERRNO",
		"architectures": []string{"SCMP_ARCH_X86_64", "SCMP_ARCH_X86", "SCMP_ARCH_X32"},
		"syscalls": []map[string]any{
			{
				"names": []string{
					"read", "write", "open", "openat", "close", "stat", "fstat", "lstat",
					"poll", "lseek", "mmap", "mprotect", "munmap", "brk", "rt_sigaction",
					"rt_sigprocmask", "access", "pipe", "select", "dup", "dup2", "getpid",
					"socket", "connect", "accept", "sendto", "recvfrom", "clone", "fork",
					"execve", "exit", "wait4", "kill", "uname", "fcntl", "getcwd", "chdir",
					"mkdir", "rmdir", "unlink", "readlink", "chmod", "getuid", "getgid",
					"setuid", "setgid", "arch_prctl", "exit_group", "openat2", "statx",
				},
				"action": "SCMP_ACT_ALLOW",
			},
			{
				"names":  []string{"ptrace", "mount", "umount2", "reboot", "swapon", "swapoff", "kexec_load", "acct", "init_module", "delete_module"},
				"action": "SCMP_ACT_ERRNO",
			},
		},
	}

	path := filepath.Join(dir, "seccomp.json")
	b, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", err
	}
	logging.S().Debugw("wrote seccomp profile", "path", path)
	return path, nil
}
