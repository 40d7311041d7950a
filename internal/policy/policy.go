// Package policy holds the immutable security policy consulted by the
// security mediator and resource governor.
package policy

import (
	"fmt"
	"regexp"

	"sandboxcore/internal/errtax"
)

// Policy is an immutable bag of blocklists, allowlists, and numeric
// ceilings. Construct with New or Default; mutation always produces a
// new Policy via With* helpers.
type Policy struct {
	allowedPaths  []string
	blockedPaths  []string
	blockedCmds   map[string]struct{}
	allowedCmds   map[string]struct{}
	dangerousCmds []*regexp.Regexp

	allowNetwork   bool
	allowedDomains map[string]struct{}
	blockedDomains map[string]struct{}

	maxFileSize      int64
	maxTotalFiles    int
	maxCPUPercent    float64
	maxMemoryMB      int64
	maxDiskMB        int64
	maxProcesses     int
	maxExecutionTime int
}

// Option mutates a Policy under construction.
type Option func(*Policy)

var defaultBlockedCommands = []string{
	"sudo", "su", "pkexec",
	"chmod", "chown",
	"systemctl", "shutdown", "reboot", "halt", "mount", "umount",
	"curl", "wget", "nc", "netcat", "ncat", "ssh", "scp", "telnet",
	"docker", "podman", "nsenter", "unshare", "chroot", "runc",
	"zip", "unzip", "tar", "gzip", "gunzip", "7z",
}

var defaultAllowedCommands = []string{
	"python", "python3", "pip", "pip3",
	"node", "npm", "npx", "yarn", "pnpm",
	"go", "gofmt",
	"cargo", "rustc",
	"java", "javac", "mvn", "gradle",
	"make", "cmake",
	"git",
	"ls", "cat", "echo", "pwd", "cd", "mkdir", "cp", "mv", "rm",
	"grep", "find", "sed", "awk", "diff", "head", "tail", "wc",
	"test", "bash", "sh",
}

var defaultDangerousPatterns = []string{
	`(?i)sudo\s`,
	`(?i)\bsu\s+-`,
	`rm\s+-rf\s+/(\s|$)`,
	`>\s*/dev/(sd|nvme|hd)`,
	`(?i)curl[^|]*\|\s*(sh|bash)`,
	`(?i)wget[^|]*\|\s*(sh|bash)`,
	`nc\s+-e`,
	`/dev/tcp/`,
	`:\(\)\s*\{\s*:\|:&\s*\}\s*;\s*:`,
	`(?i)\beval\s*\(`,
	`` + "`curl",
	`(?i)\bmount\b`,
	`(?i)\bumount\b`,
	`(?i)docker\s+.*--privileged`,
	`(?i)nsenter\s+-t\s+1`,
	`>\s*/proc/`,
}

var defaultBlockedPaths = []string{
	"/etc/", "/proc/", "/sys/", "/dev/", "/root/", "/boot/", "/var/run/",
}

// Default returns a Policy with defaults suitable for an untrusted agent.
func Default() *Policy {
	p := &Policy{
		blockedPaths:     append([]string(nil), defaultBlockedPaths...),
		blockedCmds:      toSet(defaultBlockedCommands),
		allowedCmds:      toSet(defaultAllowedCommands),
		allowNetwork:     false,
		allowedDomains:   map[string]struct{}{},
		blockedDomains:   map[string]struct{}{},
		maxFileSize:      100 * 1024 * 1024,
		maxTotalFiles:    10000,
		maxCPUPercent:    80,
		maxMemoryMB:      1024,
		maxDiskMB:        4096,
		maxProcesses:     64,
		maxExecutionTime: 300,
	}
	for _, pat := range defaultDangerousPatterns {
		p.dangerousCmds = append(p.dangerousCmds, regexp.MustCompile(pat))
	}
	return p
}

// New builds a Policy from Default with the given options applied, then
// validates that no command is both allowed and blocked, returning
// ErrPolicyMisconfig otherwise. Dangerous-command patterns are compiled
// by WithDangerousPatterns, which panics on an invalid pattern.
func New(opts ...Option) (*Policy, error) {
	p := Default()
	for _, opt := range opts {
		opt(p)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", errtax.ErrPolicyMisconfig, err)
	}
	return p, nil
}

func (p *Policy) validate() error {
	for cmd := range p.allowedCmds {
		if _, blocked := p.blockedCmds[cmd]; blocked {
			return fmt.Errorf("command %q is both allowed and blocked", cmd)
		}
	}
	return nil
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

// WithAllowedPaths overrides the allowed path prefix list.
func WithAllowedPaths(paths ...string) Option {
	return func(p *Policy) { p.allowedPaths = append([]string(nil), paths...) }
}

// WithBlockedPaths overrides the blocked path prefix list.
func WithBlockedPaths(paths ...string) Option {
	return func(p *Policy) { p.blockedPaths = append([]string(nil), paths...) }
}

// WithBlockedCommands overrides the blocked argv-0 set.
func WithBlockedCommands(cmds ...string) Option {
	return func(p *Policy) { p.blockedCmds = toSet(cmds) }
}

// WithAllowedCommands overrides the allowed argv-0 set.
func WithAllowedCommands(cmds ...string) Option {
	return func(p *Policy) { p.allowedCmds = toSet(cmds) }
}

// WithDangerousPatterns overrides the dangerous-command regex set.
func WithDangerousPatterns(patterns ...string) Option {
	return func(p *Policy) {
		p.dangerousCmds = nil
		for _, pat := range patterns {
			p.dangerousCmds = append(p.dangerousCmds, regexp.MustCompile(pat))
		}
	}
}

// WithNetwork enables network access, optionally scoped to an allow/block
// domain list.
func WithNetwork(allow bool, allowedDomains, blockedDomains []string) Option {
	return func(p *Policy) {
		p.allowNetwork = allow
		p.allowedDomains = toSet(allowedDomains)
		p.blockedDomains = toSet(blockedDomains)
	}
}

// WithLimits overrides the numeric ceilings.
func WithLimits(maxFileSize int64, maxTotalFiles int, maxCPUPercent float64, maxMemoryMB, maxDiskMB int64, maxProcesses, maxExecutionTimeSeconds int) Option {
	return func(p *Policy) {
		p.maxFileSize = maxFileSize
		p.maxTotalFiles = maxTotalFiles
		p.maxCPUPercent = maxCPUPercent
		p.maxMemoryMB = maxMemoryMB
		p.maxDiskMB = maxDiskMB
		p.maxProcesses = maxProcesses
		p.maxExecutionTime = maxExecutionTimeSeconds
	}
}

// Read-only accessors.

func (p *Policy) AllowedPaths() []string    { return append([]string(nil), p.allowedPaths...) }
func (p *Policy) BlockedPaths() []string    { return append([]string(nil), p.blockedPaths...) }
func (p *Policy) DangerousPatterns() []*regexp.Regexp {
	return append([]*regexp.Regexp(nil), p.dangerousCmds...)
}
func (p *Policy) IsCommandBlocked(argv0 string) bool {
	_, ok := p.blockedCmds[argv0]
	return ok
}
func (p *Policy) IsCommandAllowed(argv0 string) bool {
	if len(p.allowedCmds) == 0 {
		return true
	}
	_, ok := p.allowedCmds[argv0]
	return ok
}
func (p *Policy) AllowNetwork() bool { return p.allowNetwork }
func (p *Policy) IsDomainAllowed(domain string) bool {
	if len(p.allowedDomains) == 0 {
		return true
	}
	_, ok := p.allowedDomains[domain]
	return ok
}
func (p *Policy) IsDomainBlocked(domain string) bool {
	_, ok := p.blockedDomains[domain]
	return ok
}
func (p *Policy) MaxFileSize() int64        { return p.maxFileSize }
func (p *Policy) MaxTotalFiles() int        { return p.maxTotalFiles }
func (p *Policy) MaxCPUPercent() float64    { return p.maxCPUPercent }
func (p *Policy) MaxMemoryMB() int64        { return p.maxMemoryMB }
func (p *Policy) MaxDiskMB() int64          { return p.maxDiskMB }
func (p *Policy) MaxProcesses() int         { return p.maxProcesses }
func (p *Policy) MaxExecutionTimeSeconds() int { return p.maxExecutionTime }

// CriticalFileNames are files the filesystem mediator refuses to delete.
var CriticalFileNames = map[string]struct{}{
	".git":             {},
	"go.mod":           {},
	"package.json":     {},
	"Cargo.toml":       {},
	"pom.xml":          {},
	"build.gradle":     {},
	"requirements.txt": {},
	"setup.py":         {},
	"pyproject.toml":   {},
}
