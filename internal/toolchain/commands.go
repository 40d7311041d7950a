package toolchain

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Verb enumerates the adapter operations callers can request.
type Verb string

const (
	VerbInstall Verb = "install"
	VerbBuild   Verb = "build"
	VerbTest    Verb = "test"
	VerbLint    Verb = "lint"
	VerbFormat  Verb = "format"
	VerbClean   Verb = "clean"
)

// commandTable maps (language, verb) to the shell command line to run
// inside the isolate's working directory. Grounded on the verb choices
// implied by sandbox/v2's per-language CommandTemplate plus common
// project tooling, generalized from "run the entry file" to "run a
// named project verb".
var commandTable = map[Language]map[Verb]string{
	LangPython: {
		VerbInstall: "pip install -r requirements.txt",
		VerbBuild:   "python -m compileall .",
		VerbTest:    "pytest -q",
		VerbLint:    "ruff check .",
		VerbFormat:  "black .",
		VerbClean:   "find . -name __pycache__ -type d -prune -exec rm -rf {} +",
	},
	LangNode: {
		VerbInstall: "npm install",
		VerbBuild:   "npm run build",
		VerbTest:    "npm test",
		VerbLint:    "npm run lint",
		VerbFormat:  "npx prettier --write .",
		VerbClean:   "rm -rf node_modules dist build",
	},
	LangGo: {
		VerbInstall: "go mod download",
		VerbBuild:   "go build ./...",
		VerbTest:    "go test ./...",
		VerbLint:    "go vet ./...",
		VerbFormat:  "gofmt -l -w .",
		VerbClean:   "go clean ./...",
	},
	LangRust: {
		VerbInstall: "cargo fetch",
		VerbBuild:   "cargo build",
		VerbTest:    "cargo test",
		VerbLint:    "cargo clippy",
		VerbFormat:  "cargo fmt",
		VerbClean:   "cargo clean",
	},
	LangJava: {
		VerbInstall: "mvn -q dependency:resolve",
		VerbBuild:   "mvn -q compile",
		VerbTest:    "mvn -q test",
		VerbLint:    "mvn -q checkstyle:check",
		VerbFormat:  "mvn -q com.coveo:fmt-maven-plugin:format",
		VerbClean:   "mvn -q clean",
	},
	LangRuby: {
		VerbInstall: "bundle install",
		VerbBuild:   "bundle exec rake build",
		VerbTest:    "bundle exec rspec",
		VerbLint:    "bundle exec rubocop",
		VerbFormat:  "bundle exec rubocop -a",
		VerbClean:   "rm -rf tmp",
	},
	LangPHP: {
		VerbInstall: "composer install",
		VerbBuild:   "composer dump-autoload",
		VerbTest:    "vendor/bin/phpunit",
		VerbLint:    "vendor/bin/phpcs",
		VerbFormat:  "vendor/bin/phpcbf",
		VerbClean:   "rm -rf vendor",
	},
	LangDotNet: {
		VerbInstall: "dotnet restore",
		VerbBuild:   "dotnet build",
		VerbTest:    "dotnet test",
		VerbLint:    "dotnet format --verify-no-changes",
		VerbFormat:  "dotnet format",
		VerbClean:   "dotnet clean",
	},
}

// ResolveCommand returns the shell command line for a (language, verb)
// pair. It returns an error for a language with no command table
// (including LangGeneric) or a verb the language does not define.
func ResolveCommand(lang Language, verb Verb) (string, error) {
	byVerb, ok := commandTable[lang]
	if !ok {
		return "", fmt.Errorf("no command table for language %q", lang)
	}
	cmd, ok := byVerb[verb]
	if !ok {
		return "", fmt.Errorf("verb %q not defined for language %q", verb, lang)
	}
	return cmd, nil
}

// CacheMount describes a host<->container package-cache bind mount and
// the env vars that point the toolchain at it.
type CacheMount struct {
	HostPath      string
	ContainerPath string
	Env           map[string]string
}

// CacheMounts returns the package-cache mounts for lang, creating host
// directories under baseDir as needed. Returns nil if baseDir is empty
// (package caching disabled).
func CacheMounts(baseDir string, lang Language) []CacheMount {
	if baseDir == "" {
		return nil
	}
	mk := func(name, containerPath string, env map[string]string) CacheMount {
		host := filepath.Join(baseDir, sanitizeCacheName(name))
		_ = os.MkdirAll(host, 0o755)
		return CacheMount{HostPath: host, ContainerPath: containerPath, Env: env}
	}

	switch lang {
	case LangNode:
		return []CacheMount{mk("npm", "/cache/npm", map[string]string{"NPM_CONFIG_CACHE": "/cache/npm"})}
	case LangPython:
		return []CacheMount{mk("pip", "/cache/pip", map[string]string{"PIP_CACHE_DIR": "/cache/pip"})}
	case LangGo:
		return []CacheMount{
			mk("go-build", "/cache/go-build", map[string]string{"GOCACHE": "/cache/go-build"}),
			mk("go-mod", "/cache/go-mod", map[string]string{"GOMODCACHE": "/cache/go-mod"}),
		}
	case LangRust:
		return []CacheMount{
			mk("cargo-home", "/cache/cargo-home", map[string]string{"CARGO_HOME": "/cache/cargo-home"}),
			mk("cargo-target", "/cache/cargo-target", map[string]string{"CARGO_TARGET_DIR": "/cache/cargo-target"}),
		}
	case LangJava:
		return []CacheMount{mk("m2", "/cache/m2", map[string]string{"MAVEN_CONFIG": "/cache/m2"})}
	default:
		return nil
	}
}

func sanitizeCacheName(in string) string {
	in = strings.ToLower(strings.TrimSpace(in))
	if in == "" {
		return "default"
	}
	var b strings.Builder
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
