// Package toolchain implements the Toolchain Adapter (boundary — C9):
// language/build-system/test-framework detection from an isolate's
// filesystem, a verb-to-command-sequence mapping, and per-invocation
// recording of each run as a journal command action, with the
// adapter-level outcome derived in this package; the History Analyzer
// is not called.
package toolchain

import (
	"os"
	"path/filepath"
	"strings"
)

// Language enumerates the detected toolchain types.
type Language string

const (
	LangPython  Language = "python"
	LangNode    Language = "node"
	LangJava    Language = "java"
	LangRust    Language = "rust"
	LangGo      Language = "go"
	LangDotNet  Language = "dotnet"
	LangRuby    Language = "ruby"
	LangPHP     Language = "php"
	LangGeneric Language = "generic"
)

// BuildSystem enumerates build-system detection results.
type BuildSystem string

const (
	BuildMake       BuildSystem = "make"
	BuildCMake      BuildSystem = "cmake"
	BuildGradle     BuildSystem = "gradle"
	BuildMaven      BuildSystem = "maven"
	BuildNpm        BuildSystem = "npm"
	BuildYarn       BuildSystem = "yarn"
	BuildCargo      BuildSystem = "cargo"
	BuildGo         BuildSystem = "go"
	BuildSetuptools BuildSystem = "setuptools"
	BuildPoetry     BuildSystem = "poetry"
	BuildWebpack    BuildSystem = "webpack"
	BuildVite       BuildSystem = "vite"
	BuildGeneric    BuildSystem = "generic"
)

// manifestRule maps a manifest filename to the language/build-system it
// implies. Checked in order; the first hit wins.
type manifestRule struct {
	file     string
	lang     Language
	build    BuildSystem
}

var manifestRules = []manifestRule{
	{"pyproject.toml", LangPython, BuildPoetry},
	{"setup.py", LangPython, BuildSetuptools},
	{"requirements.txt", LangPython, BuildSetuptools},
	{"package.json", LangNode, BuildNpm}, // refined further by lockfile below
	{"go.mod", LangGo, BuildGo},
	{"Cargo.toml", LangRust, BuildCargo},
	{"pom.xml", LangJava, BuildMaven},
	{"build.gradle", LangJava, BuildGradle},
	{"build.gradle.kts", LangJava, BuildGradle},
	{"Gemfile", LangRuby, BuildGeneric},
	{"composer.json", LangPHP, BuildGeneric},
	{"CMakeLists.txt", LangGeneric, BuildCMake},
	{"Makefile", LangGeneric, BuildMake},
}

var dotnetSuffixes = []string{".csproj", ".fsproj", ".sln"}

// Detection is the outcome of inspecting an isolate's filesystem.
type Detection struct {
	Language    Language
	BuildSystem BuildSystem
	Manifest    string
}

// Detect inspects root (a sandbox path) for manifest files and returns
// the best-guess language/build-system pairing. Falls back to Generic
// when nothing recognizable is present.
func Detect(root string) Detection {
	entries, err := os.ReadDir(root)
	if err != nil {
		return Detection{Language: LangGeneric, BuildSystem: BuildGeneric}
	}

	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		names[e.Name()] = struct{}{}
		for _, suf := range dotnetSuffixes {
			if filepath.Ext(e.Name()) == suf {
				return Detection{Language: LangDotNet, BuildSystem: BuildGeneric, Manifest: e.Name()}
			}
		}
	}

	if _, ok := names["package.json"]; ok {
		build := BuildNpm
		if _, ok := names["yarn.lock"]; ok {
			build = BuildYarn
		}
		if _, ok := names["vite.config.js"]; ok {
			build = BuildVite
		} else if _, ok := names["webpack.config.js"]; ok {
			build = BuildWebpack
		}
		return Detection{Language: LangNode, BuildSystem: build, Manifest: "package.json"}
	}

	for _, rule := range manifestRules {
		if rule.file == "package.json" {
			continue // handled above with lockfile refinement
		}
		if _, ok := names[rule.file]; ok {
			return Detection{Language: rule.lang, BuildSystem: rule.build, Manifest: rule.file}
		}
	}

	return Detection{Language: LangGeneric, BuildSystem: BuildGeneric}
}

// TestFramework enumerates detected test-framework families.
type TestFramework string

const (
	TestPytest    TestFramework = "pytest"
	TestUnittest  TestFramework = "unittest"
	TestJest      TestFramework = "jest"
	TestMocha     TestFramework = "mocha"
	TestJUnit     TestFramework = "junit"
	TestCargoTest TestFramework = "cargo_test"
	TestGoTest    TestFramework = "go_test"
	TestRSpec     TestFramework = "rspec"
	TestPHPUnit   TestFramework = "phpunit"
	TestNone      TestFramework = "none"
)

// DetectTestFramework picks the test framework: Go, Rust, Ruby, PHP and
// Java map directly to one framework; Python and Node inspect manifest
// contents, and Python also checks for a "tests/" dir.
func DetectTestFramework(root string, det Detection) TestFramework {
	switch det.Language {
	case LangGo:
		return TestGoTest
	case LangRust:
		return TestCargoTest
	case LangRuby:
		return TestRSpec
	case LangPHP:
		return TestPHPUnit
	case LangJava:
		return TestJUnit
	case LangPython:
		if fileContains(filepath.Join(root, "pyproject.toml"), "pytest") ||
			fileContains(filepath.Join(root, "requirements.txt"), "pytest") {
			return TestPytest
		}
		if dirExists(filepath.Join(root, "tests")) {
			return TestPytest
		}
		return TestUnittest
	case LangNode:
		pkg := filepath.Join(root, "package.json")
		if fileContains(pkg, "jest") {
			return TestJest
		}
		if fileContains(pkg, "mocha") {
			return TestMocha
		}
		return TestNone
	default:
		return TestNone
	}
}

func fileContains(path, needle string) bool {
	b, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(b)), strings.ToLower(needle))
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
