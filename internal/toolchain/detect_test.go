package toolchain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestDetectByManifest(t *testing.T) {
	cases := []struct {
		name       string
		files      map[string]string
		wantLang   Language
		wantBuild  BuildSystem
	}{
		{"go", map[string]string{"go.mod": "module x\n"}, LangGo, BuildGo},
		{"rust", map[string]string{"Cargo.toml": "[package]\n"}, LangRust, BuildCargo},
		{"python-poetry", map[string]string{"pyproject.toml": "[tool.poetry]\n"}, LangPython, BuildPoetry},
		{"python-setup", map[string]string{"setup.py": ""}, LangPython, BuildSetuptools},
		{"node-npm", map[string]string{"package.json": "{}"}, LangNode, BuildNpm},
		{"java-maven", map[string]string{"pom.xml": "<project/>"}, LangJava, BuildMaven},
		{"java-gradle", map[string]string{"build.gradle": ""}, LangJava, BuildGradle},
		{"ruby", map[string]string{"Gemfile": ""}, LangRuby, BuildGeneric},
		{"php", map[string]string{"composer.json": "{}"}, LangPHP, BuildGeneric},
		{"generic-make", map[string]string{"Makefile": ""}, LangGeneric, BuildMake},
		{"unknown", map[string]string{}, LangGeneric, BuildGeneric},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, contents := range tc.files {
				writeFile(t, dir, name, contents)
			}
			det := Detect(dir)
			require.Equal(t, tc.wantLang, det.Language)
			require.Equal(t, tc.wantBuild, det.BuildSystem)
		})
	}
}

func TestDetectNodeRefinesBuildFromLockfile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", "{}")
	writeFile(t, dir, "yarn.lock", "")

	det := Detect(dir)
	require.Equal(t, LangNode, det.Language)
	require.Equal(t, BuildYarn, det.BuildSystem)
}

func TestDetectDotNetBySuffix(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "App.csproj", "<Project/>")

	det := Detect(dir)
	require.Equal(t, LangDotNet, det.Language)
}

func TestDetectTestFrameworkPython(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pyproject.toml", "pytest = \"*\"\n")
	det := Detection{Language: LangPython}

	require.Equal(t, TestPytest, DetectTestFramework(dir, det))
}

func TestDetectTestFrameworkPythonFallsBackToUnittest(t *testing.T) {
	dir := t.TempDir()
	det := Detection{Language: LangPython}

	require.Equal(t, TestUnittest, DetectTestFramework(dir, det))
}

func TestDetectTestFrameworkNode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "package.json", `{"devDependencies":{"jest":"^29"}}`)
	det := Detection{Language: LangNode}

	require.Equal(t, TestJest, DetectTestFramework(dir, det))
}

func TestDetectTestFrameworkStaticLanguages(t *testing.T) {
	require.Equal(t, TestGoTest, DetectTestFramework("", Detection{Language: LangGo}))
	require.Equal(t, TestCargoTest, DetectTestFramework("", Detection{Language: LangRust}))
	require.Equal(t, TestJUnit, DetectTestFramework("", Detection{Language: LangJava}))
}
