package builddb

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// bearGenCommand returns the "compiledb-recording wrapper" invocation used
// to capture a compile_commands.json from a build command that doesn't
// natively emit one. OP-TEE projects almost universally have `bear`
// available in their build containers; when it isn't, the rung simply fails
// and the cascade moves on.
func bearGenCommand(dir string, buildArgs ...string) *exec.Cmd {
	args := append([]string{"--output", filepath.Join(dir, "compile_commands.json")}, buildArgs...)
	cmd := exec.Command("bear", args...)
	cmd.Dir = dir
	return cmd
}

// runBuildScript invokes ./build.sh under bear, the first and
// highest-fidelity rung of the cascade.
func runBuildScript(projectDir string) (string, error) {
	script := filepath.Join(projectDir, "build.sh")
	if !fileExists(script) {
		return "", fmt.Errorf("no build.sh")
	}
	cmd := bearGenCommand(projectDir, "--", "./build.sh")
	out := filepath.Join(projectDir, "compile_commands.json")
	if err := runAndExpect(cmd, out); err != nil {
		return "", err
	}
	return out, nil
}

// runNDKBuild invokes ./ndk_build.sh under bear.
func runNDKBuild(projectDir string) (string, error) {
	script := filepath.Join(projectDir, "ndk_build.sh")
	if !fileExists(script) {
		return "", fmt.Errorf("no ndk_build.sh")
	}
	cmd := bearGenCommand(projectDir, "--", "./ndk_build.sh")
	out := filepath.Join(projectDir, "compile_commands.json")
	if err := runAndExpect(cmd, out); err != nil {
		return "", err
	}
	return out, nil
}

// runTopMake invokes `make` at the project root under bear.
func runTopMake(projectDir string) (string, error) {
	if !fileExists(filepath.Join(projectDir, "Makefile")) {
		return "", fmt.Errorf("no top-level Makefile")
	}
	cmd := bearGenCommand(projectDir, "--", "make")
	out := filepath.Join(projectDir, "compile_commands.json")
	if err := runAndExpect(cmd, out); err != nil {
		return "", err
	}
	return out, nil
}

// runTAMake invokes `make` inside ta/ under bear — OP-TEE's TA subdirectory
// carries its own Makefile distinct from the host application's.
func runTAMake(taDir string) (string, error) {
	if !fileExists(filepath.Join(taDir, "Makefile")) {
		return "", fmt.Errorf("no ta/Makefile")
	}
	cmd := bearGenCommand(taDir, "--", "make")
	out := filepath.Join(taDir, "compile_commands.json")
	if err := runAndExpect(cmd, out); err != nil {
		return "", err
	}
	return out, nil
}

// runCMake configures a CMake build with CMAKE_EXPORT_COMPILE_COMMANDS=ON,
// which writes compile_commands.json directly without needing bear.
func runCMake(taDir string) (string, error) {
	if !fileExists(filepath.Join(taDir, "CMakeLists.txt")) {
		return "", fmt.Errorf("no CMakeLists.txt")
	}
	buildDir := filepath.Join(taDir, ".teeflow-cmake-build")
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		return "", fmt.Errorf("create cmake build dir: %w", err)
	}
	cmd := exec.Command("cmake", "-S", taDir, "-B", buildDir, "-DCMAKE_EXPORT_COMPILE_COMMANDS=ON")
	out := filepath.Join(buildDir, "compile_commands.json")
	if err := runAndExpect(cmd, out); err != nil {
		return "", err
	}
	return out, nil
}

func runAndExpect(cmd *exec.Cmd, expectedOutput string) error {
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", cmd.String(), err, truncate(string(output), 500))
	}
	if !fileExists(expectedOutput) {
		return fmt.Errorf("%s completed but did not produce %s", cmd.String(), expectedOutput)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
