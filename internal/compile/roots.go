package compile

import "path/filepath"

// MultiRootScheme is the synthetic filesystem scheme letting the compiler
// treat the generated output root and the project source root as one logical
// source tree. The value is an opaque constant; it only has to match between
// roots and scheme on the same request.
const MultiRootScheme = "codegend-app"

// MultiRoots returns the fixed dual roots passed to the underlying compiler,
// generated output first so generated files shadow project files.
func MultiRoots(projectRoot, generatedRoot string) []string {
	return []string{
		filepath.Join(generatedRoot, "lib") + string(filepath.Separator),
		filepath.Join(projectRoot, "lib") + string(filepath.Separator),
	}
}
