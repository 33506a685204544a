package nsinit

import (
	"fmt"
	"strings"
)

// checkInputName refuses filenames that could land outside the sandbox
// tmpfs: absolute paths, any name containing "..", and any path
// separator.
// Input files are flat by contract; the judged program can create its
// own directories at runtime.
func checkInputName(name string) error {
	if name == "" {
		return fmt.Errorf("input filename is empty")
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("input filename %q contains a path separator", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("input filename %q contains a parent reference", name)
	}
	return nil
}
