package devenv

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"finscraper/lib/configutil"
)

var modName = regexp.MustCompile(`(?m)^module *([\w\-_/.]+)$`)

const moduleName = "finscraper"

func isWorkspaceRoot(currentdir string) bool {
	mod, err := os.ReadFile(filepath.Join(currentdir, "go.mod"))
	if err != nil {
		return false
	}
	matches := modName.FindSubmatch(mod)
	return len(matches) >= 2 && string(matches[1]) == moduleName
}

func GetWorkspaceRoot() (string, error) {
	currentdir, err := filepath.Abs(".")
	if err != nil {
		return "", err
	}

	for {
		if isWorkspaceRoot(currentdir) {
			return currentdir, nil
		}
		parent := filepath.Dir(currentdir)
		if parent == currentdir {
			return "", os.ErrNotExist
		}
		currentdir = parent
	}
}

func GetStateFilePath(path string) (string, error) {
	root, err := GetWorkspaceRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "dev", ".state", path), nil
}

func GetStateConfig[T any](path string) (T, error) {
	configPath, err := GetStateFilePath(path)
	if err != nil {
		var out T
		return out, err
	}
	out, err := configutil.ReadConfig[T](configPath)
	if err != nil {
		return out, fmt.Errorf("read state config %s: %w", configPath, err)
	}
	return out, nil
}

const statePrefix = "<dev_state>"

// ResolvePath expands a leading "<dev_state>" into dev/.state under the workspace root,
// creating the directory if needed. Other paths are returned as is.
func ResolvePath(path string) (string, error) {
	if !strings.HasPrefix(path, statePrefix) {
		return path, nil
	}

	root, err := GetWorkspaceRoot()
	if err != nil {
		return "", err
	}

	statedir := filepath.Join(root, "dev", ".state")
	err = os.MkdirAll(statedir, 0777)
	if err != nil {
		return "", err
	}

	subpath := strings.TrimLeft(strings.TrimPrefix(path, statePrefix), `/\`)
	return filepath.Join(statedir, filepath.FromSlash(subpath)), nil
}
