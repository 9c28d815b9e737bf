// Package paths resolves the fixed installation layout shared by every
// binary: a root directory holding bin/, config/, assets/ and logs/
package paths

import (
	"os"
	"path/filepath"

	"otp4gb/internal/platform/config"
	perr "otp4gb/internal/platform/errors"
)

// Layout holds the resolved installation directories
type Layout struct {
	Root   string
	Bin    string
	Config string
	Assets string
	Logs   string
}

// FromConf resolves the layout from ROOT_DIR (default ".")
func FromConf(cfg config.Conf) Layout {
	root := cfg.MayString("ROOT_DIR", ".")
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return FromRoot(root)
}

// FromRoot derives the standard subdirectories from a root directory
func FromRoot(root string) Layout {
	return Layout{
		Root:   root,
		Bin:    filepath.Join(root, "bin"),
		Config: filepath.Join(root, "config"),
		Assets: filepath.Join(root, "assets"),
		Logs:   filepath.Join(root, "logs"),
	}
}

// EnsureLogs creates the logs directory if missing
func (l Layout) EnsureLogs() error {
	if err := os.MkdirAll(l.Logs, 0o755); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "create logs dir %s", l.Logs)
	}
	return nil
}

// CheckBin verifies a tool jar or executable exists under bin/
func (l Layout) CheckBin(name string) (string, error) {
	p := filepath.Join(l.Bin, name)
	if _, err := os.Stat(p); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeNotFound, "missing %s under %s", name, l.Bin)
	}
	return p, nil
}
