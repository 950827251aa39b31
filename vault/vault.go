// Package vault manages the markdown note vault scribe streams into and
// searches. Notes live under a single root directory; all paths handed to
// the vault are validated against that root.
package vault

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Vault is a handle on the note root directory.
type Vault struct {
	root string
}

// Open validates the root directory path and returns a Vault. The directory
// does not need to exist yet; note writes create it on demand.
func Open(root string) (*Vault, error) {
	if root == "" {
		return nil, fmt.Errorf("vault root not configured")
	}
	abs, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return nil, fmt.Errorf("invalid vault root: %w", err)
	}
	return &Vault{root: abs}, nil
}

// Root returns the absolute vault root directory.
func (v *Vault) Root() string {
	return v.root
}

// resolve validates that path stays inside the vault root and returns the
// absolute path. Prevents directory traversal through relative note paths.
func (v *Vault) resolve(path string) (string, error) {
	var abs string
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Join(v.root, path)
	}
	if !strings.HasPrefix(abs+string(filepath.Separator), v.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path outside vault: %s", path)
	}
	return abs, nil
}
