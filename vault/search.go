package vault

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SearchResult is one matching note from a vault search.
type SearchResult struct {
	Path    string `json:"path"`    // Path relative to the vault root
	Snippet string `json:"snippet"` // First matching line
	Matches int    `json:"matches"` // Number of matching lines in the note
}

const defaultSearchLimit = 10

// Search walks the vault for markdown notes whose content matches query
// (case-insensitive substring) and returns up to limit results ordered by
// match count, ties broken by path.
func (v *Vault) Search(query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	needle := strings.ToLower(query)

	var results []SearchResult
	err := filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != v.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}

		result, matched := scanNote(path, needle)
		if !matched {
			return nil
		}
		rel, relErr := filepath.Rel(v.root, path)
		if relErr != nil {
			rel = path
		}
		result.Path = rel
		results = append(results, result)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault search failed: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Matches != results[j].Matches {
			return results[i].Matches > results[j].Matches
		}
		return results[i].Path < results[j].Path
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Read returns the full content of a note inside the vault.
func (v *Vault) Read(path string) (string, error) {
	abs, err := v.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs) //#nosec 304 -- path validated against vault root
	if err != nil {
		return "", fmt.Errorf("failed to read note %q: %w", path, err)
	}
	return string(data), nil
}

// scanNote counts matching lines in a note and captures the first match as
// the snippet.
func scanNote(path, needle string) (SearchResult, bool) {
	f, err := os.Open(path) //#nosec 304 -- callers pass paths from WalkDir under the vault root
	if err != nil {
		return SearchResult{}, false
	}
	defer f.Close() //nolint:errcheck // File close error can be ignored

	var result SearchResult
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(strings.ToLower(line), needle) {
			if result.Matches == 0 {
				result.Snippet = strings.TrimSpace(line)
			}
			result.Matches++
		}
	}
	return result, result.Matches > 0
}
