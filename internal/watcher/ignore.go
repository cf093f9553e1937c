package watcher

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFile is the name of per-directory ignore files, written in
// .gitignore syntax.
const IgnoreFile = ".packeagleignore"

// DefaultInclude selects module files.
var DefaultInclude = []string{"*.js"}

// Matcher decides which paths under the module directories are watched and
// indexed. Exclude patterns and ignore files use .gitignore syntax; include
// patterns are globs matched against a file's base name.
type Matcher struct {
	roots           []string
	include         []string
	excludePatterns []string
	rules           []ignoreRule
}

type ignoreRule struct {
	pattern  string
	negation bool
	basePath string // directory where the ignore file was found
}

// NewMatcher creates a matcher for the given roots. An empty include list
// means DefaultInclude.
func NewMatcher(roots, include, exclude []string) *Matcher {
	if len(include) == 0 {
		include = DefaultInclude
	}
	return &Matcher{
		roots:           roots,
		include:         include,
		excludePatterns: exclude,
	}
}

// LoadPatterns parses the exclude patterns and every ignore file found under
// the roots.
func (m *Matcher) LoadPatterns() error {
	m.rules = nil

	for _, p := range m.excludePatterns {
		m.rules = append(m.rules, parsePattern(p, ""))
	}

	for _, root := range m.roots {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // skip inaccessible entries
			}
			if info.IsDir() {
				if info.Name() == ".git" || info.Name() == "node_modules" {
					return filepath.SkipDir
				}
				return nil
			}
			if info.Name() == IgnoreFile {
				rules, loadErr := loadIgnoreFile(path)
				if loadErr != nil {
					return nil // skip unreadable ignore files
				}
				m.rules = append(m.rules, rules...)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Match returns true if the given path should be ignored.
func (m *Matcher) Match(path string) bool {
	matched := false
	for _, rule := range m.rules {
		if matchPattern(rule.pattern, rule.basePath, path) {
			matched = !rule.negation
		}
	}
	return matched
}

// Included reports whether a file path is a module file that is not ignored.
func (m *Matcher) Included(path string) bool {
	if m.Match(path) {
		return false
	}
	base := filepath.Base(path)
	for _, glob := range m.include {
		if ok, _ := filepath.Match(glob, base); ok {
			return true
		}
	}
	return false
}

func loadIgnoreFile(ignorePath string) ([]ignoreRule, error) {
	f, err := os.Open(ignorePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	basePath := filepath.Dir(ignorePath)
	var rules []ignoreRule

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, parsePattern(line, basePath))
	}
	return rules, scanner.Err()
}

func parsePattern(pattern string, basePath string) ignoreRule {
	rule := ignoreRule{basePath: basePath}

	if strings.HasPrefix(pattern, "!") {
		rule.negation = true
		pattern = pattern[1:]
	}

	// Paths are matched before stat, so a directory-only rule matches any
	// path component with that name.
	pattern = strings.TrimSuffix(pattern, "/")

	rule.pattern = pattern
	return rule
}

func matchPattern(pattern string, basePath string, path string) bool {
	// If pattern contains /, it is relative to the basePath.
	if strings.Contains(pattern, "/") {
		return matchRelativePattern(pattern, basePath, path)
	}

	if basePath != "" {
		relPath, err := filepath.Rel(basePath, path)
		if err != nil || strings.HasPrefix(relPath, "..") {
			return false
		}
	}

	for _, part := range splitPath(path) {
		if matched, _ := filepath.Match(pattern, part); matched {
			return true
		}
	}
	return false
}

func matchRelativePattern(pattern string, basePath string, path string) bool {
	relPath := path
	if basePath != "" {
		var err error
		relPath, err = filepath.Rel(basePath, path)
		if err != nil || strings.HasPrefix(relPath, "..") {
			return false
		}
	}

	if strings.Contains(pattern, "**") {
		return matchParts(splitPath(pattern), splitPath(relPath))
	}
	matched, _ := filepath.Match(pattern, filepath.ToSlash(relPath))
	return matched
}

func matchParts(patternParts, pathParts []string) bool {
	if len(patternParts) == 0 {
		return len(pathParts) == 0
	}

	if patternParts[0] == "**" {
		// ** matches zero or more directories.
		rest := patternParts[1:]
		for i := 0; i <= len(pathParts); i++ {
			if matchParts(rest, pathParts[i:]) {
				return true
			}
		}
		return false
	}

	if len(pathParts) == 0 {
		return false
	}

	matched, _ := filepath.Match(patternParts[0], pathParts[0])
	if !matched {
		return false
	}
	return matchParts(patternParts[1:], pathParts[1:])
}

func splitPath(path string) []string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	var result []string
	for _, p := range parts {
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
