package schema

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const defaultIgnoreFileContent = `# Tables to exclude from natural language SQL processing.
# Each line is a glob pattern matched case-insensitively against table names.
#
# temp_*          exclude tables starting with temp_
# *_backup        exclude tables ending with _backup
# *_log*          exclude tables containing _log
#
# Lines starting with # are comments.
`

// IgnoreList filters tables out of digestion by glob pattern.
type IgnoreList struct {
	patterns []string
}

// LoadIgnoreFile parses the ignore file at path. A missing file yields an
// empty list.
func LoadIgnoreFile(path string) (IgnoreList, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return IgnoreList{}, nil
		}
		return IgnoreList{}, fmt.Errorf("open ignore file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		patterns = append(patterns, strings.ToLower(line))
	}
	if err := scanner.Err(); err != nil {
		return IgnoreList{}, fmt.Errorf("read ignore file: %w", err)
	}
	return IgnoreList{patterns: patterns}, nil
}

// WriteDefaultIgnoreFile creates the commented template at path. It
// returns true when a new file was written and false when one already
// exists.
func WriteDefaultIgnoreFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat ignore file: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultIgnoreFileContent), 0o644); err != nil {
		return false, fmt.Errorf("write ignore file: %w", err)
	}
	return true, nil
}

func (l IgnoreList) Match(table string) bool {
	name := strings.ToLower(table)
	for _, pattern := range l.patterns {
		if matched, _ := doublestar.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

func (l IgnoreList) Patterns() []string {
	return append([]string(nil), l.patterns...)
}
