package backend

import (
	"fmt"
	"os"
	"strings"
)

// RewriteBase replaces the image reference of every FROM instruction with
// base. Build flags (--platform=...) and a trailing "AS <stage>" clause are
// kept, as are line endings. All other lines are returned untouched.
func RewriteBase(definition, base string) string {
	lines := strings.SplitAfter(definition, "\n")
	for i, line := range lines {
		body := strings.TrimRight(line, "\r\n")
		ending := line[len(body):]

		fields := strings.Fields(body)
		if len(fields) < 2 || !strings.EqualFold(fields[0], "FROM") {
			continue
		}

		parts := []string{"FROM"}
		rest := fields[1:]
		for len(rest) > 0 && strings.HasPrefix(rest[0], "--") {
			parts = append(parts, rest[0])
			rest = rest[1:]
		}
		parts = append(parts, base)
		if len(rest) >= 3 && strings.EqualFold(rest[1], "AS") {
			parts = append(parts, rest[1], rest[2])
		}

		lines[i] = strings.Join(parts, " ") + ending
	}
	return strings.Join(lines, "")
}

// writeOverride writes a copy of the definition at path with its base image
// replaced, into dir (os.TempDir when empty). The returned function removes
// the copy.
func writeOverride(dir, path, base string) (string, func(), error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", func() {}, fmt.Errorf("read build definition: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "buildparity-*.Dockerfile")
	if err != nil {
		return "", func() {}, fmt.Errorf("create override definition: %w", err)
	}
	remove := func() { os.Remove(tmp.Name()) }

	if _, err := tmp.WriteString(RewriteBase(string(content), base)); err != nil {
		tmp.Close()
		remove()
		return "", func() {}, fmt.Errorf("write override definition: %w", err)
	}
	if err := tmp.Close(); err != nil {
		remove()
		return "", func() {}, fmt.Errorf("close override definition: %w", err)
	}

	return tmp.Name(), remove, nil
}
