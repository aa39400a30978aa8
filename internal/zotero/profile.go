// Package zotero locates a Zotero profile and reads the preferences
// zotutil needs from it.
package zotero

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrPreferenceNotFound is returned when no source in a fallback
// chain defines a preference.
var ErrPreferenceNotFound = errors.New("preference not found")

// DefaultProfileDir returns the directory holding profiles.ini for
// the given GOOS. It returns "" for unsupported platforms.
func DefaultProfileDir(goos, home string) string {
	switch goos {
	case "darwin":
		return filepath.Join(
			home, "Library", "Application Support", "Zotero",
		)
	case "windows":
		return filepath.Join(
			home, "AppData", "Roaming", "Zotero", "Zotero",
		)
	case "linux", "freebsd", "openbsd":
		return filepath.Join(home, ".zotero", "zotero")
	}
	return ""
}

// DefaultDataDir returns Zotero's default data directory.
func DefaultDataDir(home string) string {
	return filepath.Join(home, "Zotero")
}

// Profile is one Zotero profile directory.
type Profile struct {
	// Dir is the profile directory holding prefs.js.
	Dir string

	// LastVersion is the Zotero version that last ran the profile,
	// from compatibility.ini, or "" when unknown.
	LastVersion string
}

// OpenProfile reads profiles.ini under root and returns the default
// profile, or Profile0 when none is marked default.
func OpenProfile(root string) (*Profile, error) {
	iniPath := filepath.Join(root, "profiles.ini")
	sections, err := readINI(iniPath)
	if err != nil {
		return nil, fmt.Errorf("reading profiles.ini: %w", err)
	}

	section, ok := pickProfile(sections)
	if !ok {
		return nil, fmt.Errorf("no profile in %s", iniPath)
	}
	dir := filepath.FromSlash(section["Path"])
	if section["IsRelative"] != "0" {
		dir = filepath.Join(root, dir)
	}

	p := &Profile{Dir: dir}
	compat, err := readINI(filepath.Join(dir, "compatibility.ini"))
	if err == nil {
		p.LastVersion = compat["Compatibility"]["LastVersion"]
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading compatibility.ini: %w", err)
	}
	return p, nil
}

func pickProfile(
	sections map[string]map[string]string,
) (map[string]string, bool) {
	var fallback map[string]string
	for name, kv := range sections {
		if !strings.HasPrefix(name, "Profile") || kv["Path"] == "" {
			continue
		}
		if kv["Default"] == "1" {
			return kv, true
		}
		if name == "Profile0" {
			fallback = kv
		}
	}
	return fallback, fallback != nil
}

// readINI parses the flat key=value sections of a Mozilla-style
// ini file.
func readINI(path string) (map[string]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sections := map[string]map[string]string{}
	var current map[string]string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "", line[0] == ';', line[0] == '#':
			continue
		case line[0] == '[' && strings.HasSuffix(line, "]"):
			name := strings.TrimSpace(line[1 : len(line)-1])
			current = map[string]string{}
			sections[name] = current
		case current != nil:
			k, v, ok := strings.Cut(line, "=")
			if ok {
				current[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
		}
	}
	return sections, scanner.Err()
}
