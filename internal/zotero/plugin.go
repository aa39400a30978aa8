package zotero

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/mod/semver"
)

// Locations of default preferences inside a plugin package.
const (
	legacyDefaultsPath = "defaults/preferences/defaults.js"
	modernDefaultsPath = "prefs.js"
)

// PluginDefaultPref looks key up in the default preferences shipped
// inside the plugin's .xpi package, found under the profile's
// extensions directory by name prefix. found is false when the
// plugin is not installed or does not define key.
func (p *Profile) PluginDefaultPref(
	plugin, key string,
) (string, bool, error) {
	xpi, err := p.findPlugin(plugin)
	if err != nil || xpi == "" {
		return "", false, err
	}

	r, err := zip.OpenReader(xpi)
	if err != nil {
		return "", false, fmt.Errorf("opening %s: %w", xpi, err)
	}
	defer r.Close()

	for _, name := range p.defaultsOrder(&r.Reader) {
		script, err := readZipFile(&r.Reader, name)
		if errors.Is(err, errNoEntry) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf(
				"reading %s from %s: %w", name, xpi, err,
			)
		}
		if v, ok := lookupPref(script, key); ok {
			return v, true, nil
		}
	}
	return "", false, nil
}

// findPlugin returns the first extensions/<plugin>*.xpi in name
// order, or "" when there is none.
func (p *Profile) findPlugin(plugin string) (string, error) {
	pattern := filepath.Join(
		p.Dir, "extensions", strings.ToLower(plugin)+"*.xpi",
	)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("finding plugin %s: %w", plugin, err)
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[0], nil
}

// defaultsOrder decides where to look first for default prefs.
// Zotero 7 plugins keep them in prefs.js at the package root; older
// plugins use the Firefox defaults directory. The plugin manifest's
// minimum Zotero version decides, falling back to the version that
// last ran the profile.
func (p *Profile) defaultsOrder(r *zip.Reader) []string {
	legacy := []string{legacyDefaultsPath, modernDefaultsPath}
	modern := []string{modernDefaultsPath, legacyDefaultsPath}

	version := ""
	if manifest, err := readZipFile(r, "manifest.json"); err == nil &&
		gjson.ValidBytes(manifest) {
		version = gjson.GetBytes(
			manifest, "applications.zotero.strict_min_version",
		).String()
	}
	if version == "" {
		version = p.LastVersion
	}
	// Zotero 7 plugins declare 6.999 as their minimum.
	if atLeast(version, "v6.999.0") {
		return modern
	}
	return legacy
}

// atLeast compares a Zotero version string such as "7.0.11_20241111"
// or "6.999" against floor.
func atLeast(version, floor string) bool {
	v := canonicalVersion(version)
	if v == "" {
		return false
	}
	return semver.Compare(v, floor) >= 0
}

func canonicalVersion(version string) string {
	version = strings.TrimPrefix(version, "v")
	if i := strings.IndexAny(version, "_ "); i >= 0 {
		version = version[:i]
	}
	v := "v" + strings.TrimSuffix(version, ".*")
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

var errNoEntry = errors.New("no such entry")

func readZipFile(r *zip.Reader, name string) ([]byte, error) {
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, errNoEntry
}
