package zotero

import (
	"fmt"
	"strings"
)

// Preference keys read by Resolver.
const (
	KeyZotfileDestDir     = "extensions.zotfile.dest_dir"
	KeyZotfileFileTypes   = "extensions.zotfile.filetypes"
	KeyBaseAttachmentPath = "extensions.zotero.baseAttachmentPath"
	KeyDataDir            = "extensions.zotero.dataDir"
)

// source is one step of a fallback chain.
type source struct {
	name   string
	lookup func() (string, bool, error)
}

// firstFound returns the value of the first source that defines
// one. Errors stop the chain; NotFound moves to the next source.
func firstFound(what string, chain ...source) (string, error) {
	var tried []string
	for _, src := range chain {
		v, ok, err := src.lookup()
		if err != nil {
			return "", fmt.Errorf("%s from %s: %w", what, src.name, err)
		}
		if ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
		tried = append(tried, src.name)
	}
	return "", fmt.Errorf(
		"%w: %s (tried %s)",
		ErrPreferenceNotFound, what, strings.Join(tried, ", "),
	)
}

// Resolver derives zotutil's inputs from a Zotero profile.
type Resolver struct {
	Profile *Profile
	Home    string
}

func (r *Resolver) userPref(key string) source {
	return source{
		name:   "prefs.js " + key,
		lookup: func() (string, bool, error) { return r.Profile.UserPref(key) },
	}
}

func (r *Resolver) pluginPref(plugin, key string) source {
	return source{
		name: plugin + " defaults " + key,
		lookup: func() (string, bool, error) {
			return r.Profile.PluginDefaultPref(plugin, key)
		},
	}
}

// AttachmentRoot returns the directory linked attachments live
// under: ZotFile's destination directory, else Zotero's base
// attachment path.
func (r *Resolver) AttachmentRoot() (string, error) {
	return firstFound("attachment root",
		r.userPref(KeyZotfileDestDir),
		r.userPref(KeyBaseAttachmentPath),
	)
}

// FileTypesCSV returns ZotFile's comma-separated list of managed
// file types, from the user's prefs or the plugin's defaults.
func (r *Resolver) FileTypesCSV() (string, error) {
	return firstFound("file types",
		r.userPref(KeyZotfileFileTypes),
		r.pluginPref("zotfile", KeyZotfileFileTypes),
	)
}

// DataDir returns the directory holding zotero.sqlite.
func (r *Resolver) DataDir() (string, error) {
	return firstFound("data directory",
		r.userPref(KeyDataDir),
		source{
			name: "default",
			lookup: func() (string, bool, error) {
				return DefaultDataDir(r.Home), r.Home != "", nil
			},
		},
	)
}
