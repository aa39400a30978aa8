package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/airallergy/zotutil/internal/zotero"
)

// Config holds all application configuration.
type Config struct {
	ProfileDir     string `json:"profile_dir"`
	ZoteroDataDir  string `json:"zotero_data_dir,omitempty"`
	AttachmentRoot string `json:"attachment_root,omitempty"`
	FileTypes      string `json:"file_types,omitempty"`
	ItemsExport    string `json:"items_json,omitempty"`
	DataDir        string `json:"data_dir"`
	JournalPath    string `json:"-"`

	// Home is the user's home directory, used to derive
	// per-platform defaults.
	Home string `json:"-"`
}

// Default returns a Config with default values.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf(
			"determining home directory: %w", err,
		)
	}
	dataDir := filepath.Join(home, ".zotutil")
	return Config{
		ProfileDir:  zotero.DefaultProfileDir(runtime.GOOS, home),
		DataDir:     dataDir,
		JournalPath: filepath.Join(dataDir, "journal.db"),
		Home:        home,
	}, nil
}

// Load builds a Config by layering: defaults < config file < env < flags.
// The provided FlagSet must already be parsed by the caller.
// Only flags that were explicitly set override the lower layers.
func Load(fs *flag.FlagSet) (Config, error) {
	cfg, err := LoadMinimal()
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs)
	return cfg, nil
}

// LoadMinimal builds a Config from defaults, config file, and env,
// without looking at CLI flags.
func LoadMinimal() (Config, error) {
	cfg, err := Default()
	if err != nil {
		return cfg, err
	}
	// The data dir locates config.json, so only its env override
	// is applied before reading the file.
	if v := os.Getenv("ZOTUTIL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if err := cfg.loadFile(); err != nil {
		return cfg, fmt.Errorf("loading config file: %w", err)
	}
	cfg.loadEnv()
	cfg.JournalPath = filepath.Join(cfg.DataDir, "journal.db")
	return cfg, nil
}

func (c *Config) configPath() string {
	return filepath.Join(c.DataDir, "config.json")
}

func (c *Config) loadFile() error {
	data, err := os.ReadFile(c.configPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var file struct {
		ProfileDir     string `json:"profile_dir"`
		ZoteroDataDir  string `json:"zotero_data_dir"`
		AttachmentRoot string `json:"attachment_root"`
		FileTypes      string `json:"file_types"`
		ItemsExport    string `json:"items_json"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	if file.ProfileDir != "" {
		c.ProfileDir = file.ProfileDir
	}
	if file.ZoteroDataDir != "" {
		c.ZoteroDataDir = file.ZoteroDataDir
	}
	if file.AttachmentRoot != "" {
		c.AttachmentRoot = file.AttachmentRoot
	}
	if file.FileTypes != "" {
		c.FileTypes = file.FileTypes
	}
	if file.ItemsExport != "" {
		c.ItemsExport = file.ItemsExport
	}
	return nil
}

func (c *Config) loadEnv() {
	if v := os.Getenv("ZOTERO_PROFILE_DIR"); v != "" {
		c.ProfileDir = v
	}
	if v := os.Getenv("ZOTERO_DATA_DIR"); v != "" {
		c.ZoteroDataDir = v
	}
	if v := os.Getenv("ZOTUTIL_ATTACHMENT_ROOT"); v != "" {
		c.AttachmentRoot = v
	}
	if v := os.Getenv("ZOTUTIL_FILE_TYPES"); v != "" {
		c.FileTypes = v
	}
}

// RegisterFlags registers the flags shared by every command that
// touches an attachment root. The caller must call fs.Parse before
// passing fs to Load.
func RegisterFlags(fs *flag.FlagSet) {
	fs.String("root", "",
		"Attachment root (default: from Zotero preferences)")
	fs.String("file-types", "",
		"Comma-separated extensions to manage (default: from ZotFile)")
	fs.String("profile", "",
		"Zotero profile directory containing profiles.ini")
	fs.String("items-json", "",
		"Saved Web API items export to use instead of zotero.sqlite")
}

// applyFlags copies explicitly-set flags from fs into cfg.
func applyFlags(cfg *Config, fs *flag.FlagSet) {
	if fs == nil {
		return
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			cfg.AttachmentRoot = f.Value.String()
		case "file-types":
			cfg.FileTypes = f.Value.String()
		case "profile":
			cfg.ProfileDir = f.Value.String()
		case "items-json":
			cfg.ItemsExport = f.Value.String()
		}
	})
}

// LibraryPath returns the zotero.sqlite path when the Zotero data
// directory is known, or "" when it must come from preferences.
func (c *Config) LibraryPath() string {
	if c.ZoteroDataDir == "" {
		return ""
	}
	return filepath.Join(c.ZoteroDataDir, "zotero.sqlite")
}

// Save persists the configurable fields to config.json, keeping
// any keys it does not know about.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	existing := make(map[string]any)
	data, err := os.ReadFile(c.configPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf(
				"existing config is invalid, cannot update: %w",
				err,
			)
		}
	}

	set := func(key, value string) {
		if value == "" {
			delete(existing, key)
			return
		}
		existing[key] = value
	}
	set("profile_dir", c.ProfileDir)
	set("zotero_data_dir", c.ZoteroDataDir)
	set("attachment_root", c.AttachmentRoot)
	set("file_types", c.FileTypes)
	set("items_json", c.ItemsExport)

	out, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(c.configPath(), out, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
