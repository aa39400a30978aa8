package zotero

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// UserPref looks key up in the profile's prefs.js. found is false
// when prefs.js does not set it.
func (p *Profile) UserPref(key string) (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(p.Dir, "prefs.js"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading prefs.js: %w", err)
	}
	v, ok := lookupPref(data, key)
	return v, ok, nil
}

// lookupPref finds the last pref("key", value) or
// user_pref("key", value) statement in a preferences script. String
// values are unquoted; other values are returned verbatim.
func lookupPref(script []byte, key string) (string, bool) {
	re := regexp.MustCompile(
		`(?m)^\s*(?:user_)?pref\(\s*"` + regexp.QuoteMeta(key) +
			`"\s*,\s*(.*?)\s*\)\s*;`,
	)
	matches := re.FindAllSubmatch(script, -1)
	if len(matches) == 0 {
		return "", false
	}
	return decodeValue(string(matches[len(matches)-1][1])), true
}

func decodeValue(raw string) string {
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return raw
	}
	if v, err := strconv.Unquote(raw); err == nil {
		return v
	}
	// Escapes Go does not share with JavaScript, such as \'.
	return strings.ReplaceAll(raw[1:len(raw)-1], `\\`, `\`)
}
