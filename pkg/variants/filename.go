package variants

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
const tokenLength = 6

var unsafeNameRE = regexp.MustCompile(`[^a-zA-Z0-9]`)

// replaceable in tests
var now = time.Now
var randIntn = rand.Intn

// Filename builds a storage name for a variant of originalName:
//
//	<sanitized base>_<kind>_<epoch millis>_<token>.<original extension>
//
// Every character of the base name outside [A-Za-z0-9] becomes "_". The
// timestamp and random token keep concurrent uploads of the same file from
// colliding; they are not a uniqueness guarantee.
func Filename(originalName string, kind Kind) string {
	base, ext := splitName(originalName)
	return build(base, kind, ext)
}

// FilenameAs is Filename with the original extension replaced by ext, the one
// the variant was actually encoded as.
func FilenameAs(originalName string, kind Kind, ext string) string {
	base, _ := splitName(originalName)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return build(base, kind, ext)
}

//--------------------------------------------------------------------------------
// private

func splitName(originalName string) (string, string) {
	name := filepath.Base(strings.TrimSpace(originalName))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}

	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

func build(base string, kind Kind, ext string) string {
	base = unsafeNameRE.ReplaceAllString(base, "_")

	out := fmt.Sprintf("%s_%s_%d_%s", base, kind, now().UnixMilli(), token())
	if len(ext) > 1 {
		out += ext
	}
	return out
}

func token() string {
	b := make([]byte, tokenLength)
	for i := range b {
		b[i] = tokenAlphabet[randIntn(len(tokenAlphabet))]
	}
	return string(b)
}
