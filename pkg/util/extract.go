package util

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/rs/zerolog/log"
)

// Extract writes content to pathname, rendering it as a text/template when
// data is not nil. An existing non-empty file is left alone unless overwrite
// is set. It reports whether the file was written.
func Extract(pathname string, content []byte, data any, overwrite bool) (bool, error) {
	stat, err := os.Stat(pathname)
	if err == nil && stat.Size() > 0 && !overwrite {
		log.Debug().Str("path", pathname).Msg("unchanged")
		return false, nil
	}

	err = os.MkdirAll(filepath.Dir(pathname), 0o755)
	if err != nil {
		return false, fmt.Errorf("unable to create directory for %s: %w", pathname, err)
	}

	file, err := os.OpenFile(pathname, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return false, fmt.Errorf("unable to open %s: %w", pathname, err)
	}
	defer file.Close()

	name := filepath.Base(pathname)
	if data == nil {
		_, err = file.Write(content)
		if err != nil {
			return false, fmt.Errorf("unable to write %s content: %w", name, err)
		}
	} else {
		tmpl, err := template.New(name).Parse(string(content))
		if err != nil {
			return false, fmt.Errorf("unable to parse %s template: %w", name, err)
		}

		err = tmpl.Execute(file, data)
		if err != nil {
			return false, fmt.Errorf("unable to execute %s template: %w", name, err)
		}
	}

	log.Debug().Str("path", pathname).Msg("updated")
	return true, nil
}
