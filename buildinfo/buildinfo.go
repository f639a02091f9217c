// Package buildinfo carries the application identity from app.yml and the
// build stamp the Makefile writes to build.yml. Both are embedded.
package buildinfo

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Stamp identifies one build.
type Stamp struct {
	Version    string    `yaml:"version"`
	CommitHash string    `yaml:"commit_hash"`
	BuildTime  time.Time `yaml:"build_time"`
}

func (s Stamp) String() string {
	return fmt.Sprintf("%s (%s at %s)", s.Version, s.CommitHash, s.BuildTime.UTC().Format(time.RFC3339))
}

// Info describes the application.
type Info struct {
	Stamp `yaml:"-"`

	Name            string `yaml:"name"`
	URL             string `yaml:"url"`
	Description     string `yaml:"description"`
	FullDescription string `yaml:"full_description"`
}

// App is parsed from the embedded files at start-up.
var App Info

// All is the one-line version string reported by --version.
var All string

//go:generate make -C .. buildinfo

//go:embed app.yml
var appYAML []byte

//go:embed build.yml
var buildYAML []byte

func init() {
	var err error
	App, err = Parse(appYAML, buildYAML)
	if err != nil {
		panic(err)
	}
	All = App.Stamp.String()
}

// Parse reads the application and build documents.
func Parse(app, build []byte) (Info, error) {
	var info Info

	err := yaml.Unmarshal(app, &info)
	if err != nil {
		return info, errors.Wrap(err, "unable to parse app info")
	}
	if info.Name == "" {
		return info, errors.New("app info has no name")
	}

	err = yaml.Unmarshal(build, &info.Stamp)
	if err != nil {
		return info, errors.Wrap(err, "unable to parse build info")
	}
	if info.Version == "" {
		info.Version = "dev"
	}

	return info, nil
}
