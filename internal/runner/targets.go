package runner

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// API names which request API a target is issued through.
type API string

const (
	APIXHR       API = "xhr"
	APITransport API = "transport"
)

// File is a targets file: a named list of calls to make.
type File struct {
	Name    string   `yaml:"name"`
	Targets []Target `yaml:"targets"`
}

// Target is one call.
type Target struct {
	Name    string            `yaml:"name"`
	API     API               `yaml:"api"`
	Method  string            `yaml:"method"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Body    string            `yaml:"body,omitempty"`
}

// LoadFile reads and validates a targets file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading targets: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a targets file and fills defaults: api xhr, method GET, and
// the URL path as the name.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing targets: %w", err)
	}
	if len(f.Targets) == 0 {
		return nil, fmt.Errorf("no targets")
	}
	for i := range f.Targets {
		t := &f.Targets[i]
		if t.URL == "" {
			return nil, fmt.Errorf("target %d: url is required", i+1)
		}
		u, err := url.Parse(t.URL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("target %d: invalid url %q", i+1, t.URL)
		}
		switch t.API {
		case "":
			t.API = APIXHR
		case APIXHR, APITransport:
		default:
			return nil, fmt.Errorf("target %d: unknown api %q (want xhr or transport)", i+1, t.API)
		}
		t.Method = strings.ToUpper(t.Method)
		if t.Method == "" {
			t.Method = "GET"
		}
		if t.Name == "" {
			t.Name = u.Path
		}
	}
	return &f, nil
}
