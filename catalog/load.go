package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// file is the on-disk catalog layout:
//
//	permissions:
//	  - key: billing.manage
//	    module: billing
//	    label: Manage billing
//	    critical: true
type file struct {
	Permissions []Entry `yaml:"permissions"`
}

// Load decodes a YAML catalog from r.
func Load(r io.Reader) (*Catalog, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return New()
		}
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return New(f.Permissions...)
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	defer fh.Close()
	return Load(fh)
}
