package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Identity is one user's record: where their calendar lives and the token
// used to update their presence.
type Identity struct {
	// Identity is a label for logs and reports. Defaults to the file stem.
	Identity    string `yaml:"identity"`
	CalendarURL string `yaml:"calendar_url"`
	Token       string `yaml:"token"`
}

func (i Identity) validate() error {
	if i.CalendarURL == "" {
		return errors.New("calendar_url is required")
	}
	if i.Token == "" {
		return errors.New("token is required")
	}
	return nil
}

// LoadIdentities reads every *.yaml / *.yml file in dir, in file-name
// order. Any invalid record fails the whole load, naming the file.
func LoadIdentities(dir string) ([]Identity, error) {
	if dir == "" {
		return nil, errors.New("identities dir is empty")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read identities dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]Identity, 0, len(names))
	for _, name := range names {
		id, err := LoadIdentity(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// LoadIdentity reads a single record.
func LoadIdentity(path string) (Identity, error) {
	var id Identity
	data, err := os.ReadFile(path)
	if err != nil {
		return id, fmt.Errorf("%s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &id); err != nil {
		return id, fmt.Errorf("%s: %w", path, err)
	}
	if id.Identity == "" {
		id.Identity = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := id.validate(); err != nil {
		return id, fmt.Errorf("%s: %w", path, err)
	}
	return id, nil
}

// FindIdentity returns the record whose Identity equals name.
func FindIdentity(ids []Identity, name string) (Identity, bool) {
	for _, id := range ids {
		if id.Identity == name {
			return id, true
		}
	}
	return Identity{}, false
}

// SaveIdentity writes a record atomically via a temp file + rename in the
// same directory. The file ends up 0600 since it holds a token.
func SaveIdentity(path string, id Identity) error {
	if path == "" {
		return errors.New("identity path is empty")
	}
	if err := id.validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(&id)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".calstatus-identity-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
