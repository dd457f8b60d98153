package config

import (
	"path/filepath"

	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

// Load loads the configuration from the directory.
func Load(path string) (*Configuration, error) {
	// If given the path to a config.yaml file, move back up a level.
	if filepath.Base(path) == ConfigurationName {
		path = filepath.Dir(path)
	}

	return loadFs(afero.NewBasePathFs(afero.NewOsFs(), path))
}

func loadFs(fsys afero.Fs) (*Configuration, error) {
	configContents, err := afero.ReadFile(fsys, ConfigurationName)
	if err != nil {
		return nil, err
	}
	var out Configuration
	if err := yaml.UnmarshalStrict(configContents, &out); err != nil {
		return nil, err
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	out.configFs = fsys
	return &out, nil
}

// Default returns the built in configuration backed by an in-memory
// directory with a freshly generated host key. Nothing it writes survives
// the process.
func Default() *Configuration {
	fsys := afero.NewMemMapFs()
	if err := initializeFs(fsys, nil); err != nil {
		panic(err)
	}

	cfg, err := loadFs(fsys)
	if err != nil {
		panic(err)
	}
	return cfg
}
