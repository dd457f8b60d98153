package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path"
	"reflect"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
	RecordingsDirName = "recordings"
	PrivateKeyName    = "private_key"
	AppLogName        = "app.log"
)

type Configuration struct {
	configFs afero.Fs

	Kernel Kernel `json:"kernel"`
	Shell  Shell  `json:"shell"`
	Init   Init   `json:"init"`
	Log    Log    `json:"log"`
	SSH    SSH    `json:"ssh"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	if err := validate.Struct(c); err != nil {
		return err
	}

	argv, err := c.Init.Argv()
	if err != nil {
		return fmt.Errorf("init.command: %w", err)
	}
	if len(argv) == 0 {
		return errors.New("init.command: no program given")
	}
	return nil
}

type Kernel struct {
	MaxProcs int    `json:"max_procs" validate:"gte=2,lte=4096"`
	InitPath string `json:"init_path" validate:"required"`
}

type Shell struct {
	Prompt  string `json:"prompt"`
	LineMax int    `json:"line_max" validate:"gte=2,lte=4096"`
	// One more than the number of arguments a line splits into, the exec
	// boundary takes at most 16.
	MaxArgs int `json:"max_args" validate:"gte=2,lte=17"`
}

type Init struct {
	Command      string  `json:"command" validate:"required"`
	RespawnRate  float64 `json:"respawn_rate" validate:"gte=0"`
	RespawnBurst int64   `json:"respawn_burst" validate:"gte=1"`
}

// Argv splits the init command into an argument vector.
func (i *Init) Argv() ([]string, error) {
	return shlex.Split(i.Command, true)
}

type Log struct {
	Level  string `json:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" validate:"oneof=json console"`
}

type SSH struct {
	Port   int    `json:"port" validate:"gte=0,lte=65535"`
	Banner string `json:"banner"`
	Motd   string `json:"motd"`
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// CreateRecording creates a session recording with the given name.
func (c *Configuration) CreateRecording(name string) (afero.File, error) {
	if err := c.fs().MkdirAll(RecordingsDirName, 0700); err != nil {
		return nil, err
	}
	return c.fs().Create(path.Join(RecordingsDirName, path.Base(name)))
}

// PrivateKeyPem returns the bytes of the SSH host key.
func (c *Configuration) PrivateKeyPem() ([]byte, error) {
	return afero.ReadFile(c.fs(), PrivateKeyName)
}

// OpenAppLog opens the application log in an append only state.
func (c *Configuration) OpenAppLog() (afero.File, error) {
	return c.fs().OpenFile(AppLogName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

func (c *Configuration) ReadAppLog() (afero.File, error) {
	return c.fs().OpenFile(AppLogName, os.O_RDONLY, 0600)
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
