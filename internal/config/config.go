package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// DefaultPath is read when no explicit configuration file is given. It may
// be absent.
const DefaultPath = "res/configuration.toml"

type Config struct {
	Server ServerConfig `toml:"Server"`
	Models ModelsConfig `toml:"Models"`
	ONNX   ONNXConfig   `toml:"ONNX"`
	Log    LogConfig    `toml:"Log"`
}

type ServerConfig struct {
	Port              int   `toml:"Port" validate:"gte=1,lte=65535"`
	MaxUploadBytes    int64 `toml:"MaxUploadBytes" validate:"gt=0"`
	SessionTTLSeconds int   `toml:"SessionTTLSeconds" validate:"gt=0"`
}

type ModelsConfig struct {
	Root            string `toml:"Root" validate:"required"`
	CacheTTLSeconds int    `toml:"CacheTTLSeconds" validate:"gt=0"`
}

type ONNXConfig struct {
	LibraryPath string `toml:"LibraryPath"`
	InputName   string `toml:"InputName" validate:"required"`
	OutputName  string `toml:"OutputName" validate:"required"`
}

type LogConfig struct {
	Level string `toml:"Level" validate:"oneof=debug info warn warning error"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:              8080,
			MaxUploadBytes:    10 << 20,
			SessionTTLSeconds: 3600,
		},
		Models: ModelsConfig{
			Root:            "models",
			CacheTTLSeconds: 600,
		},
		ONNX: ONNXConfig{
			InputName:  "float_input",
			OutputName: "output_label",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing DefaultPath is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
		}
		if err := applyTree(&cfg, tree); err != nil {
			return Config{}, errors.Wrapf(err, "invalid config %s", path)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks c against its field constraints. Callers that override
// values after Load run it again.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// applyTree copies only the keys present in the file, so anything left out
// keeps its default.
func applyTree(cfg *Config, tree *toml.Tree) error {
	ints := map[string]*int{
		"Server.Port":              &cfg.Server.Port,
		"Server.SessionTTLSeconds": &cfg.Server.SessionTTLSeconds,
		"Models.CacheTTLSeconds":   &cfg.Models.CacheTTLSeconds,
	}
	for key, dst := range ints {
		if !tree.Has(key) {
			continue
		}
		v, err := cast.ToIntE(tree.Get(key))
		if err != nil {
			return errors.Wrapf(err, "key %s", key)
		}
		*dst = v
	}

	if tree.Has("Server.MaxUploadBytes") {
		v, err := cast.ToInt64E(tree.Get("Server.MaxUploadBytes"))
		if err != nil {
			return errors.Wrap(err, "key Server.MaxUploadBytes")
		}
		cfg.Server.MaxUploadBytes = v
	}

	strs := map[string]*string{
		"Models.Root":      &cfg.Models.Root,
		"ONNX.LibraryPath": &cfg.ONNX.LibraryPath,
		"ONNX.InputName":   &cfg.ONNX.InputName,
		"ONNX.OutputName":  &cfg.ONNX.OutputName,
		"Log.Level":        &cfg.Log.Level,
	}
	for key, dst := range strs {
		if !tree.Has(key) {
			continue
		}
		v, err := cast.ToStringE(tree.Get(key))
		if err != nil {
			return errors.Wrapf(err, "key %s", key)
		}
		*dst = v
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("XRAY_MODEL_ROOT"); ok {
		cfg.Models.Root = v
	}
	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		port, err := cast.ToIntE(v)
		if err != nil {
			return errors.Wrapf(err, "invalid PORT %q", v)
		}
		cfg.Server.Port = port
	}
	if v, ok := os.LookupEnv("XRAY_LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := os.LookupEnv("XRAY_ONNX_LIBRARY"); ok {
		cfg.ONNX.LibraryPath = v
	}
	return nil
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.Server.SessionTTLSeconds) * time.Second
}

func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Models.CacheTTLSeconds) * time.Second
}
