package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/kbukum/ioc/errors"
	"github.com/kbukum/ioc/logger"
)

// FileSystem abstracts file access so resolution can be tested.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// RealFileSystem implements FileSystem using actual file operations.
type RealFileSystem struct{}

func (RealFileSystem) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (RealFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// LoaderConfig holds dependencies and optional file overrides.
type LoaderConfig struct {
	FileSystem FileSystem
	ConfigFile string // explicit config file; must exist when set
	EnvFile    string // explicit .env file; must exist when set
	EnvPrefix  string // prefix for environment variable names, e.g. "IOC"
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithFileSystem sets a custom filesystem for the loader.
func WithFileSystem(fs FileSystem) LoaderOption {
	return func(lc *LoaderConfig) { lc.FileSystem = fs }
}

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// WithEnvPrefix sets the environment variable prefix. With prefix "IOC" the
// key registry.allow_circular_references reads IOC_REGISTRY_ALLOW_CIRCULAR_REFERENCES.
func WithEnvPrefix(prefix string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvPrefix = strings.TrimSuffix(prefix, "_") }
}

// Load builds the Config of appName: Default values, then the config file,
// then an environment overlay file, then environment variables (.env
// included). The result has defaults applied and is validated.
func Load(appName string, opts ...LoaderOption) (*Config, error) {
	cfg := Default()
	cfg.Name = appName
	if err := LoadInto(appName, &cfg, opts...); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadInto loads configuration into cfg, which must be a pointer to a struct
// with mapstructure tags. Current field values of cfg act as defaults.
func LoadInto(appName string, cfg any, opts ...LoaderOption) error {
	lc := LoaderConfig{FileSystem: RealFileSystem{}}
	for _, opt := range opts {
		opt(&lc)
	}

	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return errors.InvalidInput("cfg", fmt.Sprintf("expected pointer to struct, got %T", cfg))
	}

	files, err := (&Resolver{FileSystem: lc.FileSystem}).ResolveFiles(appName, lc)
	if err != nil {
		return err
	}

	log := logger.WithComponent("config")

	// .env goes first so its variables take part in the env binding below.
	if files.EnvFile != "" {
		if err := lc.FileSystem.LoadEnv(files.EnvFile); err != nil {
			return errors.InvalidInput("env_file", err.Error()).WithCause(err)
		}
		log.Debug("env file loaded", logger.Fields("path", files.EnvFile))
	}

	v := viper.New()
	bindStruct(v, rv.Elem(), "", lc.EnvPrefix)

	if files.ConfigFile != "" {
		v.SetConfigFile(files.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return errors.InvalidInput("config_file", err.Error()).WithCause(err)
		}
		log.Debug("config file loaded", logger.Fields("path", files.ConfigFile))

		if overlay := overlayFile(files.ConfigFile, v.GetString("environment")); overlay != "" && lc.FileSystem.Exists(overlay) {
			v.SetConfigFile(overlay)
			if err := v.MergeInConfig(); err != nil {
				return errors.InvalidInput("config_file", err.Error()).WithCause(err)
			}
			log.Debug("config overlay merged", logger.Fields("path", overlay))
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return errors.InvalidInput("config", fmt.Sprintf("decoding config for %s: %v", appName, err)).WithCause(err)
	}
	return nil
}

// bindStruct registers every leaf key of the struct with its current value
// as default and binds it to its environment variable.
func bindStruct(v *viper.Viper, rv reflect.Value, prefix, envPrefix string) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(field.Name)
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		fv := rv.Field(i)
		if fv.Kind() == reflect.Struct && fv.Type() != reflect.TypeOf(time.Time{}) {
			bindStruct(v, fv, key, envPrefix)
			continue
		}
		v.SetDefault(key, fv.Interface())
		_ = v.BindEnv(key, EnvName(envPrefix, key))
	}
}

// EnvName returns the environment variable bound to a config key.
func EnvName(prefix, key string) string {
	name := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if prefix == "" {
		return name
	}
	return strings.ToUpper(prefix) + "_" + name
}

// overlayFile returns config.<env>.yml for config.yml.
func overlayFile(base, env string) string {
	if env == "" {
		return ""
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "." + env + ext
}

// Resolver finds config and env files.
type Resolver struct {
	FileSystem FileSystem
}

// ResolvedFiles contains the resolved config and env file paths.
type ResolvedFiles struct {
	ConfigFile string
	EnvFile    string
}

// ResolveFiles returns the explicit paths when set, failing if they do not
// exist, and searches the standard locations otherwise.
func (r *Resolver) ResolveFiles(appName string, lc LoaderConfig) (ResolvedFiles, error) {
	var resolved ResolvedFiles

	if lc.ConfigFile != "" {
		if !r.FileSystem.Exists(lc.ConfigFile) {
			return resolved, errors.NotFound("config file", lc.ConfigFile)
		}
		resolved.ConfigFile = lc.ConfigFile
	} else {
		resolved.ConfigFile = r.first(configCandidates(appName))
	}

	if lc.EnvFile != "" {
		if !r.FileSystem.Exists(lc.EnvFile) {
			return resolved, errors.NotFound("env file", lc.EnvFile)
		}
		resolved.EnvFile = lc.EnvFile
	} else {
		resolved.EnvFile = r.first(envCandidates(appName))
	}

	return resolved, nil
}

func (r *Resolver) first(paths []string) string {
	for _, p := range paths {
		if r.FileSystem.Exists(p) {
			return p
		}
	}
	return ""
}

func configCandidates(appName string) []string {
	var paths []string
	for _, dir := range []string{".", "./config", "./cmd/" + appName} {
		for _, name := range []string{appName + ".yml", appName + ".yaml", "config.yml", "config.yaml"} {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths
}

func envCandidates(appName string) []string {
	var paths []string
	for _, name := range []string{".env." + appName, ".env"} {
		for _, dir := range []string{".", "./config", "./cmd/" + appName} {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	return paths
}
