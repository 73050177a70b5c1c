package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/dshills/vectorquery/internal/storage"
)

const (
	// EnvPrefix marks environment variables read as configuration.
	EnvPrefix = "VECTORQUERY_"
	// ProjectConfigFile is the per-project override, relative to the project root.
	ProjectConfigFile = ".vectorquery/config.yaml"
	// DotEnvFile is loaded from the project root when present.
	DotEnvFile = ".env"
)

// Options locates the configuration sources.
type Options struct {
	// ConfigFile replaces the global config file when set. It must exist.
	ConfigFile string
	// ProjectRoot enables the project config file and the project .env.
	ProjectRoot string
	// HomeDir overrides the user's home directory.
	HomeDir string
}

// sectionKeys are the nested sections; their env variables use one
// underscore as the delimiter, for example VECTORQUERY_EMBEDDING_API_KEY.
var sectionKeys = []string{"embedding", "log"}

// Load resolves the configuration. Later sources override earlier ones:
// defaults, the global file, the project file, then the environment.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	home := opts.HomeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
	}

	global := opts.ConfigFile
	required := global != ""
	if global == "" {
		global = filepath.Join(home, ".config", "vectorquery", "config.yaml")
	}
	if err := loadFile(k, global, required); err != nil {
		return nil, err
	}

	if opts.ProjectRoot != "" {
		if err := loadFile(k, filepath.Join(opts.ProjectRoot, ProjectConfigFile), false); err != nil {
			return nil, err
		}
		// Variables already set in the process take precedence over .env.
		if err := godotenv.Load(filepath.Join(opts.ProjectRoot, DotEnvFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", DotEnvFile, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DBBackend == storage.BackendChromem && !k.Exists("db_path") {
		cfg.DBPath = DefaultChromemDir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(k *koanf.Koanf, path string, required bool) error {
	content, err := os.ReadFile(path) // #nosec G304 -- user-selected config path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return nil
}

// envKey maps VECTORQUERY_EMBEDDING_API_KEY to embedding.api_key and
// VECTORQUERY_N_RESULT to n_result.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sectionKeys {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + rest
		}
	}
	return key
}
