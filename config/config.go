package config

import (
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"bptreeidx/types"
)

// Config holds the knobs cmd-level tools and tests resolve before handing
// plain values to the storage engine packages, which never read a config
// file themselves.
type Config struct {
	DataDir         string `yaml:"data_dir"`
	PageSize        int    `yaml:"page_size"`
	BufferPoolPages int    `yaml:"buffer_pool_pages"`
}

const (
	defaultBufferPoolPages = 128
)

// Load resolves a Config from configPath if it exists, falling back to
// defaults for anything the file omits or when the file is absent entirely.
// dataDirOverride, when non-empty, wins over both the file and the default.
func Load(configPath, dataDirOverride string) (*Config, error) {
	cfg := &Config{
		DataDir:         filepath.Join(os.TempDir(), "bptreeidx"),
		PageSize:        types.PageSize,
		BufferPoolPages: defaultBufferPoolPages,
	}

	if configPath != "" {
		f, err := os.Open(configPath)
		if err == nil {
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if dataDirOverride != "" {
		cfg.DataDir = dataDirOverride
	}

	if cfg.PageSize != types.PageSize {
		// The B+ tree's L/M fanout constants are computed at compile time
		// from types.PageSize; a config file requesting a different page
		// size would silently desync node capacity from disk layout.
		cfg.PageSize = types.PageSize
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	return cfg, nil
}
