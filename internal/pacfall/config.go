package pacfall

import (
	"bufio"
	"os"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string

	// Derived values, resolved by initConfig
	TmpDir      string
	AURURL      string
	SnapshotURL string
	ContribRepo string
	SyncDBDir   string
	Keyservers  []string
	HelperName  string
}

// defaultKeyservers is the ordered fallback list used by the key resolver.
// The first entry is the default server, the rest are tried in order.
var defaultKeyservers = []string{
	"hkps://keyserver.ubuntu.com",
	"hkps://keys.openpgp.org",
	"hkps://pgp.mit.edu",
}

// Load /etc/pacfall.conf and apply defaults
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	// Attempt to read the file; a missing config file is not an error,
	// everything has a usable default.
	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	mergeEnvOverrides(cfg)
	return cfg, nil
}

// Merge PACFALL_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "PACFALL_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}

	// Import TMPDIR from the environment without overwriting an explicit config value
	if tmp := os.Getenv("TMPDIR"); tmp != "" {
		if _, exists := cfg.Values["TMPDIR"]; !exists {
			cfg.Values["TMPDIR"] = tmp
		}
	}
}

func initConfig(cfg *Config) {
	cfg.TmpDir = cfg.Values["TMPDIR"]
	if cfg.TmpDir == "" {
		cfg.TmpDir = "/tmp"
	}

	cfg.AURURL = cfg.Values["PACFALL_AUR_URL"]
	if cfg.AURURL == "" {
		cfg.AURURL = "https://aur.archlinux.org"
	}
	cfg.AURURL = strings.TrimRight(cfg.AURURL, "/")

	// AUR snapshot tarballs live under cgit; used when git clone fails
	cfg.SnapshotURL = cfg.AURURL + "/cgit/aur.git/snapshot"

	cfg.ContribRepo = cfg.Values["PACFALL_CONTRIB_REPO"]
	if cfg.ContribRepo == "" {
		cfg.ContribRepo = "https://github.com/pacfall/recipes.git"
	}

	cfg.SyncDBDir = cfg.Values["PACFALL_SYNC_DB"]
	if cfg.SyncDBDir == "" {
		cfg.SyncDBDir = "/var/lib/pacman/sync"
	}

	if servers := cfg.Values["PACFALL_KEYSERVERS"]; servers != "" {
		for _, s := range strings.Split(servers, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Keyservers = append(cfg.Keyservers, s)
			}
		}
	}
	if len(cfg.Keyservers) == 0 {
		cfg.Keyservers = append(cfg.Keyservers, defaultKeyservers...)
	}

	// Optional: force a specific community helper instead of probing
	cfg.HelperName = cfg.Values["PACFALL_HELPER"]

	Debug = cfg.Values["PACFALL_DEBUG"] == "1"
	Verbose = cfg.Values["PACFALL_VERBOSE"] == "1"
}
