package credential

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	"github.com/dhl-metadata/unlibmd/internal/model"
)

// EnvVar is the environment variable holding the API key, both in the
// process environment and inside .env files.
const EnvVar = "UNDL_API_KEY"

// keysFileEntry is the JSON key inside keys.json.
const keysFileEntry = "undl_api_key"

// Source identifies where a key was found, for verbose diagnostics.
type Source string

const (
	// SourceFlag means the key came from the --api-key flag.
	SourceFlag Source = "flag"

	// SourceEnv means the key came from the process environment.
	SourceEnv Source = "environment"

	// SourceEnvFile means the key came from a .env file.
	SourceEnvFile Source = ".env file"

	// SourceKeysFile means the key came from keys.json.
	SourceKeysFile Source = "keys.json"
)

// Key is a resolved API key together with its provenance.
type Key struct {
	// Value is the API key itself. Never log this.
	Value string

	// Source says which resolution step produced the key.
	Source Source
}

// Options control the resolution chain. The zero value resolves from
// the environment, ./.env, and the default keys.json location.
type Options struct {
	// Explicit is a key supplied directly (the --api-key flag).
	// When non-empty it wins unconditionally.
	Explicit string

	// EnvFile is the .env file path. Empty means ".env" in the working
	// directory.
	EnvFile string

	// KeysFile is the keys.json path. Empty means
	// <user config dir>/unlibmd/keys.json.
	KeysFile string
}

// Resolve walks the credential chain and returns the first key found.
// Returns a model.CLIError with ExitNoCredentials when every source
// comes up empty.
func Resolve(opts Options) (*Key, error) {
	if opts.Explicit != "" {
		return &Key{Value: opts.Explicit, Source: SourceFlag}, nil
	}

	if value := os.Getenv(EnvVar); value != "" {
		return &Key{Value: value, Source: SourceEnv}, nil
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	value, err := fromEnvFile(envFile)
	if err != nil {
		return nil, err
	}
	if value != "" {
		return &Key{Value: value, Source: SourceEnvFile}, nil
	}

	keysFile := opts.KeysFile
	if keysFile == "" {
		keysFile = defaultKeysPath()
	}
	if keysFile != "" {
		value, err = fromKeysFile(keysFile)
		if err != nil {
			return nil, err
		}
		if value != "" {
			return &Key{Value: value, Source: SourceKeysFile}, nil
		}
	}

	return nil, model.NewCLIError(model.ExitNoCredentials, fmt.Sprintf(
		"no UNDL API key found: pass --api-key, set %s, write it to .env, or add %q to %s",
		EnvVar, keysFileEntry, keysFileDescription(opts.KeysFile)))
}

// fromEnvFile reads KEY=value lines from a .env file and returns the
// UNDL_API_KEY entry. A missing file is not an error, the chain simply
// moves on, but an unreadable one is.
func fromEnvFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", model.WrapCLIError(model.ExitNoCredentials,
			fmt.Sprintf("reading %s", path), err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, found := strings.Cut(line, "=")
		if !found || strings.TrimSpace(name) != EnvVar {
			continue
		}
		return unquote(strings.TrimSpace(value)), nil
	}
	if err := scanner.Err(); err != nil {
		return "", model.WrapCLIError(model.ExitNoCredentials,
			fmt.Sprintf("reading %s", path), err)
	}
	return "", nil
}

// fromKeysFile reads the undl_api_key entry from a keys.json file.
// JSONC comments are stripped before parsing, so annotated credential
// files load fine. A missing file is skipped; a malformed one is an
// error, since silently ignoring it would hide a typo from the user.
func fromKeysFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", model.WrapCLIError(model.ExitNoCredentials,
			fmt.Sprintf("reading %s", path), err)
	}

	var entries map[string]string
	if err := json.Unmarshal(jsonc.ToJSON(data), &entries); err != nil {
		return "", model.WrapCLIError(model.ExitNoCredentials,
			fmt.Sprintf("parsing %s", path), err)
	}
	return strings.TrimSpace(entries[keysFileEntry]), nil
}

// defaultKeysPath returns <user config dir>/unlibmd/keys.json, or the
// empty string when no config directory can be determined.
func defaultKeysPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, "unlibmd", "keys.json")
}

// keysFileDescription names the keys.json location for error messages.
func keysFileDescription(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if path := defaultKeysPath(); path != "" {
		return path
	}
	return "keys.json"
}

// unquote strips one level of matching single or double quotes, the way
// shells and dotenv loaders treat quoted values.
func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if first == last && (first == '"' || first == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
