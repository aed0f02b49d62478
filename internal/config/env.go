package config

import (
	"os"
	"regexp"

	"github.com/joho/godotenv"
)

var (
	envWithDefault = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`)
	envBraced      = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
)

// LoadEnvFile loads .env into the process environment if it exists, for
// the ${VAR}-style placeholders used in YAML config files (e.g.
// providers.llm.api_key) to resolve against. A missing .env file is not
// an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// expandEnv substitutes ${VAR} and ${VAR:-default} references in s against
// the process environment. An unset or empty ${VAR} expands to the empty
// string; ${VAR:-default} expands to default in that case.
func expandEnv(s string) string {
	s = envWithDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envWithDefault.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})
	return envBraced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envBraced.FindStringSubmatch(match)
		return os.Getenv(parts[1])
	})
}

// expandProviderEntry resolves ${VAR} placeholders in the fields of e that
// commonly carry secrets pulled from the environment.
func expandProviderEntry(e ProviderEntry) ProviderEntry {
	e.APIKey = expandEnv(e.APIKey)
	e.BaseURL = expandEnv(e.BaseURL)
	return e
}
