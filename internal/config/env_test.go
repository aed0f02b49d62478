package config

import (
	"testing"
)

func TestExpandEnvBraced(t *testing.T) {
	t.Setenv("LOOMGRAPH_TEST_KEY", "secret-value")
	got := expandEnv("${LOOMGRAPH_TEST_KEY}")
	if got != "secret-value" {
		t.Errorf("expandEnv = %q, want secret-value", got)
	}
}

func TestExpandEnvWithDefaultFallsBackWhenUnset(t *testing.T) {
	got := expandEnv("${LOOMGRAPH_TEST_UNSET_KEY:-fallback}")
	if got != "fallback" {
		t.Errorf("expandEnv = %q, want fallback", got)
	}
}

func TestExpandEnvWithDefaultPrefersSetValue(t *testing.T) {
	t.Setenv("LOOMGRAPH_TEST_KEY", "set-value")
	got := expandEnv("${LOOMGRAPH_TEST_KEY:-fallback}")
	if got != "set-value" {
		t.Errorf("expandEnv = %q, want set-value", got)
	}
}

func TestExpandEnvLeavesPlainStringsUntouched(t *testing.T) {
	got := expandEnv("plain-string")
	if got != "plain-string" {
		t.Errorf("expandEnv = %q, want plain-string", got)
	}
}

func TestExpandProviderEntryExpandsAPIKeyAndBaseURL(t *testing.T) {
	t.Setenv("LOOMGRAPH_TEST_KEY", "sk-resolved")
	entry := ProviderEntry{Name: "openai", APIKey: "${LOOMGRAPH_TEST_KEY}", BaseURL: "https://api.example.com"}
	got := expandProviderEntry(entry)
	if got.APIKey != "sk-resolved" {
		t.Errorf("APIKey = %q, want sk-resolved", got.APIKey)
	}
	if got.BaseURL != "https://api.example.com" {
		t.Errorf("BaseURL = %q, want unchanged", got.BaseURL)
	}
}
