package config

import (
	"errors"
	"testing"

	"github.com/arlobrandt/loomgraph/internal/llmclient"
	"github.com/arlobrandt/loomgraph/internal/llmclient/mock"
)

func TestRegistryCreateLLMUsesRegisteredFactory(t *testing.T) {
	reg := NewRegistry()
	client := &mock.Client{}
	var gotEntry ProviderEntry
	reg.RegisterLLM("stub", func(e ProviderEntry) (llmclient.Client, error) {
		gotEntry = e
		return client, nil
	})

	got, err := reg.CreateLLM(ProviderEntry{Name: "stub", Model: "m1"})
	if err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if got != client {
		t.Fatal("CreateLLM did not return the registered factory's client")
	}
	if gotEntry.Model != "m1" {
		t.Errorf("factory received Model = %q, want m1", gotEntry.Model)
	}
}

func TestRegistryCreateLLMUnregisteredReturnsError(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.CreateLLM(ProviderEntry{Name: "nonexistent"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistryCreateEmbeddingsUnregisteredReturnsError(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.CreateEmbeddings(ProviderEntry{Name: "nonexistent"})
	if !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("err = %v, want ErrProviderNotRegistered", err)
	}
}
