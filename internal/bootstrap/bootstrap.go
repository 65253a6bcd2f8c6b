// Package bootstrap builds the set of providers a gwctl/ferrogw process
// registers from environment variables, so the HTTP server (cmd/ferrogw)
// and the CLI's serve/route commands (cmd/gwctl) construct the exact same
// provider set from the exact same environment without duplicating the
// auto-registration table.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/llmgw/core/providers"
)

type providerEntry struct {
	envKey string
	name   string
	create func(key, baseURL string) (providers.Provider, error)
}

var envProviders = []providerEntry{
	{"OPENAI_API_KEY", "openai", func(k, b string) (providers.Provider, error) { return providers.NewOpenAI(k, b) }},
	{"ANTHROPIC_API_KEY", "anthropic", func(k, b string) (providers.Provider, error) { return providers.NewAnthropic(k, b) }},
	{"COHERE_API_KEY", "cohere", func(k, b string) (providers.Provider, error) { return providers.NewCohere(k, b) }},
	{"HUGGINGFACE_API_KEY", "huggingface", func(k, b string) (providers.Provider, error) { return providers.NewHuggingFace(k, b) }},
}

// AutoRegisterProviders registers every provider whose API key environment
// variable is set, plus Azure OpenAI (static key or OAuth2 client
// credentials) when its variables are present. Returns the names registered,
// in registration order.
func AutoRegisterProviders(registry *providers.Registry, log *slog.Logger) ([]string, error) {
	var names []string

	for _, pe := range envProviders {
		key := os.Getenv(pe.envKey)
		if key == "" {
			continue
		}
		p, err := pe.create(key, "")
		if err != nil {
			return names, fmt.Errorf("%s provider: %w", pe.name, err)
		}
		registry.Register(p)
		names = append(names, pe.name)
		log.Info("provider registered", "name", pe.name)
	}

	if err := registerAzure(registry, log, &names); err != nil {
		return names, err
	}

	return names, nil
}

// registerAzure wires Azure OpenAI using either a static resource key or an
// Azure AD app registration (client-credentials), mirroring the env-var
// switch the gateway's HTTP entrypoint used before this package existed.
func registerAzure(registry *providers.Registry, log *slog.Logger, names *[]string) error {
	baseURL := os.Getenv("AZURE_OPENAI_ENDPOINT")
	deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT")
	apiVersion := os.Getenv("AZURE_OPENAI_API_VERSION")

	switch {
	case baseURL == "" || deployment == "":
		if os.Getenv("AZURE_OPENAI_API_KEY") != "" || os.Getenv("AZURE_OPENAI_TENANT_ID") != "" {
			log.Warn("Azure OpenAI credentials set but AZURE_OPENAI_ENDPOINT and AZURE_OPENAI_DEPLOYMENT are required")
		}
		return nil
	case os.Getenv("AZURE_OPENAI_TENANT_ID") != "":
		scope := os.Getenv("AZURE_OPENAI_SCOPE")
		if scope == "" {
			scope = "https://cognitiveservices.azure.com/.default"
		}
		p, err := providers.NewAzureOpenAIWithOAuth2(
			os.Getenv("AZURE_OPENAI_TENANT_ID"),
			os.Getenv("AZURE_OPENAI_CLIENT_ID"),
			os.Getenv("AZURE_OPENAI_CLIENT_SECRET"),
			scope, baseURL, deployment, apiVersion,
		)
		if err != nil {
			return fmt.Errorf("azure-openai provider: %w", err)
		}
		registry.Register(p)
		*names = append(*names, "azure-openai")
		log.Info("provider registered", "name", "azure-openai", "auth", "oauth2")
		return nil
	case os.Getenv("AZURE_OPENAI_API_KEY") != "":
		p, err := providers.NewAzureOpenAI(os.Getenv("AZURE_OPENAI_API_KEY"), baseURL, deployment, apiVersion)
		if err != nil {
			return fmt.Errorf("azure-openai provider: %w", err)
		}
		registry.Register(p)
		*names = append(*names, "azure-openai")
		log.Info("provider registered", "name", "azure-openai", "auth", "static-key")
		return nil
	}
	return nil
}
