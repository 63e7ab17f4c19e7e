package main

// Try the classification prompt against a live provider:
//   go run ./cmd/classifytest -keys "ABC-100,XYZ-22" -config classify.yaml

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"partsync-backend/internal/llm"
	openai "partsync-backend/internal/llm/openai"
	"partsync-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()

	keysArg := flag.String("keys", "", "Comma-separated part keys to classify")
	filePath := flag.String("file", "", "Path to a file with one part key per line (optional)")
	configPath := flag.String("config", cfg.ClassifyConfigPath, "Path to classify config YAML")
	provider := flag.String("provider", cfg.LLMProvider, "LLM provider")
	model := flag.String("model", cfg.LLMModel, "LLM model")
	hint := flag.String("hint", "", "Context hint override (defaults to config brand hint)")
	flag.Parse()

	keys := collectKeys(*keysArg, *filePath)
	if len(keys) == 0 {
		exitErr("at least one key is required (-keys or -file)")
	}

	classifyCfg, err := config.LoadClassifyConfig(*configPath)
	if err != nil {
		exitErr(fmt.Sprintf("load classify config: %v", err))
	}

	contextHint := classifyCfg.BrandHint
	if strings.TrimSpace(*hint) != "" {
		contextHint = *hint
	}

	client, err := buildClient(*provider, *model)
	if err != nil {
		exitErr(err.Error())
	}

	items := make([]llm.BatchItem, 0, len(keys))
	for _, key := range keys {
		items = append(items, llm.BatchItem{Key: key, ContextHint: contextHint})
	}

	out, err := client.Classify(context.Background(), llm.ClassifyInput{
		Items:      items,
		Categories: classifyCfg.Categories,
	})
	if err != nil {
		exitErr(fmt.Sprintf("classify: %v", err))
	}

	fmt.Printf("model: %s\n", out.Model)
	if out.Usage != nil {
		fmt.Printf("tokens: prompt=%d completion=%d total=%d\n",
			out.Usage.PromptTokens, out.Usage.CompletionTokens, out.Usage.TotalTokens)
	}

	start := strings.Index(out.Content, "[")
	end := strings.LastIndex(out.Content, "]")
	if start < 0 || end <= start {
		fmt.Println("raw content (no JSON array found):")
		fmt.Println(out.Content)
		return
	}
	pretty, err := prettyJSON([]byte(out.Content[start : end+1]))
	if err != nil {
		fmt.Println("raw content (invalid JSON array):")
		fmt.Println(out.Content)
		return
	}
	fmt.Println(string(pretty))
}

func collectKeys(keysArg, filePath string) []string {
	var keys []string
	for _, key := range strings.Split(keysArg, ",") {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	if strings.TrimSpace(filePath) != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			exitErr(fmt.Sprintf("read keys file: %v", err))
		}
		for _, line := range strings.Split(string(data), "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				keys = append(keys, trimmed)
			}
		}
	}
	return keys
}

func buildClient(provider, model string) (llm.Client, error) {
	switch strings.TrimSpace(provider) {
	case "openai":
		return openai.NewClient(os.Getenv("OPENAI_API_KEY"), model)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func prettyJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exitErr(msg string) {
	_, _ = fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
