package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quorumhq/quorum/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Quorum configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/quorum/config.yaml
Project-specific overrides can be placed in .quorum.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s (%s)\n", config.MaskAPIKey(cfg.Anthropic.APIKey), config.GetAPIKeySource(cfg))
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("anthropic.aws_region: %s\n", cfg.Anthropic.AWSRegion)
	fmt.Printf("deliberation.mode: %s\n", cfg.Deliberation.Mode)
	fmt.Printf("deliberation.max_rounds: %d\n", cfg.Deliberation.MaxRounds)
	fmt.Printf("deliberation.threshold: %g\n", cfg.Deliberation.Threshold)
	fmt.Printf("deliberation.epsilon: %g\n", cfg.Deliberation.Epsilon)
	fmt.Printf("deliberation.max_tokens: %d\n", cfg.Deliberation.MaxTokens)
	fmt.Printf("deliberation.timeout: %s\n", cfg.Deliberation.Timeout)
	fmt.Printf("retry.max_attempts: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("retry.base_wait: %s\n", cfg.Retry.BaseWait)
	fmt.Printf("retry.overall_timeout: %s\n", cfg.Retry.OverallTimeout)
	fmt.Printf("registry.path: %s\n", cfg.Registry.Path)
	fmt.Printf("history.path: %s\n", cfg.History.Path)
	fmt.Printf("transcripts.dir: %s\n", cfg.Transcripts.Dir)
	for id, w := range cfg.Weights {
		fmt.Printf("weights.%s: %g\n", id, w)
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "deliberation.mode":
		return cfg.Deliberation.Mode, nil
	case "deliberation.max_rounds":
		return strconv.Itoa(cfg.Deliberation.MaxRounds), nil
	case "deliberation.threshold":
		return strconv.FormatFloat(cfg.Deliberation.Threshold, 'g', -1, 64), nil
	case "deliberation.epsilon":
		return strconv.FormatFloat(cfg.Deliberation.Epsilon, 'g', -1, 64), nil
	case "deliberation.max_tokens":
		return strconv.Itoa(cfg.Deliberation.MaxTokens), nil
	case "deliberation.timeout":
		return cfg.Deliberation.Timeout.String(), nil
	case "retry.max_attempts":
		return strconv.Itoa(cfg.Retry.MaxAttempts), nil
	case "retry.base_wait":
		return cfg.Retry.BaseWait.String(), nil
	case "retry.overall_timeout":
		return cfg.Retry.OverallTimeout.String(), nil
	case "registry.path":
		return cfg.Registry.Path, nil
	case "history.path":
		return cfg.History.Path, nil
	case "transcripts.dir":
		return cfg.Transcripts.Dir, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		cfg.Anthropic.UseBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "deliberation.mode":
		if value != "single-round" && value != "multi-round" {
			return fmt.Errorf("invalid mode %q: must be single-round or multi-round", value)
		}
		cfg.Deliberation.Mode = value
	case "deliberation.max_rounds":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid round count %q", value)
		}
		cfg.Deliberation.MaxRounds = n
	case "deliberation.threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 || f > 1 {
			return fmt.Errorf("invalid threshold %q: must be in (0, 1]", value)
		}
		cfg.Deliberation.Threshold = f
	case "deliberation.epsilon":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f >= 1 {
			return fmt.Errorf("invalid epsilon %q: must be in [0, 1)", value)
		}
		cfg.Deliberation.Epsilon = f
	case "deliberation.max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid token limit %q", value)
		}
		cfg.Deliberation.MaxTokens = n
	case "deliberation.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q", value)
		}
		cfg.Deliberation.Timeout = d
	case "retry.max_attempts":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid attempt count %q", value)
		}
		cfg.Retry.MaxAttempts = n
	case "retry.base_wait":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q", value)
		}
		cfg.Retry.BaseWait = d
	case "retry.overall_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q", value)
		}
		cfg.Retry.OverallTimeout = d
	case "registry.path":
		cfg.Registry.Path = value
	case "history.path":
		cfg.History.Path = value
	case "transcripts.dir":
		cfg.Transcripts.Dir = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
