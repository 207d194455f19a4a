package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/batonkit/baton/internal/config"
	"github.com/batonkit/baton/pkg/models"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify Baton configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/baton/config.yaml
Project-specific overrides can be placed in .baton.yaml`,
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
	apiKeyDisplay := config.MaskAPIKey(cfg.Anthropic.APIKey)
	if src := config.GetAPIKeySource(cfg); src != config.KeySourceNone {
		apiKeyDisplay += fmt.Sprintf(" (from %s)", src)
	}

	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.model: %s\n", displayOrDefault(cfg.Anthropic.Model))
	fmt.Printf("anthropic.max_tokens: %s\n", displayOrDefaultInt(cfg.Anthropic.MaxTokens))
	fmt.Printf("anthropic.use_aws_bedrock: %t\n", cfg.Anthropic.UseAWSBedrock)
	fmt.Printf("defaults.mode: %s\n", cfg.Defaults.Mode)
	fmt.Printf("defaults.max_retries: %d\n", cfg.Defaults.MaxRetries)
	fmt.Printf("defaults.task_timeout: %s\n", cfg.Defaults.TaskTimeout)
	fmt.Printf("defaults.quality_threshold: %.2f\n", cfg.Defaults.QualityThreshold)
	fmt.Printf("retry.initial_interval: %s\n", cfg.Retry.InitialInterval)
	fmt.Printf("retry.max_interval: %s\n", cfg.Retry.MaxInterval)
	fmt.Printf("retry.multiplier: %.1f\n", cfg.Retry.Multiplier)
	fmt.Printf("history.enabled: %t\n", cfg.History.Enabled)
	fmt.Printf("history.path: %s\n", displayOrDefault(cfg.History.Path))
}

func displayOrDefault(s string) string {
	if s == "" {
		return "(default)"
	}
	return s
}

func displayOrDefaultInt(n int) string {
	if n == 0 {
		return "(default)"
	}
	return strconv.Itoa(n)
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

	if strings.EqualFold(key, "anthropic.api_key") {
		value = config.MaskAPIKey(value)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return displayOrDefault(cfg.Anthropic.Model), nil
	case "anthropic.max_tokens":
		return displayOrDefaultInt(cfg.Anthropic.MaxTokens), nil
	case "anthropic.use_aws_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseAWSBedrock), nil
	case "anthropic.aws_region":
		return displayOrDefault(cfg.Anthropic.AWSRegion), nil
	case "anthropic.aws_profile":
		return displayOrDefault(cfg.Anthropic.AWSProfile), nil
	case "defaults.mode":
		return cfg.Defaults.Mode, nil
	case "defaults.max_retries":
		return strconv.Itoa(cfg.Defaults.MaxRetries), nil
	case "defaults.task_timeout":
		return cfg.Defaults.TaskTimeout.String(), nil
	case "defaults.quality_threshold":
		return strconv.FormatFloat(cfg.Defaults.QualityThreshold, 'f', 2, 64), nil
	case "retry.initial_interval":
		return cfg.Retry.InitialInterval.String(), nil
	case "retry.max_interval":
		return cfg.Retry.MaxInterval.String(), nil
	case "retry.multiplier":
		return strconv.FormatFloat(cfg.Retry.Multiplier, 'f', 1, 64), nil
	case "history.enabled":
		return strconv.FormatBool(cfg.History.Enabled), nil
	case "history.path":
		return displayOrDefault(cfg.History.Path), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if err := config.ValidateAPIKey(value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid value for max_tokens: %s", value)
		}
		cfg.Anthropic.MaxTokens = n
	case "anthropic.use_aws_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_aws_bedrock: %w", err)
		}
		cfg.Anthropic.UseAWSBedrock = b
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "defaults.mode":
		mode, err := models.ParseMode(value)
		if err != nil {
			return err
		}
		cfg.Defaults.Mode = string(mode)
	case "defaults.max_retries":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid value for max_retries: %s", value)
		}
		cfg.Defaults.MaxRetries = n
	case "defaults.task_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for task_timeout: %w", err)
		}
		cfg.Defaults.TaskTimeout = d
	case "defaults.quality_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 || f > 1 {
			return fmt.Errorf("invalid quality_threshold %q: want a number in (0,1]", value)
		}
		cfg.Defaults.QualityThreshold = f
	case "retry.initial_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for initial_interval: %w", err)
		}
		cfg.Retry.InitialInterval = d
	case "retry.max_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for max_interval: %w", err)
		}
		cfg.Retry.MaxInterval = d
	case "retry.multiplier":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 1 {
			return fmt.Errorf("invalid multiplier %q: want a number >= 1", value)
		}
		cfg.Retry.Multiplier = f
	case "history.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for history.enabled: %w", err)
		}
		cfg.History.Enabled = b
	case "history.path":
		cfg.History.Path = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
