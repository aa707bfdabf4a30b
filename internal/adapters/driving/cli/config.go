package cli

import (
	"errors"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/docchat-cli/docchat/internal/core/ports/driven"
)

// knownConfigKeys drives the "config show" listing so users can see
// which keys the application reads even before setting them.
var knownConfigKeys = []string{
	driven.ConfigKeyDataDir,
	driven.ConfigKeyStoreType,
	driven.ConfigKeySourceDir,
	driven.ConfigKeySourceExtension,
	driven.ConfigKeyChunkWords,
	driven.ConfigKeyOpenAIBaseURL,
	driven.ConfigKeyOpenAIKeyEnv,
	driven.ConfigKeyEmbeddingModel,
	driven.ConfigKeyChatModel,
	driven.ConfigKeyEmbeddingRPS,
	driven.ConfigKeySearchLimit,
	driven.ConfigKeyWatchDebounceMSec,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage application configuration",
	RunE:  runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	keys := make([]string, len(knownConfigKeys))
	copy(keys, knownConfigKeys)
	sort.Strings(keys)

	for _, key := range keys {
		if val, ok := configStore.Get(key); ok {
			cmd.Printf("%s = %v\n", key, val)
		} else {
			cmd.Printf("%s = (unset)\n", key)
		}
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	val, ok := configStore.Get(args[0])
	if !ok {
		return errors.New("key not set: " + args[0])
	}
	cmd.Printf("%v\n", val)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	key, raw := args[0], args[1]
	if err := configStore.Set(key, coerceConfigValue(raw)); err != nil {
		return err
	}
	cmd.Printf("Set %s\n", key)
	return nil
}

func runConfigPath(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}
	cmd.Println(configStore.Path())
	return nil
}

// coerceConfigValue stores numerals and booleans typed, everything else
// as a string.
func coerceConfigValue(raw string) any {
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
