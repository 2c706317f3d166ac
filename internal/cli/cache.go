package cli

import (
	"fmt"

	"github.com/ppiankov/chapterfeed/internal/cache"
	"github.com/ppiankov/chapterfeed/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var clearCacheDir string

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the upstream feed cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached feed snapshot",
	Long: `Clear deletes the snapshots kept in the cache directory, so the next
build fetches the upstream feed again.

Example:
  chapterfeed cache clear
  chapterfeed cache clear --cache-dir ~/.cache/chapterfeed`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("cache-dir") {
			cfg.Cache.Dir = clearCacheDir
		}
		if err := clearCache(cfg.Cache); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Cleared cache %s\n", cfg.Cache.Dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheClearCmd.Flags().StringVar(&clearCacheDir, "cache-dir", "", "cache directory to clear")
}

// clearCache empties the persistent cache described by cfg. Only the disk
// layer outlives a process, so a config without a directory is an error.
func clearCache(cfg model.CacheConfig) error {
	if cfg.Dir == "" {
		return fmt.Errorf("no cache directory configured (set cache.dir or --cache-dir)")
	}
	cfg.Enabled = true
	if err := cache.New(cfg).Clear(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}
