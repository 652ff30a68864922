package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tinynewsco/docpub/internal/api"
	"github.com/tinynewsco/docpub/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Local configuration commands",
}

var configForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file to the home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := homeFromFlags()
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}
		if h.ConfigExists() && !configForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", h.ConfigPath())
		}
		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", h.ConfigPath())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, mgr, err := loadEnv()
		if err != nil {
			return err
		}
		cfg := mgr.Get()

		entries := config.DefaultEntries()
		sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
		for i := range entries {
			v, err := cfg.Lookup(entries[i].Key)
			if err != nil {
				return err
			}
			entries[i].Value = v
		}
		return api.Output(entries)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that every required setting is present",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, mgr, err := loadEnv()
		if err != nil {
			return err
		}
		if err := mgr.Get().Validate(); err != nil {
			return err
		}
		if file := mgr.ConfigFile(); file != "" {
			fmt.Printf("%s: ok\n", file)
		} else {
			fmt.Println("environment: ok")
		}
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	rootCmd.AddCommand(configCmd)
}
