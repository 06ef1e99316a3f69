// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paperfetch CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperfetch/internal/config"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is loaded once per invocation in PersistentPreRunE.
	cfg types.Config

	// configErr defers a config read failure from initConfig to the
	// command, so it is reported like any other error.
	configErr error

	log = logrus.New()
)

// rootCmd is the base command for the paperfetch CLI.
var rootCmd = &cobra.Command{
	Use:   "paperfetch",
	Short: "Resolve academic paper identifiers and download their PDFs",
	Long: `paperfetch turns a DOI, arXiv ID, URL, or title into verified metadata and
a local PDF. It tries registries, open-access aggregators, repositories, and
preprint archives in priority order, paces requests per source, and rejects
title matches that belong to another field.

Use fetch for a few papers, batch for an input file with resumable progress,
and verify to check a BibTeX file against authoritative registries.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			log.SetLevel(logrus.DebugLevel)
		}
		if configErr != nil {
			return configErr
		}
		c, err := config.Load(viper.GetViper(), log)
		if err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paperfetch.yaml or ~/.config/paperfetch/paperfetch.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log diagnostics at debug level")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	used, err := config.Init(viper.GetViper(), cfgFile)
	if err != nil {
		configErr = err
		return
	}
	if used != "" {
		fmt.Fprintln(os.Stderr, "Using config file:", used)
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
