// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paperfetch/internal/cache"
	"github.com/pdiddy/paperfetch/internal/ratelimit"
	"github.com/pdiddy/paperfetch/internal/source"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources [name]...",
	Short: "List source adapters in priority order",
	Long: `Sources prints every adapter, or only the named ones, with its kind,
priority, whether it is enabled and usable (credentials present when
required), its capabilities, and the request delay the rate governor
enforces for it. The size of the metadata cache follows when it is enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer closeApp(a)

		w := cmd.OutOrStdout()
		if err := printSources(w, a.registry, a.governor, args); err != nil {
			return err
		}
		if a.cache != nil {
			return printCache(cmd.Context(), w, a.cache, a.cfg.Cache.Path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

// printSources writes the adapter table. With names, only those adapters are
// listed and an unknown name is an error.
func printSources(w io.Writer, reg *source.Registry, gov *ratelimit.Governor, names []string) error {
	infos := reg.Infos()
	if len(names) > 0 {
		infos = infos[:0:0]
		for _, name := range names {
			src, ok := reg.Lookup(name)
			if !ok {
				return fmt.Errorf("unknown source %q", name)
			}
			infos = append(infos, src.Info())
		}
	}

	table := uitable.New()
	table.MaxColWidth = 40
	table.AddRow("NAME", "KIND", "PRIORITY", "ENABLED", "USABLE", "AUTH", "CAPABILITIES", "METHODS", "DELAY")
	for _, info := range infos {
		caps := make([]string, len(info.Capabilities))
		for i, c := range info.Capabilities {
			caps[i] = string(c)
		}
		methods := make([]string, len(info.Methods))
		for i, m := range info.Methods {
			methods[i] = string(m)
		}
		table.AddRow(info.Name, info.Kind, info.Priority, yesNo(info.Enabled), yesNo(reg.Usable(info)),
			yesNo(info.RequiresAuth), strings.Join(caps, ","), strings.Join(methods, ","), gov.Delay(info.Name))
	}
	fmt.Fprintln(w, table)
	fmt.Fprintf(w, "\nGlobal delay: %s\n", gov.GlobalDelay())
	return nil
}

func printCache(ctx context.Context, w io.Writer, store *cache.Store, path string) error {
	n, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Metadata cache: %d records (%s)\n", n, path)
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
