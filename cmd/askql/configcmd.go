package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/sadopc/askql/internal/config"
	"github.com/sadopc/askql/internal/theme"
)

// configFile is --config, or the default location.
func (o *options) configFile() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	return config.DefaultPath()
}

func newConfigCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := o.configFile()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		newConfigInitCmd(o),
		&cobra.Command{
			Use:   "connections",
			Short: "List saved connections",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				out := cmd.OutOrStdout()
				th := theme.Current
				if len(o.cfg.Connections) == 0 {
					fmt.Fprintln(out, th.MutedText.Render("No saved connections"))
					return nil
				}
				width := 0
				for _, sc := range o.cfg.Connections {
					width = max(width, runewidth.StringWidth(sc.Name))
				}
				for _, sc := range o.cfg.Connections {
					fmt.Fprintf(out, "%s  %s\n",
						th.Label.Render(runewidth.FillRight(sc.Name, width)), sc.DisplayString())
				}
				return nil
			},
		},
	)
	return cmd
}

func newConfigInitCmd(o *options) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := o.configFile()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists: pass --force to overwrite it", path)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}
