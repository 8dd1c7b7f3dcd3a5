package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sadopc/askql/internal/history"
	"github.com/sadopc/askql/internal/nlq"
	"github.com/sadopc/askql/internal/render"
	"github.com/sadopc/askql/internal/repl"
	"github.com/sadopc/askql/internal/vocab"
)

// questionFlags are shared by compile and ask.
type questionFlags struct {
	department string
	dateRange  string
	debug      bool
	format     string
}

func (q *questionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.department, "department", "", "Department filter, overriding the question")
	cmd.Flags().StringVar(&q.dateRange, "date-range", "", "Date range (q1-q4, last_month, this_month, this_year or a custom expression)")
	cmd.Flags().BoolVar(&q.debug, "debug", false, "Show the explanation, matched patterns and diagnostics")
	cmd.Flags().StringVar(&q.format, "format", "", "Output format (text, table, csv, json, yaml)")
}

func (q *questionFlags) request(args []string) nlq.Request {
	return nlq.Request{
		Question:   strings.Join(args, " "),
		Department: q.department,
		DateRange:  q.dateRange,
		Debug:      q.debug,
	}
}

func newCompileCmd(o *options) *cobra.Command {
	var (
		qf          questionFlags
		dialect     string
		catalogPath string
	)
	cmd := &cobra.Command{
		Use:   "compile QUESTION",
		Short: "Compile a question into SQL without running it",
		Long: `Compile a question into parameterized SQL. The schema comes from
--catalog (a file written by "askql schema -o") or from a live connection.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if qf.format == "" {
				qf.format = string(render.FormatText)
			}
			f, err := render.ParseFormat(qf.format)
			if err != nil {
				return err
			}
			a, err := o.newAsker(cmd.Context(), askerOptions{catalogPath: catalogPath, dialect: dialect})
			if err != nil {
				return err
			}
			defer a.Close()

			q, err := a.Compile(cmd.Context(), qf.request(args))
			if err != nil {
				return err
			}
			r := o.renderer()
			r.Debug = qf.debug
			return r.Query(cmd.OutOrStdout(), q, f)
		},
	}
	qf.register(cmd)
	cmd.Flags().StringVar(&dialect, "dialect", "", "SQL dialect ("+strings.Join(nlq.DialectNames(), ", ")+")")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Schema catalog file (YAML or JSON)")
	return cmd
}

func newAskCmd(o *options) *cobra.Command {
	var qf questionFlags
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Compile a question and run it read-only against the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := o.format(qf.format)
			if err != nil {
				return err
			}
			a, err := o.newAsker(cmd.Context(), askerOptions{needConn: true})
			if err != nil {
				return err
			}
			defer a.Close()

			ans, err := a.Ask(cmd.Context(), qf.request(args))
			if err != nil {
				return err
			}
			r := o.renderer()
			r.Debug = qf.debug
			return r.Answer(cmd.OutOrStdout(), ans.ID, ans.Query, ans.Result, f)
		},
	}
	qf.register(cmd)
	return cmd
}

func newSchemaCmd(o *options) *cobra.Command {
	var (
		outPath string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Discover the database schema and print or save it as a catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.newAsker(cmd.Context(), askerOptions{needConn: true})
			if err != nil {
				return err
			}
			defer a.Close()

			cat, err := a.Catalog(cmd.Context())
			if err != nil {
				return err
			}
			if outPath != "" {
				if err := cat.Save(outPath); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d tables to %s\n", len(cat.Tables), outPath)
				return nil
			}
			data, err := cat.Marshal(asJSON)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the catalog to a file (.json for JSON, YAML otherwise)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of YAML")
	return cmd
}

func newHistoryCmd(o *options) *cobra.Command {
	var (
		search   string
		limit    int
		clearAll bool
		format   string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List, search or clear previously asked questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			path, err := o.cfg.HistoryPath()
			if err != nil {
				return err
			}
			h, err := history.Open(path)
			if err != nil {
				return err
			}
			defer h.Close()

			if clearAll {
				if err := h.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
				return nil
			}

			var entries []history.Entry
			if search != "" {
				entries, err = h.Search(search, limit)
			} else {
				entries, err = h.Recent(limit)
			}
			if err != nil {
				return err
			}
			return o.renderer().History(cmd.OutOrStdout(), entries, f)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only show questions containing this text")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries")
	cmd.Flags().BoolVar(&clearAll, "clear", false, "Delete all history")
	cmd.Flags().StringVar(&format, "format", "", "Output format (text, json, yaml)")
	return cmd
}

func newReplCmd(o *options) *cobra.Command {
	var (
		dialect     string
		catalogPath string
	)
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactively compile questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := o.newAsker(cmd.Context(), askerOptions{catalogPath: catalogPath, dialect: dialect})
			if err != nil {
				return err
			}
			defer a.Close()

			// Discover up front so connection problems surface before the
			// terminal switches modes.
			if _, err := a.Catalog(cmd.Context()); err != nil {
				return err
			}
			recall, err := a.RecentQuestions(200)
			if err != nil {
				o.logger.Warn("history recall unavailable", "error", err)
			}
			return repl.Run(cmd.Context(), a, o.renderer(), recall)
		},
	}
	cmd.Flags().StringVar(&dialect, "dialect", "", "SQL dialect ("+strings.Join(nlq.DialectNames(), ", ")+")")
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Schema catalog file (YAML or JSON)")
	return cmd
}

func newVocabCmd(o *options) *cobra.Command {
	var (
		path   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Print the active vocabulary",
		Long: `Print the keyword tables the compiler matches questions against. Use
the output as a starting point for a custom vocabulary file and point
compiler.vocabulary in the config at it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = o.cfg.Compiler.Vocabulary
			}
			v, err := vocab.Load(path)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(v); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Validate and print this vocabulary file instead")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of YAML")
	return cmd
}
