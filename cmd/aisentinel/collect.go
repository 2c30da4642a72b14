package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"aisentinel/dataset"
	"aisentinel/storage"
	"aisentinel/taxonomy"
)

func (a *app) collectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Run one collection cycle and store the scored mentions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			bus := a.eventBus()
			if bus != nil {
				defer bus.Close()
			}
			res, err := a.pipeline(store, a.analyzer(), bus).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: collected %s, stored %s, published %s, deleted %s\n",
				res.RunID, humanize.Comma(int64(res.Collected)), humanize.Comma(int64(res.Stored)),
				humanize.Comma(int64(res.Published)), humanize.Comma(int64(res.Deleted)))
			if len(res.Failed) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "failed collectors: %s\n", strings.Join(res.Failed, ", "))
			}
			return nil
		},
	}
}

func (a *app) analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [TEXT...]",
		Short: "Score texts given as arguments or one per line on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			texts := args
			if len(texts) == 0 {
				var err error
				if texts, err = readLines(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for i, r := range a.analyzer().AnalyzeBatch(texts) {
				if err := enc.Encode(map[string]any{
					"text":       texts[i],
					"label":      r.Label,
					"score":      r.Score,
					"confidence": r.Confidence,
					"analyzer":   r.Analyzer,
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func (a *app) sampleDataCmd() *cobra.Command {
	var n int
	var seed uint64
	cmd := &cobra.Command{
		Use:   "sample-data",
		Short: "Store generated sample mentions for trying out the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			stored, err := store.SaveMentions(dataset.SampleMentions(n, time.Now(), seed))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s sample mentions\n", humanize.Comma(int64(stored)))
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 500, "number of mentions to generate")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random seed")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE.csv",
		Short: "Import scored mentions from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			loc, err := time.LoadLocation(a.cfg.Timezone)
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.ImportCSV(f, loc)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s mentions from %s\n", humanize.Comma(int64(n)), args[0])
			return nil
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var out, tool, category string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored mentions as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			var f storage.Filter
			f.Tool = tool
			if category != "" {
				c, ok := taxonomy.ParseCategory(category)
				if !ok {
					return fmt.Errorf("unknown category %q", category)
				}
				f.Category = c
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				file, err := os.Create(out)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}
			n, err := store.ExportCSV(w, f)
			if err != nil {
				return err
			}
			if out != "" && out != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "exported %s mentions to %s\n", humanize.Comma(int64(n)), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&tool, "tool", "", "only this tool")
	cmd.Flags().StringVar(&category, "category", "", "only this category")
	return cmd
}
