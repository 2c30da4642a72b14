package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"aisentinel/dataset"
	"aisentinel/model"
)

const imdbDefaultLimit = 15000

func (a *app) prepareDataCmd() *cobra.Command {
	var sst2, imdb string
	var imdbLimit int
	var noSynthetic bool
	cmd := &cobra.Command{
		Use:   "prepare-data",
		Short: "Build train, validation and test splits from sentiment corpora",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc := a.cfg.Training
			if sst2 == "" {
				sst2 = filepath.Join(tc.RawDir, "sst2", "train.tsv")
			}
			if imdb == "" {
				imdb = filepath.Join(tc.RawDir, "imdb", "train.csv")
			}

			var sets [][]dataset.Example
			for _, c := range []dataset.Corpus{dataset.SST2(sst2), dataset.IMDB(imdb, imdbLimit)} {
				exs, err := loadCorpus(cmd.Context(), c)
				if err != nil {
					slog.Warn("skipping corpus", "corpus", c.Name, "location", c.Location, "error", err)
					continue
				}
				slog.Info("corpus loaded", "corpus", c.Name, "examples", len(exs))
				sets = append(sets, exs)
			}
			if tc.Synthetic && !noSynthetic {
				sets = append(sets, dataset.SyntheticReviews())
			}

			opts := dataset.DefaultOptions()
			opts.TestSize = tc.TestSize
			opts.ValSize = tc.ValSize
			opts.Seed = uint64(tc.Seed)
			prepared, err := dataset.Prepare(sets, opts)
			if err != nil {
				return err
			}
			if err := prepared.Write(tc.ProcessedDir); err != nil {
				return err
			}

			md := prepared.Metadata
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s samples to %s (train %s, val %s, test %s)\n",
				humanize.Comma(int64(md.TotalSamples)), tc.ProcessedDir,
				humanize.Comma(int64(md.TrainSamples)), humanize.Comma(int64(md.ValSamples)), humanize.Comma(int64(md.TestSamples)))
			return nil
		},
	}
	cmd.Flags().StringVar(&sst2, "sst2", "", "SST-2 TSV file or URL (default <raw_dir>/sst2/train.tsv)")
	cmd.Flags().StringVar(&imdb, "imdb", "", "IMDB CSV file or URL (default <raw_dir>/imdb/train.csv)")
	cmd.Flags().IntVar(&imdbLimit, "imdb-limit", imdbDefaultLimit, "maximum IMDB rows, 0 for all")
	cmd.Flags().BoolVar(&noSynthetic, "no-synthetic", false, "leave out the synthetic AI-tool reviews")
	return cmd
}

func loadCorpus(ctx context.Context, c dataset.Corpus) ([]dataset.Example, error) {
	if !strings.HasPrefix(c.Location, "http://") && !strings.HasPrefix(c.Location, "https://") {
		if _, err := os.Stat(c.Location); err != nil {
			return nil, err
		}
	}
	return c.Load(ctx, &http.Client{Timeout: 5 * time.Minute})
}

// runConfig maps the training settings onto a model run.
func (a *app) runConfig(modelType string) model.RunConfig {
	tc := a.cfg.Training
	mc := model.DefaultConfig(modelType, 0, tc.MaxLength)
	mc.EmbeddingDim = tc.EmbeddingDim
	mc.LSTMUnits = tc.LSTMUnits
	mc.UseAttention = tc.UseAttention
	mc.NumHeads = tc.NumHeads
	mc.FFDim = tc.FFDim
	if tc.Dropout > 0 {
		mc.DropoutRate = tc.Dropout
	}

	train := model.DefaultTrainConfig()
	train.Epochs = tc.Epochs
	train.BatchSize = tc.BatchSize
	train.LearningRate = tc.LearningRate
	train.Seed = uint64(tc.Seed)

	return model.RunConfig{
		Model:        mc,
		MaxVocabSize: tc.MaxVocabSize,
		Train:        train,
		OutputRoot:   tc.OutputDir,
	}
}

func (a *app) trainCmd() *cobra.Command {
	var modelType string
	var epochs int
	var promote bool
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the sentiment classifier on the prepared splits",
		RunE: func(cmd *cobra.Command, args []string) error {
			if modelType == "" {
				modelType = a.cfg.Training.ModelType
			}
			if modelType != model.LSTM && modelType != model.Transformer {
				return fmt.Errorf("unknown model type %q: must be %s or %s", modelType, model.LSTM, model.Transformer)
			}
			train, val, test, err := dataset.ReadSplits(a.cfg.Training.ProcessedDir)
			if err != nil {
				return fmt.Errorf("reading splits (run prepare-data first): %w", err)
			}

			rc := a.runConfig(modelType)
			if epochs > 0 {
				rc.Train.Epochs = epochs
			}
			res, err := model.Train(cmd.Context(), train, val, test, rc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s\n", res.Dir)
			fmt.Fprintf(out, "test accuracy %.4f, loss %.4f, best epoch %d of %d\n",
				res.Metrics.TestAccuracy, res.Metrics.TestLoss, res.History.BestEpoch, res.History.Epochs())
			fmt.Fprintln(out, res.Metrics.Report)

			if promote {
				if err := model.Promote(res.Dir, a.cfg.Sentiment.ModelDir); err != nil {
					return err
				}
				fmt.Fprintf(out, "promoted to %s\n", a.cfg.Sentiment.ModelDir)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelType, "model-type", "m", "", "lstm or transformer (default from config)")
	cmd.Flags().IntVar(&epochs, "epochs", 0, "override the configured number of epochs")
	cmd.Flags().BoolVar(&promote, "promote", true, "copy the trained model into the analyzer's model directory")
	return cmd
}

func (a *app) evaluateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a trained model on the test split",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.Sentiment.ModelDir
			}
			_, _, test, err := dataset.ReadSplits(a.cfg.Training.ProcessedDir)
			if err != nil {
				return err
			}
			m, err := model.EvaluateDir(dir, test)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s model, %s test samples: accuracy %.4f, loss %.4f\n",
				m.ModelType, humanize.Comma(int64(test.Len())), m.TestAccuracy, m.TestLoss)
			fmt.Fprintln(out, m.Report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "model-dir", "d", "", "model directory (default sentiment.model_dir)")
	return cmd
}

func (a *app) modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List training runs with their test scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			root := a.cfg.Training.OutputDir
			entries, err := os.ReadDir(root)
			if errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintln(cmd.OutOrStdout(), "no training runs yet")
				return nil
			}
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tTYPE\tACCURACY\tPARAMS\tTRAINED")
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				if e.IsDir() && strings.HasPrefix(e.Name(), "run_") {
					names = append(names, e.Name())
				}
			}
			slices.Sort(names)
			slices.Reverse(names)
			for _, name := range names {
				var m model.Metrics
				if err := model.ReadJSON(filepath.Join(root, name, model.MetricsFile), &m); err != nil {
					fmt.Fprintf(tw, "%s\t-\t-\t-\tincomplete\n", name)
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%.4f\t%s\t%s\n", name, m.ModelType, m.TestAccuracy,
					humanize.Comma(int64(m.NumParams)), humanize.Time(m.Timestamp))
			}
			return tw.Flush()
		},
	}
}
