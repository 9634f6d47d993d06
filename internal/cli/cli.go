// Package cli is the terminal front-end: list models, show a model's
// evaluation report and classify an X-ray image.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/Brownie44l1/xray-detect/internal/artifacts"
	"github.com/Brownie44l1/xray-detect/internal/config"
	"github.com/Brownie44l1/xray-detect/internal/errs"
	"github.com/Brownie44l1/xray-detect/internal/inference"
	"github.com/Brownie44l1/xray-detect/internal/logging"
	"github.com/Brownie44l1/xray-detect/internal/model"
	"github.com/Brownie44l1/xray-detect/internal/report"
	"github.com/spf13/cobra"
)

// LoaderFactory builds the classifier loader for a run. The returned close
// func releases runtime resources.
type LoaderFactory func(cfg config.Config, logger *slog.Logger) (model.Loader, func())

type Options struct {
	Out       io.Writer
	Err       io.Writer
	NewLoader LoaderFactory
}

type app struct {
	opts       Options
	configPath string
	root       string
	logLevel   string

	cfg    config.Config
	logger *slog.Logger
}

func ONNXLoaderFactory(cfg config.Config, logger *slog.Logger) (model.Loader, func()) {
	loader := model.NewONNXLoader(model.ONNXOptions{
		LibraryPath: cfg.ONNX.LibraryPath,
		InputName:   cfg.ONNX.InputName,
		OutputName:  cfg.ONNX.OutputName,
	}, logger)
	return loader, func() {
		if err := loader.Close(); err != nil {
			logger.Warn("failed to close ONNX environment", "error", err)
		}
	}
}

func NewRootCommand(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	if opts.NewLoader == nil {
		opts.NewLoader = ONNXLoaderFactory
	}
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:           "xray",
		Short:         "Classify chest X-rays as Normal, Viral Pneumonia or Covid",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "configuration file (default "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&a.root, "root", "", "model root directory, overrides the configuration")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(a.modelsCommand(), a.reportCommand(), a.predictCommand())
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.root != "" {
		cfg.Models.Root = a.root
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(a.opts.Err, cfg.Log.Level)

	// the model root must exist before anything else runs
	if _, err := artifacts.EnumerateModels(cfg.Models.Root); err != nil {
		a.logger.Error("model root unavailable", "root", cfg.Models.Root, "error", err)
		return err
	}
	return nil
}

func (a *app) modelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the available models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := artifacts.EnumerateModels(a.cfg.Models.Root)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func (a *app) reportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report <model>",
		Short: "Show a model's evaluation report and artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := artifacts.Lookup(a.cfg.Models.Root, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if artifacts.Exists(b.Report) {
				rep, err := artifacts.LoadReport(b.Report)
				if err != nil {
					return err
				}
				acc, rows := report.Format(rep)
				fmt.Fprintf(out, "Model: %s  Accuracy: %s\n\n", b.Name, report.FormatAccuracy(acc))
				writeRows(out, rows)
			} else {
				fmt.Fprintf(out, "Model: %s  (no evaluation report)\n", b.Name)
			}

			images := b.PresentImages()
			if len(images) > 0 {
				fmt.Fprintln(out)
			}
			for _, img := range images {
				fmt.Fprintf(out, "%s: %s\n", img.Title, img.Path)
			}
			return nil
		},
	}
}

func (a *app) predictCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <model> <image>",
		Short: "Classify a PNG or JPEG chest X-ray with a model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := artifacts.Lookup(a.cfg.Models.Root, args[0])
			if err != nil {
				return err
			}

			f, err := os.Open(args[1])
			if err != nil {
				return errs.Wrap(errs.KindBadImage, err, "failed to open image")
			}
			defer f.Close()

			img, _, err := inference.Decode(f)
			if err != nil {
				return err
			}

			loader, closeLoader := a.opts.NewLoader(a.cfg, a.logger)
			defer closeLoader()

			classifier, err := loader.Load(b.Classifier)
			if err != nil {
				return err
			}
			pred, err := inference.Predict(classifier, img)
			if err != nil {
				return err
			}

			a.logger.Debug("prediction", "model", b.Name, "index", pred.Index)
			fmt.Fprintf(cmd.OutOrStdout(), "Predicted Class: %s\n", pred.Class)
			return nil
		},
	}
}

func writeRows(out io.Writer, rows []report.Row) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Class\tPrecision\tRecall\tF1-Score\tSupport")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%d\n", r.Label, r.Precision, r.Recall, r.F1, r.Support)
	}
	w.Flush()
}
