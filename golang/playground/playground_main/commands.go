package main

import (
	"context"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tarstars/nn_playground/golang/playground/engine"
	"github.com/tarstars/nn_playground/golang/playground/render"
	"github.com/tarstars/nn_playground/golang/playground/server"
)

//trainHeadless runs frames back to back until the model has seen epochs epochs.
func trainHeadless(s *session, epochs int) error {
	if epochs < 1 {
		return errors.Errorf("epochs must be positive, got %d", epochs)
	}
	if err := s.shell.SetRunning(true); err != nil {
		return err
	}
	for s.shell.Progress().Epoch < epochs {
		if s.scheduler.Flush() == 0 {
			return errors.New(s.shell.Status())
		}
	}
	return s.shell.SetRunning(false)
}

func saveFrame(s *session, dst string) error {
	settings := s.shell.Settings()
	canvas := render.NewGGCanvas(settings.Width, settings.Height)
	if err := s.shell.Render(canvas); err != nil {
		return err
	}
	return canvas.SavePNG(dst)
}

func trainCmd(logger *zap.SugaredLogger) *cobra.Command {
	var config, outDir string
	var epochs int

	cmd := &cobra.Command{
		Use:   "train",
		Short: "train a model headlessly and dump the learning curve, surface and final frame",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(config, logger)
			if err != nil {
				return err
			}
			defer s.shell.Close()

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			if err := trainHeadless(s, epochs); err != nil {
				return errors.Wrap(err, "train")
			}

			history := s.shell.History()
			train, test, err := s.shell.Evaluate()
			if err != nil {
				return err
			}
			logger.Infof("Logloss for train: %v", train.Loss)
			if test.Examples > 0 {
				logger.Infof("Logloss for test: %v", test.Loss)
			}
			logger.Infow("training finished", "status", s.shell.Status())
			if trend, err := history.Trend(epochs / 4); err == nil {
				logger.Infow("learning curve", "trend", trend)
			}

			_, surface, err := s.shell.Surface()
			if err != nil {
				return err
			}
			return multierr.Combine(
				writeNpy(path.Join(outDir, "learning_curve.npy"), curveMatrix(history)),
				plotLearningCurve(path.Join(outDir, "learning_curve.png"), history),
				writeNpy(path.Join(outDir, "surface.npy"), surface),
				saveFrame(s, path.Join(outDir, "frame.png")),
			)
		},
	}
	cmd.Flags().StringVar(&config, "config", "", "a config file for the run of the program")
	cmd.Flags().IntVar(&epochs, "epochs", 100, "number of epochs to train")
	cmd.Flags().StringVar(&outDir, "out", ".", "directory for the dumps")
	return cmd
}

func renderCmd(logger *zap.SugaredLogger) *cobra.Command {
	var config, out string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "draw the dataset and the decision surface of an untrained model",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(config, logger)
			if err != nil {
				return err
			}
			defer s.shell.Close()
			return saveFrame(s, out)
		},
	}
	cmd.Flags().StringVar(&config, "config", "", "a config file for the run of the program")
	cmd.Flags().StringVar(&out, "out", "frame.png", "output PNG")
	return cmd
}

func graphCmd(logger *zap.SugaredLogger) *cobra.Command {
	var config, out, figureType string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "draw the network topology",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if _, ok := engine.GraphFormats[figureType]; !ok {
				return errors.Errorf("unknown figure type %q", figureType)
			}
			s, err := openSession(config, logger)
			if err != nil {
				return err
			}
			defer s.shell.Close()

			if out == "" {
				out = "topology." + strings.ToLower(figureType)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, f.Close()) }()
			return s.shell.RenderTopology(f, figureType)
		},
	}
	cmd.Flags().StringVar(&config, "config", "", "a config file for the run of the program")
	cmd.Flags().StringVar(&figureType, "format", "svg", "png, svg or jpg")
	cmd.Flags().StringVar(&out, "out", "", "output file, topology.<format> by default")
	return cmd
}

func serveCmd(logger *zap.SugaredLogger) *cobra.Command {
	var config, addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the playground over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(config, logger)
			if err != nil {
				return err
			}
			defer s.shell.Close()
			if s.running {
				if err := s.shell.SetRunning(true); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				if err := s.scheduler.Run(ctx); err != nil && err != context.Canceled {
					logger.Errorw("frame loop stopped", "error", err)
				}
			}()
			return server.New(s.shell, logger.Named("http")).ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&config, "config", "", "a config file for the run of the program")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
