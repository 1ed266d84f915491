package main

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tarstars/nn_playground/golang/playground/engine"
	"github.com/tarstars/nn_playground/golang/playground/shell"
	"github.com/tarstars/nn_playground/golang/playground/training"
)

type session struct {
	arena     *engine.Arena
	scheduler *training.FrameScheduler
	shell     *shell.Shell
	running   bool
}

//loadSettings reads the config file if one is given, otherwise starts from the defaults.
func loadSettings(srcConfig string) (shell.Settings, error) {
	if srcConfig == "" {
		return shell.DefaultSettings(), nil
	}
	return shell.LoadSettings(srcConfig)
}

//openSession builds a playground from the config with training switched off. running
//remembers whether the config asked for it.
func openSession(srcConfig string, logger *zap.SugaredLogger) (*session, error) {
	settings, err := loadSettings(srcConfig)
	if err != nil {
		return nil, err
	}
	running := settings.Running
	settings.Running = false

	arena := engine.NewArena()
	scheduler := training.NewFrameScheduler(clock.New(), training.DefaultFrameRate)
	sh := shell.New(arena, scheduler, logger)
	if err := sh.Init(settings); err != nil {
		sh.Close()
		return nil, err
	}
	return &session{arena: arena, scheduler: scheduler, shell: sh, running: running}, nil
}

func writeMemProfile(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	runtime.GC()
	return errors.Wrap(pprof.WriteHeapProfile(f), "could not write memory profile")
}

func rootCmd(logger *zap.SugaredLogger) *cobra.Command {
	var memprofile string

	root := &cobra.Command{
		Use:           "playground",
		Short:         "train and inspect small neural networks on 2-D toy datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if memprofile == "" {
				return nil
			}
			return writeMemProfile(memprofile)
		},
	}
	root.PersistentFlags().StringVar(&memprofile, "memprofile", "", "write memory profile to `file`")

	root.AddCommand(trainCmd(logger), renderCmd(logger), graphCmd(logger), serveCmd(logger))
	return root
}

func main() {
	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	logger := zapLogger.Sugar()

	err = rootCmd(logger).Execute()
	if err != nil {
		logger.Errorw("playground failed", "error", err)
	}
	_ = logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}
