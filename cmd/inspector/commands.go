package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/anime-shed/weld-inspector-go/internal/classifier"
	"github.com/anime-shed/weld-inspector-go/internal/config"
	"github.com/anime-shed/weld-inspector-go/internal/logger"
	"github.com/anime-shed/weld-inspector-go/internal/observer"
	"github.com/anime-shed/weld-inspector-go/internal/picker"
	"github.com/anime-shed/weld-inspector-go/internal/preview"
	"github.com/anime-shed/weld-inspector-go/internal/tui"
	"github.com/anime-shed/weld-inspector-go/internal/widget"
	"github.com/anime-shed/weld-inspector-go/pkg/models"
)

var (
	errPredictionFailed = errors.New("prediction failed")
	errNoResult         = errors.New("result callback not received")
)

// resultWait bounds how long predict --json waits for the result callback.
const resultWait = 5 * time.Second

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "inspector",
		Short:         "Upload weld images to a classification service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a TOML config file (default ./config.toml)")

	root.AddCommand(newPredictCmd(opts), newTUICmd(opts))
	return root
}

func newPredictCmd(opts *rootOptions) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "predict <image>",
		Short: "Classify one image and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := setup(opts.configPath, cmd.ErrOrStderr())
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			defer closeLog()

			return runPredict(cmd.Context(), cfg, args[0], jsonOut, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the raw service payload instead of the rendered result")
	return cmd
}

func newTUICmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui [image]",
		Short: "Select and inspect images interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The terminal belongs to bubbletea; logs only go to log.file.
			cfg, closeLog, err := setup(opts.configPath, io.Discard)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			defer closeLog()

			initial := ""
			if len(args) == 1 {
				initial = args[0]
			}
			return runTUI(cmd.Context(), cfg, initial)
		},
	}
}

// setup loads configuration and points the logger at log.file, or at
// fallback when no file is configured.
func setup(configPath string, fallback io.Writer) (*config.Config, func(), error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Configure(cfg.Log.Level, cfg.Log.Format)

	if cfg.Log.File == "" {
		logger.SetOutput(fallback)
		return cfg, func() {}, nil
	}

	f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)
	return cfg, func() { f.Close() }, nil
}

// session is one widget with its collaborators, torn down together.
type session struct {
	widget   *widget.Widget
	previews *preview.Registry
	metrics  *observer.MetricsObserver
}

func newSession(cfg *config.Config, opts ...widget.Option) (*session, error) {
	client := classifier.NewHTTPClient(classifier.Options{
		BaseURL:            cfg.API.URL,
		MaxRetries:         cfg.API.MaxRetries,
		InsecureSkipVerify: cfg.API.InsecureSkipVerify,
	})

	previews, err := preview.NewRegistry(cfg.Preview.Dir, cfg.Preview.ThumbnailSize)
	if err != nil {
		return nil, err
	}

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	opts = append([]widget.Option{
		widget.WithPreviews(previews),
		widget.WithEvents(events),
		widget.WithTimeout(cfg.API.RequestTimeout),
	}, opts...)

	logger.WithFields(logrus.Fields{
		"endpoint": client.Endpoint(),
		"timeout":  cfg.API.RequestTimeout,
		"retries":  cfg.API.MaxRetries,
	}).Debug("Classifier configured")

	return &session{
		widget:   widget.New(client, opts...),
		previews: previews,
		metrics:  metrics,
	}, nil
}

func (s *session) Close() {
	if err := s.widget.Close(); err != nil {
		logger.WithError(err).Warn("Widget teardown incomplete")
	}
	if err := s.previews.Close(); err != nil {
		logger.WithError(err).Warn("Preview registry teardown incomplete")
	}
	logger.WithFields(logrus.Fields(s.metrics.GetMetrics())).Debug("Session finished")
}

func runPredict(ctx context.Context, cfg *config.Config, path string, jsonOut bool, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	file, err := picker.Open(path, cfg.Upload.MaxSize)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return err
	}

	// the payload arrives through the widget's result callback
	results := make(chan models.Prediction, 1)
	onResult := observer.ResultFunc(func(_ context.Context, p models.Prediction) {
		results <- p
	})

	s, err := newSession(cfg, widget.WithResultObserver(onResult))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return err
	}
	defer s.Close()

	s.widget.SelectFile(file)
	if cmd := s.widget.Submit(ctx); cmd != nil {
		s.widget.Update(cmd())
	}

	switch s.widget.Status().(type) {
	case widget.Succeeded:
		if !jsonOut {
			fmt.Fprintln(stdout, s.widget.View())
			return nil
		}
		select {
		case p := <-results:
			fmt.Fprintln(stdout, string(p.Raw))
			return nil
		case <-time.After(resultWait):
			fmt.Fprintln(stderr, errNoResult)
			return errNoResult
		}
	default:
		fmt.Fprintln(stderr, s.widget.View())
		return errPredictionFailed
	}
}

func runTUI(ctx context.Context, cfg *config.Config, initial string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	if initial != "" {
		file, err := picker.Open(initial, cfg.Upload.MaxSize)
		if err != nil {
			s.widget.RejectSelection(err.Error())
		} else {
			s.widget.SelectFile(file)
		}
	}

	model := tui.New(ctx, s.widget, cfg.Upload.MaxSize)
	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
