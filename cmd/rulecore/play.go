package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nathoo/rulecore/cli"
	"github.com/nathoo/rulecore/config"
	"github.com/nathoo/rulecore/engine"
	"github.com/nathoo/rulecore/engine/play"
	"github.com/nathoo/rulecore/loader"
	"github.com/nathoo/rulecore/model"
	"github.com/nathoo/rulecore/tui"
)

var (
	plain      bool
	trace      bool
	scriptFile string
	seed       int64
)

var playCmd = &cobra.Command{
	Use:   "play <game_directory>",
	Short: "Play a game",
	Long: `Loads the game in the given directory and plays it in a full-screen
terminal UI. With --plain, or when stdout is not a terminal, it uses a
line-oriented prompt instead. --script feeds commands from a file.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().BoolVar(&plain, "plain", false, "Use the line-oriented prompt")
	playCmd.Flags().BoolVar(&trace, "trace", false, "Show dispatch traces after each turn")
	playCmd.Flags().StringVar(&scriptFile, "script", "", "Read commands from a file")
	playCmd.Flags().Int64Var(&seed, "seed", 0, "Override the random seed")
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir := args[0]
	fullScreen := scriptFile == "" && !plain && isTerminal()
	if err := initLogger(fullScreen); err != nil {
		return err
	}

	newGame, err := gameFactory(ctx, dir, cfg)
	if err != nil {
		return err
	}
	g, err := newGame()
	if err != nil {
		return fmt.Errorf("loading game: %w", err)
	}
	logger.Info("game started",
		zap.String("title", g.Title),
		zap.Int64("seed", g.RNG.Seed()),
		zap.Int("callbacks", len(g.Engine.Callbacks())))

	if fullScreen {
		m := tui.New(ctx, g, newGame).WithSaveDir(cfg.SaveDir).WithLogger(logger)
		return tui.Run(ctx, m)
	}

	c := cli.New(g, newGame)
	c.Out = cmd.OutOrStdout()
	c.SaveDir = cfg.SaveDir
	c.Trace = trace
	c.Log = logger
	fmt.Fprintf(c.Out, "%s\n\n", g.Title)
	if scriptFile != "" {
		f, err := os.Open(scriptFile)
		if err != nil {
			return fmt.Errorf("opening script: %w", err)
		}
		defer f.Close()
		c.In = f
		c.EchoInput = true
	}
	c.Run(ctx)
	return nil
}

// gameFactory returns a function that loads dir afresh and starts a game
// with the configured engine options and character models.
func gameFactory(ctx context.Context, dir string, cfg *config.Config) (func() (*play.Game, error), error) {
	var gen model.Generator
	if cfg.Model.Enabled() {
		gem, err := model.NewGemini(ctx, cfg.Model.APIKey(), cfg.Model.Name)
		if err != nil {
			return nil, err
		}
		gen = gem
	}
	opts := []engine.Option{
		engine.WithThresholds(cfg.Thresholds),
		engine.WithVocabulary(cfg.Vocabulary()),
	}

	return func() (*play.Game, error) {
		content, err := loader.Load(dir)
		if err != nil {
			return nil, err
		}
		for _, w := range content.Warnings {
			logger.Warn("content warning", zap.String("dir", dir), zap.String("warning", w))
		}
		switch {
		case seed != 0:
			content.Config.Seed = seed
		case cfg.Seed != 0:
			content.Config.Seed = cfg.Seed
		}
		g, err := content.NewGame(logger, opts...)
		if err != nil {
			return nil, err
		}
		if gen != nil {
			attached := model.Attach(g.Engine, g.World, g.Player, gen,
				model.WithTimeout(cfg.Model.TimeoutDuration()),
				model.WithLogger(logger.Named("model")))
			logger.Debug("character models attached", zap.Int("count", len(attached)))
		}
		return g, nil
	}, nil
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
