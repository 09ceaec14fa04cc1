package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/lox/holdem-arena/internal/ai"
	"github.com/lox/holdem-arena/internal/deck"
	"github.com/lox/holdem-arena/internal/evaluator"
	"github.com/lox/holdem-arena/internal/server"
)

var cli struct {
	Version kong.VersionFlag `help:"Print version and exit"`

	Serve ServeCmd `cmd:"" default:"1" help:"Run the game server"`
	Odds  OddsCmd  `cmd:"" help:"Estimate equity and pot odds for one decision point"`
}

// ServeCmd runs the HTTP and WebSocket server
type ServeCmd struct {
	Config   string `short:"c" default:"holdem-arena.hcl" help:"Path to HCL configuration file"`
	Addr     string `short:"a" help:"Address to bind to (overrides config)"`
	Port     int    `short:"p" help:"Port to listen on (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
}

func (cmd *ServeCmd) Run() error {
	cfg, err := server.LoadConfig(cmd.Config)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cmd.Addr != "" {
		cfg.Server.Address = cmd.Addr
	}
	if cmd.Port > 0 {
		cfg.Server.Port = cmd.Port
	}
	if cmd.LogLevel != "" {
		cfg.Server.LogLevel = cmd.LogLevel
	}

	logger := log.New(os.Stderr)
	switch cfg.Server.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

// OddsCmd is a quick calculator for a single spot: equity against a random
// hand, pot odds, call EV, and what the hole cards currently make.
type OddsCmd struct {
	Hole       string `arg:"" help:"Hole cards, e.g. 'AsKd'"`
	Board      string `short:"b" help:"Community cards, e.g. 'Td7s8h'"`
	Pot        int    `help:"Current pot size" default:"0"`
	ToCall     int    `help:"Amount to call" default:"0"`
	Iterations int    `short:"i" help:"Monte Carlo iterations" default:"100000"`
	Seed       *int64 `help:"Random seed for reproducible results"`
}

func (cmd *OddsCmd) Run() error {
	hole, err := deck.ParseCards(cmd.Hole)
	if err != nil {
		return fmt.Errorf("parsing hole cards: %w", err)
	}
	if len(hole) != 2 {
		return fmt.Errorf("expected 2 hole cards, got %d", len(hole))
	}

	var board []deck.Card
	if cmd.Board != "" {
		board, err = deck.ParseCards(cmd.Board)
		if err != nil {
			return fmt.Errorf("parsing board: %w", err)
		}
		if len(board) > 5 {
			return fmt.Errorf("board cannot have more than 5 cards")
		}
	}

	seed := time.Now().UnixNano()
	if cmd.Seed != nil {
		seed = *cmd.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	analysis := ai.Analyze(hole, board, cmd.Pot, cmd.ToCall, cmd.Iterations, rng)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Hole:\t%s\n", cmd.Hole)
	if len(board) > 0 {
		fmt.Fprintf(w, "Board:\t%s\n", cmd.Board)
		texture := evaluator.ClassifyBoard(board)
		fmt.Fprintf(w, "Texture:\t%s\n", texture.Texture)
		made := evaluator.DescribeMadeHand(hole, board)
		fmt.Fprintf(w, "Made hand:\t%s\n", made.Description)
	}
	fmt.Fprintf(w, "Equity vs random:\t%.1f%%\n", analysis.Equity*100)
	if cmd.ToCall > 0 {
		fmt.Fprintf(w, "Pot odds:\t%.1f%%\n", analysis.PotOdds*100)
		verdict := "unprofitable"
		if analysis.EVPositive {
			verdict = "profitable"
		}
		fmt.Fprintf(w, "EV(call):\t%+.1f chips (%s)\n", analysis.EVCall, verdict)
	}
	return w.Flush()
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("holdem-arena"),
		kong.Description("Texas Hold'em arena: play against LLM-driven opponents."),
		kong.Vars{"version": "dev"},
	)
	ctx.FatalIfErrorf(ctx.Run())
}
