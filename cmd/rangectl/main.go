// rangectl - shooting range dashboard client
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	flag "github.com/spf13/pflag"

	"github.com/ernie/range-dashboard/internal/command"
	"github.com/ernie/range-dashboard/internal/config"
	"github.com/ernie/range-dashboard/internal/domain"
)

var version = "dev"

const defaultConfigPath = "/etc/range/config.yml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "watch":
		cmdWatch(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	case "select":
		cmdSelect(os.Args[2:])
	case "led":
		cmdLED(os.Args[2:])
	case "player":
		cmdPlayer(os.Args[2:])
	case "game":
		cmdGame(os.Args[2:])
	case "journal":
		cmdJournal(os.Args[2:])
	case "version":
		fmt.Printf("rangectl %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: rangectl <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  watch [--journal path] [--nats url] [--metrics addr]")
	fmt.Println("                                      Follow the range live and render the dashboard")
	fmt.Println("  status [--live]                     Show targets, players and scores")
	fmt.Println("  select <system/target> [--off]      Arm (or disarm) a target")
	fmt.Println("  led <system/target> --color #RRGGBB --time MS")
	fmt.Println("                                      Set a target's hit LED")
	fmt.Println("  player add <name>                   Add a player")
	fmt.Println("  player remove <id>                  Remove a player")
	fmt.Println("  player list                         List players")
	fmt.Println("  game start <mode> [--params n=10] [--players 1,2]")
	fmt.Println("                                      Start race_to_n, time_attack or free_play")
	fmt.Println("  game stop                           Stop the active game")
	fmt.Println("  journal [connections|frames|rejected|feed] [--limit N]")
	fmt.Println("                                      Show the local diagnostics journal")
	fmt.Println("  version                             Show version")
	fmt.Println("  help                                Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <path>    Path to configuration file (default /etc/range/config.yml if present)")
	fmt.Println("  --url <url>        Dashboard origin (default: from config, RANGE_URL, or http://127.0.0.1:8000)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  rangectl watch --metrics :9100")
	fmt.Println("  rangectl select A/1")
	fmt.Println("  rangectl led A/1 --color '#00ff00' --time 500")
	fmt.Println("  rangectl game start race_to_n --params n=5 --players 1,2")
}

// globalFlags are accepted by every subcommand
type globalFlags struct {
	config *string
	url    *string
}

func addGlobalFlags(fs *flag.FlagSet) globalFlags {
	return globalFlags{
		config: fs.String("config", "", "path to configuration file"),
		url:    fs.String("url", "", "dashboard origin"),
	}
}

// load reads the config file, falling back to the default location when
// it exists, and applies --url
func (g globalFlags) load() *config.Config {
	path := *g.config
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		fatalf("failed to load config: %v", err)
	}
	if *g.url != "" {
		cfg.Range.URL = strings.TrimRight(*g.url, "/")
		if err := cfg.Validate(); err != nil {
			fatalf("%v", err)
		}
	}
	return cfg
}

func newCommandClient(cfg *config.Config) *command.Client {
	return command.NewClient(cfg.Range.URL, command.WithTimeout(cfg.Client.CommandTimeout))
}

// commandContext is cancelled by Ctrl-C. Requests only time out when
// command_timeout is configured.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func cmdSelect(args []string) {
	fs := flag.NewFlagSet("select", flag.ExitOnError)
	g := addGlobalFlags(fs)
	off := fs.Bool("off", false, "disarm instead of arm")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fatalf("usage: rangectl select <system/target> [--off]")
	}
	key, err := domain.ParseTargetKey(fs.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}

	cfg := g.load()
	ctx, cancel := commandContext()
	defer cancel()
	if err := newCommandClient(cfg).SelectTarget(ctx, key, !*off); err != nil {
		fatalf("%v", err)
	}
	state := "armed"
	if *off {
		state = "disarmed"
	}
	fmt.Printf("Target %s %s\n", key, state)
}

func cmdLED(args []string) {
	fs := flag.NewFlagSet("led", flag.ExitOnError)
	g := addGlobalFlags(fs)
	color := fs.String("color", domain.DefaultLEDColor, "LED colour as #RRGGBB")
	timeMs := fs.Int("time", domain.DefaultLEDTimeMs, "LED on-time in milliseconds")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fatalf("usage: rangectl led <system/target> --color #RRGGBB --time MS")
	}
	key, err := domain.ParseTargetKey(fs.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}
	// The server clamps and validates; this only warns
	if err := command.CheckLED(*color, *timeMs); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cfg := g.load()
	ctx, cancel := commandContext()
	defer cancel()
	if err := newCommandClient(cfg).SetLED(ctx, key, *color, *timeMs); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("Target %s LED set to %s for %dms\n", key, *color, *timeMs)
}

func cmdPlayer(args []string) {
	if len(args) < 1 {
		fatalf("player subcommand required: add, remove, list")
	}
	subCmd := args[0]
	fs := flag.NewFlagSet("player "+subCmd, flag.ExitOnError)
	g := addGlobalFlags(fs)
	fs.Parse(args[1:])

	cfg := g.load()
	client := newCommandClient(cfg)
	ctx, cancel := commandContext()
	defer cancel()

	var players []domain.Player
	var err error
	switch subCmd {
	case "add":
		if fs.NArg() < 1 {
			fatalf("usage: rangectl player add <name>")
		}
		players, err = client.AddPlayer(ctx, strings.Join(fs.Args(), " "))
	case "remove":
		if fs.NArg() != 1 {
			fatalf("usage: rangectl player remove <id>")
		}
		players, err = client.RemovePlayer(ctx, domain.PlayerID(fs.Arg(0)))
	case "list":
		players, err = client.ListPlayers(ctx)
	default:
		fatalf("unknown player command: %s (use: add, remove, list)", subCmd)
	}
	if err != nil {
		fatalf("%v", err)
	}
	printPlayers(players)
}

func printPlayers(players []domain.Player) {
	if len(players) == 0 {
		fmt.Println("No players")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	fmt.Fprintln(w, "--\t----")
	for _, p := range players {
		fmt.Fprintf(w, "%s\t%s\n", p.ID, p.Name)
	}
	w.Flush()
}

func cmdGame(args []string) {
	if len(args) < 1 {
		fatalf("game subcommand required: start, stop")
	}
	subCmd := args[0]
	fs := flag.NewFlagSet("game "+subCmd, flag.ExitOnError)
	g := addGlobalFlags(fs)
	params := fs.String("params", "", "mode parameter, e.g. n=10 or seconds=30")
	playerIDs := fs.StringSlice("players", nil, "participating player ids")
	fs.Parse(args[1:])

	cfg := g.load()
	client := newCommandClient(cfg)
	ctx, cancel := commandContext()
	defer cancel()

	var game *domain.Game
	var err error
	switch subCmd {
	case "start":
		if fs.NArg() != 1 {
			fatalf("usage: rangectl game start <mode> [--params n=10] [--players 1,2]")
		}
		mode := domain.GameMode(fs.Arg(0))
		if err := command.ValidateMode(mode); err != nil {
			fatalf("%v", err)
		}
		req := command.StartGameRequest{
			Mode:      mode,
			Params:    command.ParseGameParams(mode, *params),
			PlayerIDs: make([]domain.PlayerID, 0, len(*playerIDs)),
		}
		for _, id := range *playerIDs {
			req.PlayerIDs = append(req.PlayerIDs, domain.PlayerID(id))
		}
		game, err = client.StartGame(ctx, req)
	case "stop":
		game, err = client.StopGame(ctx)
	default:
		fatalf("unknown game command: %s (use: start, stop)", subCmd)
	}
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Println(game.Describe())
}
