package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/voxkey-labs/voxkey/internal/config"
	"github.com/voxkey-labs/voxkey/internal/notify"
	"github.com/voxkey-labs/voxkey/internal/protocol"
	"github.com/voxkey-labs/voxkey/internal/secret"
	"github.com/voxkey-labs/voxkey/internal/store"
	"github.com/voxkey-labs/voxkey/internal/vocab"
)

var version = "0.1.0-dev"

const usage = `usage: voxkey-kbd [-config path] <command>

commands:
  record              ask the daemon to start recording
  consume             print and clear the pending transcription
  status              poll the daemon's lifecycle status
  stats               print usage counters
  vocab add <word>    append a vocabulary hint term
  vocab remove <n>    remove the term at index n
  vocab list          print the vocabulary list
  intent <uri>        validate an intent uri and print its route
  set-key <value>     store the transcription API credential
  version             print version
`

func main() {
	var configPath string
	root := flag.NewFlagSet("voxkey-kbd", flag.ExitOnError)
	root.StringVar(&configPath, "config", "voxkey.yaml", "Path to configuration file")
	root.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = root.Parse(os.Args[1:])

	args := root.Args()
	if len(args) < 1 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if args[0] == "version" {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := &kbd{
		cfg: cfg,
		log: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}

	if err := app.run(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type kbd struct {
	cfg config.Config
	log *slog.Logger
}

func (k *kbd) run(args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[0] {
	case "record":
		return k.record()
	case "consume":
		return k.consume(ctx)
	case "status":
		return k.control(ctx, "/control/status")
	case "stats":
		return k.control(ctx, "/control/stats")
	case "vocab":
		return k.vocab(ctx, args[1:])
	case "intent":
		if len(args) < 2 {
			return fmt.Errorf("intent requires a uri argument")
		}
		route, err := protocol.ParseIntent(args[1])
		if err != nil {
			return err
		}
		fmt.Println(route)
		return nil
	case "set-key":
		if len(args) < 2 {
			return fmt.Errorf("set-key requires a credential argument")
		}
		return secret.NewStore(k.cfg.Transcriber).SetCredential(args[1])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// record emits the open-and-record intent and fires the wake-up event.
// Delivery is best-effort: if the daemon is not listening yet, it catches
// up from the intent alone.
func (k *kbd) record() error {
	fmt.Println(protocol.RecordIntentURI())

	notifier, err := notify.Connect(k.cfg.Bus, "voxkey-kbd", k.log)
	if err != nil {
		k.log.Warn("notifier unreachable, relying on intent delivery", slog.String("error", err.Error()))
		return nil
	}
	defer notifier.Close()

	if err := notifier.Post(protocol.EventAudioReady); err != nil {
		k.log.Warn("failed to post record event", slog.String("error", err.Error()))
	}
	return nil
}

// consume reads the pending transcription, prints it, and clears the store
// slot immediately so a later spurious appearance cannot re-insert it.
func (k *kbd) consume(ctx context.Context) error {
	st, err := store.Open(ctx, k.cfg.Store, k.log)
	if err != nil {
		return err
	}
	defer st.Close()

	text, ok, err := st.Get(ctx, protocol.KeyTranscribedText)
	if err != nil {
		return err
	}
	if !ok || text == "" {
		return nil
	}
	fmt.Println(text)
	return st.Remove(ctx, protocol.KeyTranscribedText)
}

func (k *kbd) vocab(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("vocab requires add, remove, or list")
	}
	st, err := store.Open(ctx, k.cfg.Store, k.log)
	if err != nil {
		return err
	}
	defer st.Close()
	manager := vocab.NewManager(st)

	switch args[0] {
	case "add":
		if len(args) < 2 {
			return fmt.Errorf("vocab add requires a word")
		}
		return manager.Add(ctx, args[1])
	case "remove":
		if len(args) < 2 {
			return fmt.Errorf("vocab remove requires an index")
		}
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[1])
		}
		return manager.Remove(ctx, index)
	case "list":
		terms, err := manager.List(ctx)
		if err != nil {
			return err
		}
		for i, term := range terms {
			fmt.Printf("%d\t%s\n", i, term)
		}
		return nil
	default:
		return fmt.Errorf("unknown vocab command %q", args[0])
	}
}

// control polls the daemon's HTTP surface; this is the reconciliation path
// used when a notification may have been missed.
func (k *kbd) control(ctx context.Context, path string) error {
	url := fmt.Sprintf("http://%s:%d%s", k.cfg.HTTP.Bind, k.cfg.HTTP.Port, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s: %s", resp.Status, body)
	}

	var pretty json.RawMessage = body
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(string(out))
	return nil
}
