package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Dee-Codez/BrowseGEN/internal/events"
	"github.com/Dee-Codez/BrowseGEN/internal/executor"
	"github.com/Dee-Codez/BrowseGEN/internal/interpreter"
	"github.com/Dee-Codez/BrowseGEN/internal/metrics"
	"github.com/Dee-Codez/BrowseGEN/internal/oracle"
	"github.com/Dee-Codez/BrowseGEN/internal/pagecontext"
	"github.com/Dee-Codez/BrowseGEN/internal/pipeline"
	"github.com/Dee-Codez/BrowseGEN/internal/session"
)

type cliOptions struct {
	command     string
	url         string
	withSession bool
	sessionURL  string
	useContext  bool
	listen      string
}

func main() {
	_ = godotenv.Load()
	opts := parseFlags()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := session.NewRegistry(log.With().Str("comp", "session").Logger())
	defer func() {
		if err := registry.Shutdown(); err != nil {
			log.Error().Err(err).Msg("registry shutdown")
		}
	}()

	broadcaster := events.NewBroadcaster(log.With().Str("comp", "events").Logger())
	exec := executor.New(registry, broadcaster, log.With().Str("comp", "executor").Logger())

	var oracleClient interpreter.Oracle
	if client, err := oracle.FromEnv(log.With().Str("comp", "oracle").Logger()); err != nil {
		log.Warn().Err(err).Msg("oracle unavailable, fallback parser only")
	} else {
		oracleClient = client
		log.Info().Str("model", client.Name()).Msg("oracle ready")
	}
	interp := interpreter.New(oracleClient, log.With().Str("comp", "interpreter").Logger())

	provider := pagecontext.New(registry, log.With().Str("comp", "pagecontext").Logger())
	sink := metrics.NewLogSink(log.With().Str("comp", "metrics").Logger())
	cfg := pipeline.Config{
		LogMetrics:      os.Getenv("DISABLE_METRIC_LOGGING") != "true",
		LogErrorMetrics: os.Getenv("LOG_ERROR_METRICS") == "true",
	}
	runner := pipeline.NewRunner(cfg, interp, exec, provider, sink, log.With().Str("comp", "pipeline").Logger())

	if opts.listen != "" {
		serve(ctx, opts, registry, broadcaster, runner)
		return
	}

	if opts.command == "" {
		command, cancelled, err := promptCommand()
		if err != nil {
			log.Fatal().Err(err).Msg("prompt command failed")
		}
		if cancelled {
			fmt.Println("Cancelled.")
			return
		}
		opts.command = command
	}

	sessionID := ""
	if opts.withSession {
		sessionID = session.NewID()
		if _, err := registry.Create(ctx, sessionID, session.Options{InitialURL: opts.sessionURL}); err != nil {
			log.Fatal().Err(err).Msg("create session")
		}
		defer func() {
			if err := registry.Close(sessionID); err != nil {
				log.Error().Err(err).Msg("close session")
			}
		}()
	}

	resp, err := runner.Run(ctx, pipeline.Request{
		Command:    opts.command,
		URL:        opts.url,
		SessionID:  sessionID,
		UseContext: opts.useContext,
	})
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		if resp != nil {
			printJSON(resp)
		}
		os.Exit(1)
	}
	printJSON(resp)
}

// serve exposes the broadcaster's websocket attachment point. Overlay
// and dashboard clients subscribe here; inbound command messages run
// through the same pipeline as the CLI path.
func serve(ctx context.Context, opts cliOptions, registry *session.Registry, broadcaster *events.Broadcaster, runner *pipeline.Runner) {
	if opts.withSession {
		sessionID := session.NewID()
		if _, err := registry.Create(ctx, sessionID, session.Options{InitialURL: opts.sessionURL}); err != nil {
			log.Fatal().Err(err).Msg("create session")
		}
		fmt.Printf("session: %s\n", sessionID)
	}

	run := func(ctx context.Context, sessionID, command string) {
		if _, err := runner.Run(ctx, pipeline.Request{
			Command:    command,
			SessionID:  sessionID,
			UseContext: true,
		}); err != nil {
			log.Error().Err(err).Str("session", sessionID).Msg("overlay command failed")
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", events.Handler(broadcaster, run, log.With().Str("comp", "ws").Logger()))
	srv := &http.Server{Addr: opts.listen, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", opts.listen).Msg("websocket endpoint listening on /ws")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("serve")
	}
}

func parseFlags() cliOptions {
	command := flag.String("command", "", "Natural language command to run")
	url := flag.String("url", "", "URL hint passed to the interpreter")
	withSession := flag.Bool("session", false, "Create a persistent session for the run")
	sessionURL := flag.String("session-url", "", "Initial URL loaded into the session page")
	useContext := flag.Bool("use-context", false, "Collect page context to ground interpretation")
	listen := flag.String("listen", "", "Serve the websocket event endpoint on this address instead of running one command")
	flag.Parse()
	return cliOptions{
		command:     strings.TrimSpace(*command),
		url:         strings.TrimSpace(*url),
		withSession: *withSession,
		sessionURL:  strings.TrimSpace(*sessionURL),
		useContext:  *useContext,
		listen:      strings.TrimSpace(*listen),
	}
}

func promptCommand() (string, bool, error) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Enter a command (leave empty to cancel): ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", false, err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", true, nil
	}

	const maxCommandLength = 2000
	if len(line) > maxCommandLength {
		fmt.Printf("Command too long (max %d chars), truncated\n", maxCommandLength)
		line = line[:maxCommandLength]
	}
	return line, false, nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("encode result")
		return
	}
	fmt.Println(string(data))
}
