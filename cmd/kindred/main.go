// Command kindred is a local voice companion: it listens on the microphone,
// transcribes what you say, recalls related memories, generates a reply, and
// speaks it back in a cloned voice.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/feralbyte/kindred/internal/call"
	"github.com/feralbyte/kindred/internal/config"
	"github.com/feralbyte/kindred/internal/health"
	"github.com/feralbyte/kindred/internal/notify"
	"github.com/feralbyte/kindred/internal/observe"
	"github.com/feralbyte/kindred/internal/resilience"
	"github.com/feralbyte/kindred/internal/segment"
	"github.com/feralbyte/kindred/pkg/audio"
	"github.com/feralbyte/kindred/pkg/memory"
	"github.com/feralbyte/kindred/pkg/memory/memstore"
	"github.com/feralbyte/kindred/pkg/memory/postgres"
	ollamaembed "github.com/feralbyte/kindred/pkg/provider/embeddings/ollama"
	"github.com/feralbyte/kindred/pkg/provider/llm"
	"github.com/feralbyte/kindred/pkg/provider/llm/anyllm"
	openaillm "github.com/feralbyte/kindred/pkg/provider/llm/openai"
	"github.com/feralbyte/kindred/pkg/provider/stt/whisper"
	"github.com/feralbyte/kindred/pkg/provider/tts"
	"github.com/feralbyte/kindred/pkg/provider/tts/coqui"
	"github.com/feralbyte/kindred/pkg/provider/vad/energy"
)

// version is stamped at build time via -ldflags.
var version = "dev"

const usage = `kindred — a voice companion that remembers you

Usage:
  kindred call   [-config FILE] [-duration D]   start a voice call
  kindred memory [-config FILE] add TEXT        store a memory
  kindred memory [-config FILE] query TEXT      retrieve similar memories
  kindred memory [-config FILE] count           count stored memories
  kindred say    [-config FILE] [-out FILE] TEXT  synthesise text to a WAV file
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	switch args[0] {
	case "call":
		return runCall(args[1:])
	case "memory":
		return runMemory(args[1:])
	case "say":
		return runSay(args[1:])
	case "version":
		fmt.Println("kindred", version)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "kindred: unknown command %q\n\n%s", args[0], usage)
		return 2
	}
}

// loadConfig loads the YAML config and installs the default logger.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found — copy configs/example.yaml to get started", path)
		}
		return nil, err
	}
	slog.SetDefault(newLogger(cfg.App.LogLevel))
	return cfg, nil
}

// ── call ──────────────────────────────────────────────────────────────────────

func runCall(args []string) int {
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	duration := fs.Duration("duration", 0, "hang up after this long (0 = until Ctrl+C)")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kindred: %v\n", err)
		return 1
	}

	slog.Info("kindred starting",
		"version", version,
		"config", *configPath,
		"sample_rate", cfg.Call.SampleRate,
		"memory_backend", cfg.Memory.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "kindred",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────

	store, err := buildMemoryStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open memory store", "err", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("memory store close error", "err", err)
		}
	}()

	detector, err := energy.New(cfg.Call.VADAggressiveness)
	if err != nil {
		slog.Error("failed to create voice activity detector", "err", err)
		return 1
	}

	scriber, err := whisper.New(cfg.STT.ModelPath, whisper.WithLanguage(cfg.STT.Language))
	if err != nil {
		slog.Error("failed to load whisper model", "err", err, "model", cfg.STT.ModelPath)
		return 1
	}
	defer func() {
		if err := scriber.Close(); err != nil {
			slog.Warn("whisper close error", "err", err)
		}
	}()

	synth, err := coqui.New(cfg.TTS.ServerURL, coqui.WithLanguage(cfg.TTS.Language))
	if err != nil {
		slog.Error("failed to create synthesizer", "err", err)
		return 1
	}

	replyModel := buildLLM(cfg.LLM)

	// ── Audio pipeline ────────────────────────────────────────────────────────

	mic := audio.NewMicSource(
		audio.WithMicSampleRate(cfg.Call.SampleRate),
		audio.WithFrameDuration(cfg.Call.FrameDuration()),
	)
	speaker := audio.NewSpeakerDevice()
	defer func() {
		if err := speaker.Close(); err != nil {
			slog.Warn("speaker close error", "err", err)
		}
	}()

	seg := segment.New(mic, detector, scriber,
		segment.WithSilenceTimeout(cfg.Call.SilenceTimeout()),
	)

	metrics := observe.DefaultMetrics()
	player := audio.NewPlayer(speaker, audio.WithRenderObserver(func(d time.Duration) {
		metrics.PlaybackDuration.Record(context.Background(), d.Seconds())
	}))

	session, err := call.New(call.Config{
		Segmenter:    seg,
		LLM:          replyModel,
		Synth:        synth,
		Player:       player,
		Memory:       store,
		SpeakerWav:   cfg.TTS.SpeakerWav,
		Language:     cfg.TTS.Language,
		HistoryTurns: cfg.Call.HistoryTurns,
		MemoryTopK:   cfg.Call.MemoryTopK,
		Temperature:  cfg.LLM.Temperature,
		TopP:         cfg.LLM.TopP,
		MaxTokens:    cfg.LLM.MaxTokens,
		Metrics:      metrics,
		Notifier:     notify.New(cfg.App.Notifications),
	})
	if err != nil {
		slog.Error("failed to create session", "err", err)
		return 1
	}

	// ── Serve and wait ────────────────────────────────────────────────────────

	g, gctx := errgroup.WithContext(ctx)

	var ops *health.Server
	if cfg.App.MetricsAddr != "" {
		ops = health.NewServer(cfg.App.MetricsAddr,
			health.Probe{Name: "memory", Check: func(ctx context.Context) error {
				_, err := store.Count(ctx)
				return err
			}},
			health.Probe{Name: "tts", Check: probeHTTP(cfg.TTS.ServerURL)},
		)
		g.Go(ops.ListenAndServe)
		slog.Info("metrics endpoint listening", "addr", cfg.App.MetricsAddr)
	}

	if err := session.Start(gctx); err != nil {
		slog.Error("failed to start call", "err", err)
		return 1
	}
	slog.Info("call in progress — press Ctrl+C to hang up")

	wait := gctx.Done()
	if *duration > 0 {
		timer := time.NewTimer(*duration)
		defer timer.Stop()
		select {
		case <-wait:
		case <-timer.C:
			slog.Info("call duration reached", "duration", *duration)
		}
	} else {
		<-wait
	}

	slog.Info("hanging up")
	session.Stop()

	if ops != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ops.Shutdown(shutdownCtx); err != nil {
			slog.Warn("ops server shutdown error", "err", err)
		}
	}
	if err := g.Wait(); err != nil {
		slog.Error("serve error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── memory ────────────────────────────────────────────────────────────────────

func runMemory(args []string) int {
	fs := flag.NewFlagSet("memory", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	topK := fs.Int("k", 0, "number of results for query (default from config)")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kindred: %v\n", err)
		return 1
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := buildMemoryStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kindred: open memory store: %v\n", err)
		return 1
	}
	defer store.Close()

	switch rest[0] {
	case "add":
		if len(rest) < 2 {
			fmt.Fprintln(os.Stderr, "kindred: memory add requires TEXT")
			return 2
		}
		item, err := store.Add(ctx, strings.Join(rest[1:], " "), map[string]string{"source": "cli"})
		if err != nil {
			fmt.Fprintf(os.Stderr, "kindred: %v\n", err)
			return 1
		}
		fmt.Println("stored", item.ID)

	case "query":
		if len(rest) < 2 {
			fmt.Fprintln(os.Stderr, "kindred: memory query requires TEXT")
			return 2
		}
		k := *topK
		if k <= 0 {
			k = cfg.Call.MemoryTopK
		}
		results, err := store.Query(ctx, strings.Join(rest[1:], " "), k)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kindred: %v\n", err)
			return 1
		}
		for _, r := range results {
			fmt.Printf("%s  %s  %s\n", r.Item.ID, strconv.FormatFloat(r.Distance, 'f', 4, 64), r.Item.Text)
		}

	case "count":
		n, err := store.Count(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "kindred: %v\n", err)
			return 1
		}
		fmt.Println(n)

	default:
		fmt.Fprintf(os.Stderr, "kindred: unknown memory command %q\n", rest[0])
		return 2
	}
	return 0
}

// ── say ───────────────────────────────────────────────────────────────────────

func runSay(args []string) int {
	fs := flag.NewFlagSet("say", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	outPath := fs.String("out", "", "output WAV file (default kindred-<timestamp>.wav)")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kindred: %v\n", err)
		return 1
	}
	text := strings.Join(fs.Args(), " ")
	if text == "" {
		fmt.Fprintln(os.Stderr, "kindred: say requires TEXT")
		return 2
	}
	if *outPath == "" {
		*outPath = "kindred-" + time.Now().Format("20060102-150405") + ".wav"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	synth, err := coqui.New(cfg.TTS.ServerURL, coqui.WithLanguage(cfg.TTS.Language))
	if err != nil {
		fmt.Fprintf(os.Stderr, "kindred: %v\n", err)
		return 1
	}

	res, err := synth.Synthesize(ctx, tts.SynthesisRequest{
		Text:       text,
		SpeakerWav: cfg.TTS.SpeakerWav,
		Language:   cfg.TTS.Language,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "kindred: synthesise: %v\n", err)
		return 1
	}

	if err := audio.WriteWAVFile(*outPath, res.Samples, res.SampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "kindred: write wav: %v\n", err)
		return 1
	}
	fmt.Printf("wrote %s (%s of audio)\n", *outPath, res.Duration.Round(time.Millisecond))
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildMemoryStore opens the configured memory backend with an Ollama
// embedding provider behind it.
func buildMemoryStore(ctx context.Context, cfg *config.Config) (memory.Store, error) {
	embedder, err := ollamaembed.New(cfg.Embeddings.BaseURL, cfg.Embeddings.Model)
	if err != nil {
		return nil, fmt.Errorf("create embeddings provider: %w", err)
	}

	switch cfg.Memory.Backend {
	case config.BackendPostgres:
		return postgres.New(ctx, cfg.Memory.PostgresDSN, embedder)
	default:
		return memstore.New(embedder)
	}
}

// buildLLM creates the reply model from config. Without a configured
// provider the assistant runs degraded, echoing transcripts; a configured
// provider is additionally wrapped so runtime failures degrade the same way
// instead of silencing the turn.
func buildLLM(cfg config.LLMConfig) llm.Provider {
	if cfg.Provider == "" || cfg.Model == "" {
		slog.Warn("no reply model configured — replies will echo your words")
		return resilience.Echo{}
	}

	var (
		p   llm.Provider
		err error
	)
	switch cfg.Provider {
	case "openai":
		// The native client handles the full OpenAI parameter surface.
		var opts []openaillm.Option
		if cfg.BaseURL != "" {
			opts = append(opts, openaillm.WithBaseURL(cfg.BaseURL))
		}
		p, err = openaillm.New(cfg.APIKey, cfg.Model, opts...)
	default:
		var opts []anyllmlib.Option
		if cfg.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
		}
		p, err = anyllm.New(cfg.Provider, cfg.Model, opts...)
	}
	if err != nil {
		slog.Warn("failed to create reply model — replies will echo your words",
			"provider", cfg.Provider, "err", err)
		return resilience.Echo{}
	}
	slog.Info("reply model ready", "provider", cfg.Provider, "model", cfg.Model)
	return resilience.NewLLMFallback(p)
}

// probeHTTP returns a readiness probe that checks url answers HTTP at all.
func probeHTTP(url string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
