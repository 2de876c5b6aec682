// Package call orchestrates a live voice conversation: it consumes utterance
// events from the segmenter, generates a personalised reply through memory
// retrieval and the LLM, speaks the reply through the playback sink, and cuts
// playback short the moment the user starts talking again.
package call

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/feralbyte/kindred/internal/notify"
	"github.com/feralbyte/kindred/internal/observe"
	"github.com/feralbyte/kindred/internal/resilience"
	"github.com/feralbyte/kindred/internal/segment"
	"github.com/feralbyte/kindred/pkg/audio"
	"github.com/feralbyte/kindred/pkg/memory"
	"github.com/feralbyte/kindred/pkg/provider/llm"
	"github.com/feralbyte/kindred/pkg/provider/tts"
)

const (
	// defaultSystemPrompt frames every reply.
	defaultSystemPrompt = "You are a caring, concise AI friend. Personalize replies based on prior memories."

	defaultHistoryTurns = 6
	defaultMemoryTopK   = 3
)

// Turn is one entry in the conversation history.
type Turn struct {
	// Role is "user" or "assistant".
	Role string

	// Text is what was said.
	Text string
}

// Config assembles a Session's collaborators. Segmenter, LLM, Synth, and
// Player are required; the rest default sensibly.
type Config struct {
	Segmenter *segment.Segmenter
	LLM       llm.Provider
	Synth     tts.Synthesizer
	Player    *audio.Player
	Memory    memory.Store

	// SpeakerWav is the voice-cloning reference passed to every synthesis.
	SpeakerWav string

	// Language is the synthesis language tag.
	Language string

	// SystemPrompt overrides the default reply framing.
	SystemPrompt string

	// HistoryTurns bounds how many recent turns are replayed to the LLM.
	// Zero means the default of 6.
	HistoryTurns int

	// MemoryTopK is how many retrieved memories augment each prompt.
	// Zero means the default of 3.
	MemoryTopK int

	// Temperature, TopP, and MaxTokens are forwarded to the LLM.
	Temperature float64
	TopP        float64
	MaxTokens   int

	Metrics  *observe.Metrics
	Logger   *slog.Logger
	Notifier *notify.Notifier
}

// Session is a single voice call. Create with New, drive with Start/Stop.
type Session struct {
	cfg Config

	mu      sync.Mutex
	started bool
	history []Turn
	wg      sync.WaitGroup
	memWG   sync.WaitGroup
}

// New creates a Session from cfg.
func New(cfg Config) (*Session, error) {
	if cfg.Segmenter == nil {
		return nil, fmt.Errorf("call: segmenter is required")
	}
	if cfg.LLM == nil {
		return nil, fmt.Errorf("call: llm provider is required")
	}
	if cfg.Synth == nil {
		return nil, fmt.Errorf("call: synthesizer is required")
	}
	if cfg.Player == nil {
		return nil, fmt.Errorf("call: player is required")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.HistoryTurns == 0 {
		cfg.HistoryTurns = defaultHistoryTurns
	}
	if cfg.MemoryTopK == 0 {
		cfg.MemoryTopK = defaultMemoryTopK
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{cfg: cfg}, nil
}

// Start begins the call. Calling Start on a running Session is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if err := s.cfg.Segmenter.Start(ctx); err != nil {
		return fmt.Errorf("call: start segmenter: %w", err)
	}
	s.started = true
	s.cfg.Metrics.ActiveCalls.Add(ctx, 1)
	s.cfg.Notifier.Send("Call started", "Listening for speech.")
	s.cfg.Logger.Info("call started", "model", s.cfg.LLM.ModelID())

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Stop ends the call: segmentation halts, buffered utterances are drained,
// any active playback is cut, and in-flight memory writes are allowed to
// finish. Safe to call multiple times and before Start.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	// Stopping the segmenter closes its event channel, which lets the run
	// loop drain any pending utterance before exiting.
	s.cfg.Segmenter.Stop()
	s.wg.Wait()
	s.cfg.Player.Stop()
	s.memWG.Wait()

	s.cfg.Metrics.ActiveCalls.Add(context.Background(), -1)
	s.cfg.Notifier.Send("Call ended", "")
	s.cfg.Logger.Info("call ended", "turns", len(s.History()))
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// run is the event loop consuming segmenter events until shutdown.
func (s *Session) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.cfg.Segmenter.Events():
			if !ok {
				return
			}
			switch ev.Type {
			case segment.EventSpeechStart:
				// The user talking over the assistant wins instantly.
				if s.cfg.Player.Stop() {
					s.cfg.Metrics.BargeIns.Add(ctx, 1)
					s.cfg.Logger.Info("playback interrupted by user speech")
				}
			case segment.EventUtterance:
				s.handleUtterance(ctx, ev.Text)
			}
		}
	}
}

// handleUtterance runs one full conversation turn for the transcribed text.
func (s *Session) handleUtterance(ctx context.Context, text string) {
	s.cfg.Logger.Info("utterance transcribed", "text", text)

	// A finalized utterance preempts whatever is still rendering, even when
	// the speech-onset event never reached us.
	if s.cfg.Player.Stop() {
		s.cfg.Metrics.BargeIns.Add(ctx, 1)
	}

	s.appendTurn(Turn{Role: "user", Text: text})
	s.rememberAsync(text)

	memories := s.retrieveMemories(ctx, text)
	reply := s.generateReply(ctx, text, memories)
	s.appendTurn(Turn{Role: "assistant", Text: reply})
	s.cfg.Logger.Info("reply generated", "text", reply)

	s.speak(ctx, reply)
}

// appendTurn records a turn in the conversation history.
func (s *Session) appendTurn(t Turn) {
	s.mu.Lock()
	s.history = append(s.history, t)
	s.mu.Unlock()
}

// rememberAsync stores the utterance as a long-term memory without blocking
// the turn. Failures are logged and counted, never surfaced.
func (s *Session) rememberAsync(text string) {
	if s.cfg.Memory == nil {
		return
	}
	s.memWG.Add(1)
	go func() {
		defer s.memWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := s.cfg.Memory.Add(ctx, text, map[string]string{"source": "call"}); err != nil {
			s.cfg.Logger.Warn("storing memory failed", "error", err)
			s.cfg.Metrics.RecordMemoryOp(ctx, "add", "error")
			return
		}
		s.cfg.Metrics.RecordMemoryOp(ctx, "add", "ok")
	}()
}

// retrieveMemories fetches the memories most similar to text. Retrieval
// failures degrade to an empty result; the reply just loses personalisation.
func (s *Session) retrieveMemories(ctx context.Context, text string) []string {
	if s.cfg.Memory == nil {
		return nil
	}
	hits, err := s.cfg.Memory.Query(ctx, text, s.cfg.MemoryTopK)
	if err != nil {
		s.cfg.Logger.Warn("memory retrieval failed", "error", err)
		s.cfg.Metrics.RecordMemoryOp(ctx, "query", "error")
		return nil
	}
	s.cfg.Metrics.RecordMemoryOp(ctx, "query", "ok")
	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Item.Text)
	}
	return texts
}

// generateReply builds the prompt and calls the LLM. Any LLM failure yields
// the deterministic echo fallback so the turn still produces speech.
func (s *Session) generateReply(ctx context.Context, utterance string, memories []string) string {
	req := llm.CompletionRequest{
		SystemPrompt: s.cfg.SystemPrompt,
		Messages:     s.buildMessages(utterance, memories),
		Temperature:  s.cfg.Temperature,
		TopP:         s.cfg.TopP,
		MaxTokens:    s.cfg.MaxTokens,
	}

	start := time.Now()
	resp, err := s.cfg.LLM.Complete(ctx, req)
	s.cfg.Metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.cfg.Logger.Warn("reply generation failed", "model", s.cfg.LLM.ModelID(), "error", err)
		s.cfg.Metrics.RecordProviderError(ctx, "llm")
		return resilience.FallbackText(utterance)
	}
	return resp.Content
}

// buildMessages assembles the bounded history plus the memory-augmented
// current utterance. The utterance itself is already the last history entry,
// so the window excludes it before appending the augmented form.
func (s *Session) buildMessages(utterance string, memories []string) []llm.Message {
	s.mu.Lock()
	prior := s.history[:len(s.history)-1]
	window := prior
	if len(window) > s.cfg.HistoryTurns {
		window = window[len(window)-s.cfg.HistoryTurns:]
	}
	msgs := make([]llm.Message, 0, len(window)+1)
	for _, t := range window {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Text})
	}
	s.mu.Unlock()

	content := utterance
	if len(memories) > 0 {
		var b strings.Builder
		b.WriteString(utterance)
		b.WriteString("\n\nRelevant memories:\n")
		for _, m := range memories {
			b.WriteString("- ")
			b.WriteString(m)
			b.WriteString("\n")
		}
		content = strings.TrimRight(b.String(), "\n")
	}
	return append(msgs, llm.Message{Role: "user", Content: content})
}

// speak synthesises reply and hands it to the player. Synthesis failures are
// turn-scoped: the reply text is already in the history, the user just hears
// nothing for this turn.
func (s *Session) speak(ctx context.Context, reply string) {
	if reply == "" {
		return
	}
	start := time.Now()
	res, err := s.cfg.Synth.Synthesize(ctx, tts.SynthesisRequest{
		Text:       reply,
		SpeakerWav: s.cfg.SpeakerWav,
		Language:   s.cfg.Language,
	})
	s.cfg.Metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.cfg.Logger.Warn("speech synthesis failed", "error", err)
		s.cfg.Metrics.RecordProviderError(ctx, "tts")
		return
	}

	if err := s.cfg.Player.Play(audio.PlaybackRequest{
		Samples:    res.Samples,
		SampleRate: res.SampleRate,
	}); err != nil {
		s.cfg.Logger.Warn("playback failed", "error", err)
	}
}
