package call_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/feralbyte/kindred/internal/call"
	"github.com/feralbyte/kindred/internal/observe"
	"github.com/feralbyte/kindred/internal/segment"
	"github.com/feralbyte/kindred/pkg/audio"
	audiomock "github.com/feralbyte/kindred/pkg/audio/mock"
	"github.com/feralbyte/kindred/pkg/memory"
	memmock "github.com/feralbyte/kindred/pkg/memory/mock"
	llmmock "github.com/feralbyte/kindred/pkg/provider/llm/mock"
	sttmock "github.com/feralbyte/kindred/pkg/provider/stt/mock"
	"github.com/feralbyte/kindred/pkg/provider/tts"
	ttsmock "github.com/feralbyte/kindred/pkg/provider/tts/mock"
	vadmock "github.com/feralbyte/kindred/pkg/provider/vad/mock"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// testMetrics returns an isolated Metrics instance so tests do not pollute
// the global meter provider.
func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

// frame builds a 30ms frame at 16kHz with constant sample value v.
func frame(v float32) audio.Frame {
	samples := make([]float32, 480)
	for i := range samples {
		samples[i] = v
	}
	return audio.Frame{Samples: samples, SampleRate: 16000}
}

// waitFor polls cond until it holds or a deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

// fixture bundles a session with the doubles behind it.
type fixture struct {
	src     *audiomock.Source
	det     *vadmock.Detector
	scriber *sttmock.Transcriber
	llm     *llmmock.Provider
	synth   *ttsmock.Synthesizer
	dev     *audiomock.Device
	store   *memmock.Store
	session *call.Session
}

// newFixture wires a session around mocks with a fast 40ms silence timeout.
// mutate runs before the session is created so tests can adjust the config.
func newFixture(t *testing.T, mutate func(*call.Config)) *fixture {
	t.Helper()

	f := &fixture{
		src:     audiomock.NewSource(64),
		det:     &vadmock.Detector{},
		scriber: &sttmock.Transcriber{},
		llm:     &llmmock.Provider{},
		synth:   &ttsmock.Synthesizer{},
		dev:     audiomock.NewDevice(),
		store:   &memmock.Store{},
	}

	met := testMetrics(t)
	seg := segment.New(f.src, f.det, f.scriber,
		segment.WithSilenceTimeout(40*time.Millisecond),
		segment.WithPollInterval(10*time.Millisecond),
		segment.WithMetrics(met),
	)
	cfg := call.Config{
		Segmenter:  seg,
		LLM:        f.llm,
		Synth:      f.synth,
		Player:     audio.NewPlayer(f.dev),
		Memory:     f.store,
		SpeakerWav: "ref.wav",
		Language:   "en",
		Metrics:    met,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	var err error
	f.session, err = call.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

// speak pushes a single speech frame; the silence timeout finalises it.
func (f *fixture) speak() {
	f.src.Push(frame(0.5))
}

func TestTurnUsesRetrievedMemories(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.det.Results = []bool{true}
	f.scriber.Default = "what is my dog's name"
	f.store.QueryResults = []memory.Result{
		{Item: memory.Item{Text: "The user's dog is named Biscuit."}, Distance: 0.1},
	}
	f.llm.Responses = []string{"Your dog is named Biscuit!"}

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.session.Stop()

	f.speak()
	waitFor(t, func() bool { return len(f.synth.Calls()) == 1 })

	// The LLM saw the default persona and the memory-augmented utterance.
	calls := f.llm.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(calls))
	}
	req := calls[0].Req
	if !strings.Contains(req.SystemPrompt, "caring, concise AI friend") {
		t.Errorf("unexpected system prompt %q", req.SystemPrompt)
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" {
		t.Errorf("expected final message from user, got %q", last.Role)
	}
	if !strings.Contains(last.Content, "what is my dog's name") {
		t.Errorf("utterance missing from prompt: %q", last.Content)
	}
	if !strings.Contains(last.Content, "Relevant memories:\n- The user's dog is named Biscuit.") {
		t.Errorf("memory augmentation missing from prompt: %q", last.Content)
	}

	// Retrieval used the configured top-k default.
	queries := f.store.Queries()
	if len(queries) != 1 || queries[0].TopK != 3 || queries[0].Text != "what is my dog's name" {
		t.Errorf("unexpected memory queries %+v", queries)
	}

	// The reply was synthesised with the cloning reference and played.
	synthCall := f.synth.Calls()[0]
	if synthCall.Req.Text != "Your dog is named Biscuit!" {
		t.Errorf("unexpected synthesis text %q", synthCall.Req.Text)
	}
	if synthCall.Req.SpeakerWav != "ref.wav" || synthCall.Req.Language != "en" {
		t.Errorf("voice settings not forwarded: %+v", synthCall.Req)
	}
	waitFor(t, func() bool { return len(f.dev.WrittenSamples()) > 0 })

	// The utterance was persisted as a memory.
	waitFor(t, func() bool { return len(f.store.Adds()) == 1 })
	if f.store.Adds()[0].Text != "what is my dog's name" {
		t.Errorf("unexpected stored memory %+v", f.store.Adds()[0])
	}

	// Both sides of the turn are in the history.
	hist := f.session.History()
	if len(hist) != 2 {
		t.Fatalf("expected 2 history turns, got %d", len(hist))
	}
	if hist[0].Role != "user" || hist[0].Text != "what is my dog's name" {
		t.Errorf("unexpected user turn %+v", hist[0])
	}
	if hist[1].Role != "assistant" || hist[1].Text != "Your dog is named Biscuit!" {
		t.Errorf("unexpected assistant turn %+v", hist[1])
	}
}

func TestHistoryWindowBounded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *call.Config) {
		cfg.HistoryTurns = 2
		cfg.Memory = nil
	})
	f.det.Results = []bool{true, false, false, true, false, false, true}
	f.scriber.Results = []string{"turn one", "turn two", "turn three"}
	f.llm.Responses = []string{"reply one", "reply two", "reply three"}

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.session.Stop()

	for range 3 {
		f.speak()
		for range 2 {
			time.Sleep(20 * time.Millisecond)
			f.src.Push(frame(0))
		}
		time.Sleep(60 * time.Millisecond)
	}
	waitFor(t, func() bool { return len(f.llm.Calls()) == 3 })

	// The third completion replays only the two most recent prior turns,
	// oldest first, before the current utterance.
	msgs := f.llm.Calls()[2].Req.Messages
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != "user" || msgs[0].Content != "turn two" {
		t.Errorf("unexpected windowed message %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "reply two" {
		t.Errorf("unexpected windowed message %+v", msgs[1])
	}
	if msgs[2].Role != "user" || msgs[2].Content != "turn three" {
		t.Errorf("unexpected current message %+v", msgs[2])
	}
}

func TestLLMFailureFallsBackToEcho(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.det.Results = []bool{true}
	f.scriber.Default = "hello there"
	f.llm.CompleteErr = errors.New("model unavailable")

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.session.Stop()

	f.speak()
	waitFor(t, func() bool { return len(f.synth.Calls()) == 1 })

	want := "I heard you say: 'hello there'."
	if got := f.synth.Calls()[0].Req.Text; got != want {
		t.Errorf("expected fallback reply %q, got %q", want, got)
	}
	hist := f.session.History()
	if len(hist) != 2 || hist[1].Text != want {
		t.Errorf("fallback reply missing from history: %+v", hist)
	}
}

func TestMemoryQueryFailureStillReplies(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.det.Results = []bool{true}
	f.scriber.Default = "how are you"
	f.store.QueryErr = errors.New("vector index offline")
	f.llm.Responses = []string{"Doing great!"}

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.session.Stop()

	f.speak()
	waitFor(t, func() bool { return len(f.synth.Calls()) == 1 })

	// No augmentation when retrieval fails, but the turn still completes.
	last := f.llm.Calls()[0].Req.Messages[0]
	if last.Content != "how are you" {
		t.Errorf("expected unaugmented utterance, got %q", last.Content)
	}
	if f.synth.Calls()[0].Req.Text != "Doing great!" {
		t.Errorf("unexpected reply %q", f.synth.Calls()[0].Req.Text)
	}
}

func TestSynthesisFailureIsTurnScoped(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *call.Config) {
		cfg.Memory = nil
	})
	f.det.Results = []bool{true, false, false, true}
	f.scriber.Results = []string{"first", "second"}
	f.llm.Responses = []string{"reply one", "reply two"}
	f.synth.SynthesizeErr = errors.New("tts server down")

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.session.Stop()

	for range 2 {
		f.speak()
		for range 2 {
			time.Sleep(20 * time.Millisecond)
			f.src.Push(frame(0))
		}
		time.Sleep(60 * time.Millisecond)
	}
	waitFor(t, func() bool { return len(f.llm.Calls()) == 2 })

	// Nothing was played, but both turns made it into the history.
	if got := len(f.dev.WrittenSamples()); got != 0 {
		t.Errorf("expected no playback, got %d samples", got)
	}
	if hist := f.session.History(); len(hist) != 4 {
		t.Errorf("expected 4 history turns, got %d", len(hist))
	}
}

func TestBargeInCutsPlayback(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *call.Config) {
		cfg.Memory = nil
	})
	f.det.Results = []bool{true, false, false, false, true}
	f.scriber.Default = "talk to me"
	f.llm.Default = "A very long winded answer."
	// Ten seconds of audio rendered through a slow device keeps playback
	// in flight while the user starts speaking again.
	f.synth.Result = &tts.SynthesisResult{
		Samples:    make([]float32, 160000),
		SampleRate: 16000,
		Duration:   10 * time.Second,
	}
	f.dev.WriteDelay = 20 * time.Millisecond

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer f.session.Stop()

	f.speak()
	// Wait until the reply is actually rendering.
	waitFor(t, func() bool { return len(f.dev.WrittenSamples()) > 0 })

	// Silence keeps the detector script aligned, then speech barges in.
	for range 3 {
		f.src.Push(frame(0))
		time.Sleep(15 * time.Millisecond)
	}
	f.speak()

	waitFor(t, func() bool { return f.dev.AbortCount() >= 1 })
}

func TestStartStopIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	ctx := context.Background()
	if err := f.session.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.session.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	f.session.Stop()
	f.session.Stop()

	if f.src.StartCallCount != 1 {
		t.Errorf("expected 1 source start, got %d", f.src.StartCallCount)
	}
	if f.src.StopCallCount != 1 {
		t.Errorf("expected 1 source stop, got %d", f.src.StopCallCount)
	}
	if hist := f.session.History(); len(hist) != 0 {
		t.Errorf("expected empty history, got %+v", hist)
	}
}
