// Package coqui implements tts.Synthesizer against a Coqui XTTS v2 API
// server. Synthesis goes via POST /tts_to_audio/ with a JSON body; the server
// answers with a WAV container that is decoded and optionally resampled to
// the requested output rate.
//
// XTTS clones the voice from a short reference recording: every request
// carries the path to a speaker WAV, which the server reads to condition the
// synthesised voice.
package coqui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/feralbyte/kindred/pkg/audio"
	"github.com/feralbyte/kindred/pkg/provider/tts"
)

const (
	ttsEndpoint     = "/tts_to_audio/"
	defaultLanguage = "en"
	defaultTimeout  = 60 * time.Second
)

// Synthesizer implements tts.Synthesizer using a Coqui XTTS v2 server.
type Synthesizer struct {
	serverURL  string
	language   string
	httpClient *http.Client
}

// Option is a functional option for Synthesizer.
type Option func(*Synthesizer)

// WithLanguage sets the default BCP-47 language tag used when a request does
// not specify one. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(s *Synthesizer) { s.language = lang }
}

// WithTimeout sets the per-request HTTP timeout. XTTS inference on CPU can
// take tens of seconds for long replies; defaults to 60s.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) { s.httpClient.Timeout = d }
}

// WithHTTPClient replaces the HTTP client entirely. Mostly useful in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Synthesizer) { s.httpClient = c }
}

// New creates a Synthesizer that talks to the XTTS server at serverURL
// (e.g., "http://localhost:8020").
func New(serverURL string, opts ...Option) (*Synthesizer, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("coqui: serverURL must not be empty")
	}
	s := &Synthesizer{
		serverURL:  serverURL,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// ttsRequest is the JSON body sent to POST /tts_to_audio/.
type ttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// Synthesize performs a single POST /tts_to_audio/ call and decodes the WAV
// response. The speaker reference is checked locally before the request so a
// missing recording fails fast with ErrSpeakerRefMissing.
func (s *Synthesizer) Synthesize(ctx context.Context, req tts.SynthesisRequest) (*tts.SynthesisResult, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("coqui: text must not be empty")
	}
	if req.SpeakerWav != "" {
		if _, err := os.Stat(req.SpeakerWav); err != nil {
			return nil, fmt.Errorf("coqui: %q: %w", req.SpeakerWav, tts.ErrSpeakerRefMissing)
		}
	}

	lang := req.Language
	if lang == "" {
		lang = s.language
	}
	body := ttsRequest{
		Text:       req.Text,
		SpeakerWav: req.SpeakerWav,
		Language:   lang,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("coqui: marshal tts request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+ttsEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("coqui: create tts request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("coqui: POST %s: %w", ttsEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coqui: POST %s returned status %d", ttsEndpoint, resp.StatusCode)
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("coqui: read WAV response: %w", err)
	}

	samples, rate, err := audio.DecodeWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("coqui: decode WAV response: %w", err)
	}
	if req.SampleRate > 0 && rate != req.SampleRate {
		samples = audio.Resample(samples, rate, req.SampleRate)
		rate = req.SampleRate
	}

	return &tts.SynthesisResult{
		Samples:    samples,
		SampleRate: rate,
		Duration:   time.Duration(len(samples)) * time.Second / time.Duration(rate),
	}, nil
}

// Compile-time assertion that Synthesizer satisfies tts.Synthesizer.
var _ tts.Synthesizer = (*Synthesizer)(nil)
