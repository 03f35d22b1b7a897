package tts

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Edge read-aloud endpoint. The trusted client token is the public
// constant the Edge browser itself presents.
const (
	edgeWSEndpoint   = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	edgeTrustedToken = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	edgeOutputFormat = "audio-24khz-48kbitrate-mono-mp3"
	edgeOrigin       = "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold"
	edgeUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 Edg/122.0.0.0"
)

// EdgeConfig holds Edge TTS configuration.
type EdgeConfig struct {
	Endpoint string        `json:"endpoint"` // Defaults to the public read-aloud endpoint
	Voice    string        `json:"voice"`    // Overrides per-language voice selection
	Rate     string        `json:"rate"`
	Timeout  time.Duration `json:"timeout"`
}

// EdgeProvider synthesizes speech over the Edge read-aloud websocket
// protocol and writes MP3 artifacts. One connection serves one turn.
type EdgeProvider struct {
	config EdgeConfig
	store  *ArtifactStore
	dialer *websocket.Dialer
	logger zerolog.Logger
}

// NewEdgeProvider creates an Edge TTS provider writing into store.
func NewEdgeProvider(logger zerolog.Logger, store *ArtifactStore, config EdgeConfig) *EdgeProvider {
	if config.Endpoint == "" {
		config.Endpoint = edgeWSEndpoint
	}
	if config.Rate == "" {
		config.Rate = DefaultRate
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &EdgeProvider{
		config: config,
		store:  store,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger.With().Str("provider", "edge").Logger(),
	}
}

// Name returns the provider identifier.
func (p *EdgeProvider) Name() string {
	return "edge"
}

func (p *EdgeProvider) dial(ctx context.Context) (*websocket.Conn, error) {
	connID := strings.ReplaceAll(uuid.NewString(), "-", "")
	url := fmt.Sprintf("%s?TrustedClientToken=%s&ConnectionId=%s", p.config.Endpoint, edgeTrustedToken, connID)

	header := http.Header{}
	header.Set("Origin", edgeOrigin)
	header.Set("User-Agent", edgeUserAgent)

	conn, _, err := p.dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return conn, nil
}

// Synthesize runs one read-aloud turn and saves the MP3 artifact.
func (p *EdgeProvider) Synthesize(ctx context.Context, req *SynthesizeRequest) (*SynthesizeResult, error) {
	startTime := time.Now()

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, ErrEmptyText
	}

	language, voice := resolveVoice(req, p.config.Voice)
	rate := req.Rate
	if rate == "" {
		rate = p.config.Rate
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	conn, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(p.config.Timeout))

	configMsg := fmt.Sprintf("X-Timestamp:%s\r\nContent-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n"+
		`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"%s"}}}}`,
		edgeTimestamp(), edgeOutputFormat)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(configMsg)); err != nil {
		return nil, fmt.Errorf("send speech config: %w", err)
	}

	reqID := strings.ReplaceAll(uuid.NewString(), "-", "")
	ssmlMsg := fmt.Sprintf("X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nX-Timestamp:%s\r\nPath:ssml\r\n\r\n%s",
		reqID, edgeTimestamp(), buildSSML(text, voice, rate))
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssmlMsg)); err != nil {
		return nil, fmt.Errorf("send ssml: %w", err)
	}

	var audio bytes.Buffer
readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read edge stream: %w", err)
		}
		switch msgType {
		case websocket.TextMessage:
			if strings.Contains(string(data), "Path:turn.end") {
				break readLoop
			}
		case websocket.BinaryMessage:
			audio.Write(audioPayload(data))
		}
	}

	if audio.Len() == 0 {
		return nil, ErrNoAudio
	}

	path, err := p.store.Save(audio.Bytes(), "mp3")
	if err != nil {
		return nil, err
	}

	processingTime := time.Since(startTime)
	p.logger.Info().
		Str("voice", voice).
		Str("language", language).
		Int("bytes", audio.Len()).
		Dur("time", processingTime).
		Msg("Synthesis complete")

	return &SynthesizeResult{
		AudioPath:      path,
		Voice:          voice,
		Language:       language,
		Format:         "mp3",
		ProcessingTime: processingTime,
	}, nil
}

// audioPayload extracts the MP3 bytes from one binary frame: a
// big-endian header length, the header block, then the payload. Frames
// whose header is not an audio path are skipped. The \r\n suffix keeps
// audio.metadata frames out.
func audioPayload(frame []byte) []byte {
	if len(frame) < 2 {
		return nil
	}
	headerLen := int(binary.BigEndian.Uint16(frame[:2]))
	if len(frame) < 2+headerLen {
		return nil
	}
	if !strings.Contains(string(frame[2:2+headerLen]), "Path:audio\r\n") {
		return nil
	}
	return frame[2+headerLen:]
}

func buildSSML(text, voice, rate string) string {
	return fmt.Sprintf("<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='%s'>"+
		"<voice name='%s'><prosody pitch='+0Hz' rate='%s' volume='+0%%'>%s</prosody></voice></speak>",
		localeFromVoice(voice), voice, rate, html.EscapeString(text))
}

// localeFromVoice derives the SSML locale from a voice name like
// zh-CN-XiaoyiNeural.
func localeFromVoice(voice string) string {
	parts := strings.SplitN(voice, "-", 3)
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return "en-US"
}

// edgeTimestamp renders the JS-style clock string the service expects.
func edgeTimestamp() string {
	return time.Now().UTC().Format("Mon Jan 02 2006 15:04:05") + " GMT+0000 (Coordinated Universal Time)"
}

// Health dials the endpoint and hangs up.
func (p *EdgeProvider) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	conn, err := p.dial(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}
