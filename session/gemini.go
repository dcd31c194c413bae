package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"nhooyr.io/websocket"
)

const (
	geminiEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
	geminiModel    = "models/gemini-live-2.5-flash-preview"
)

type geminiSetup struct {
	Setup struct {
		Model            string `json:"model"`
		GenerationConfig struct {
			ResponseModalities []string `json:"responseModalities"`
		} `json:"generationConfig"`
		SystemInstruction *struct {
			Parts []geminiPart `json:"parts"`
		} `json:"systemInstruction,omitempty"`
		InputAudioTranscription struct{} `json:"inputAudioTranscription"`
	} `json:"setup"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiRealtimeInput struct {
	RealtimeInput struct {
		Audio *geminiInlineData `json:"audio,omitempty"`
		Text  string            `json:"text,omitempty"`
	} `json:"realtimeInput"`
}

type geminiClientContent struct {
	ClientContent struct {
		Turns []struct {
			Role  string       `json:"role"`
			Parts []geminiPart `json:"parts"`
		} `json:"turns"`
		TurnComplete bool `json:"turnComplete"`
	} `json:"clientContent"`
}

type geminiServerMessage struct {
	SetupComplete *struct{} `json:"setupComplete"`
	ServerContent *struct {
		InputTranscription *struct {
			Text string `json:"text"`
		} `json:"inputTranscription"`
		ModelTurn *struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"modelTurn"`
		GenerationComplete bool `json:"generationComplete"`
		TurnComplete       bool `json:"turnComplete"`
	} `json:"serverContent"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// geminiBackend streams audio and prompts over the Gemini Live API.
type geminiBackend struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	ev     Events

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// ConnectGemini opens a Gemini Live session and completes the setup
// handshake before returning.
func ConnectGemini(p Params, ev Events) (Backend, error) {
	endpoint, err := url.Parse(geminiEndpoint)
	if err != nil {
		return nil, err
	}
	q := endpoint.Query()
	q.Set("key", p.APIKey)
	endpoint.RawQuery = q.Encode()

	ctx, cancel := context.WithCancel(context.Background())
	conn, _, err := websocket.Dial(ctx, endpoint.String(), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	conn.SetReadLimit(1 << 22)

	b := &geminiBackend{conn: conn, ctx: ctx, cancel: cancel, ev: ev}

	var setup geminiSetup
	setup.Setup.Model = geminiModel
	setup.Setup.GenerationConfig.ResponseModalities = []string{"TEXT"}
	if prompt := buildSystemPrompt(p); prompt != "" {
		setup.Setup.SystemInstruction = &struct {
			Parts []geminiPart `json:"parts"`
		}{Parts: []geminiPart{{Text: prompt}}}
	}
	if err := b.writeJSON(setup); err != nil {
		b.Close()
		return nil, err
	}

	// The first server frame acknowledges setup or reports a failure.
	_, data, err := conn.Read(ctx)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("gemini setup: %w", err)
	}
	var first geminiServerMessage
	if err := json.Unmarshal(data, &first); err != nil {
		b.Close()
		return nil, fmt.Errorf("gemini setup: %w", err)
	}
	if first.Error != nil {
		b.Close()
		return nil, fmt.Errorf("gemini setup: %s", first.Error.Message)
	}
	if first.SetupComplete == nil {
		b.dispatch(first)
	}

	go b.readLoop()
	return b, nil
}

func buildSystemPrompt(p Params) string {
	var b strings.Builder
	b.WriteString("You are a live conversation assistant. Answer concisely and helpfully.")
	if p.Profile != "" {
		fmt.Fprintf(&b, " Conversation type: %s.", p.Profile)
	}
	if p.Language != "" {
		fmt.Fprintf(&b, " Respond in %s.", p.Language)
	}
	if p.CustomPrompt != "" {
		b.WriteString("\n\n")
		b.WriteString(p.CustomPrompt)
	}
	return b.String()
}

func (b *geminiBackend) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.conn.Write(b.ctx, websocket.MessageText, data)
}

func (b *geminiBackend) SendAudio(data []byte, mime string) error {
	var msg geminiRealtimeInput
	msg.RealtimeInput.Audio = &geminiInlineData{
		MimeType: mime,
		Data:     base64.StdEncoding.EncodeToString(data),
	}
	return b.writeJSON(msg)
}

func (b *geminiBackend) SendText(text, role string) error {
	if role == "" {
		role = "user"
	}
	var msg geminiClientContent
	msg.ClientContent.Turns = append(msg.ClientContent.Turns, struct {
		Role  string       `json:"role"`
		Parts []geminiPart `json:"parts"`
	}{Role: role, Parts: []geminiPart{{Text: text}}})
	msg.ClientContent.TurnComplete = true
	return b.writeJSON(msg)
}

func (b *geminiBackend) SendImage(data []byte, mime string) error {
	var msg geminiClientContent
	msg.ClientContent.Turns = append(msg.ClientContent.Turns, struct {
		Role  string       `json:"role"`
		Parts []geminiPart `json:"parts"`
	}{Role: "user", Parts: []geminiPart{{InlineData: &geminiInlineData{
		MimeType: mime,
		Data:     base64.StdEncoding.EncodeToString(data),
	}}}})
	msg.ClientContent.TurnComplete = true
	return b.writeJSON(msg)
}

func (b *geminiBackend) readLoop() {
	for {
		_, data, err := b.conn.Read(b.ctx)
		if err != nil {
			if b.ev.OnClose != nil {
				b.ev.OnClose(err.Error())
			}
			return
		}
		var msg geminiServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		b.dispatch(msg)
	}
}

func (b *geminiBackend) dispatch(msg geminiServerMessage) {
	if msg.Error != nil && b.ev.OnError != nil {
		b.ev.OnError(msg.Error.Message)
	}
	sc := msg.ServerContent
	if sc == nil {
		return
	}
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" && b.ev.OnTranscription != nil {
		b.ev.OnTranscription(sc.InputTranscription.Text)
	}
	if sc.ModelTurn != nil && b.ev.OnResponseFragment != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.Text != "" {
				b.ev.OnResponseFragment(p.Text)
			}
		}
	}
	if sc.GenerationComplete && b.ev.OnResponseComplete != nil {
		b.ev.OnResponseComplete()
	}
	if sc.TurnComplete && b.ev.OnTurnComplete != nil {
		b.ev.OnTurnComplete()
	}
}

func (b *geminiBackend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.cancel()
		err = b.conn.Close(websocket.StatusNormalClosure, "")
	})
	return err
}
