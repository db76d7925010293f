package planner

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/creastat/voicedesk/catalog"
	"github.com/creastat/voicedesk/session"
)

// Defaults for the OpenAI-compatible planner.
const (
	DefaultModel           = "gpt-4o-mini"
	DefaultTemperature     = 0.2
	DefaultHistoryMessages = 6
	DefaultHistoryTokens   = 1500
)

const noSpeech = "(no speech captured)"

// OpenAIConfig holds OpenAI-compatible client configuration
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	// Temperature nil means DefaultTemperature; 0 is sent as an explicit zero.
	Temperature     *float64
	HistoryMessages int
	HistoryTokens   int
}

// OpenAIPlanner asks an OpenAI-compatible chat completion endpoint for a
// JSON turn plan.
type OpenAIPlanner struct {
	client       *openai.Client
	model        string
	temperature  float32
	historyMsgs  int
	historyToks  int
	business     *catalog.Business
	systemPrompt string
}

// NewOpenAIPlanner creates a planner for business b.
func NewOpenAIPlanner(cfg OpenAIConfig, b *catalog.Business) (*OpenAIPlanner, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		if *cfg.Temperature < 0 || *cfg.Temperature > 2 {
			return nil, errors.Errorf("temperature %.2f out of range [0, 2]", *cfg.Temperature)
		}
		temperature = *cfg.Temperature
	}
	if cfg.HistoryMessages <= 0 {
		cfg.HistoryMessages = DefaultHistoryMessages
	}
	if cfg.HistoryTokens <= 0 {
		cfg.HistoryTokens = DefaultHistoryTokens
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &OpenAIPlanner{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.Model,
		temperature:  wireTemperature(temperature),
		historyMsgs:  cfg.HistoryMessages,
		historyToks:  cfg.HistoryTokens,
		business:     b,
		systemPrompt: SystemPrompt(b),
	}, nil
}

// wireTemperature maps 0 to the smallest float32, since the client omits a
// zero temperature and the API would then apply its own default.
func wireTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// contextView is the CONTEXT object shown to the model.
type contextView struct {
	Caller         string   `json:"caller"`
	ActivePipeline string   `json:"active_pipeline"`
	Objective      string   `json:"objective"`
	MissingFields  []string `json:"missing_fields"`
	AwaitMore      bool     `json:"await_more"`
	ASRConfidence  float64  `json:"asr_confidence"`
	TTSLang        string   `json:"tts_lang"`
	STTLang        string   `json:"stt_lang"`
	Name           *string  `json:"name"`
	Phone          *string  `json:"phone"`
	Address        *string  `json:"address"`
	Service        *string  `json:"service"`
	When           *string  `json:"when"`
	OrderItem      *string  `json:"order_item"`
	OrderQty       *int     `json:"order_qty"`
	ComputedTotal  *float64 `json:"computed_total"`
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func newContextView(req Request) contextView {
	c := req.Context
	caller := req.CallerID
	if caller == "" {
		caller = "unknown"
	}
	missing := req.Missing
	if missing == nil {
		missing = []string{}
	}
	v := contextView{
		Caller:         caller,
		ActivePipeline: c.Dialogue.Active().String(),
		Objective:      req.Objective,
		MissingFields:  missing,
		AwaitMore:      c.Dialogue.AwaitingMore(),
		ASRConfidence:  c.ASRConfidence,
		TTSLang:        c.TTSLang,
		STTLang:        c.STTLang,
		Name:           optString(c.Name),
		Phone:          optString(c.Phone),
		Address:        optString(c.Address),
		Service:        optString(c.Service),
		When:           optString(c.When),
		OrderItem:      optString(c.OrderItem),
		ComputedTotal:  c.ComputedTotal,
	}
	if c.OrderQty > 0 {
		qty := c.OrderQty
		v.OrderQty = &qty
	}
	return v
}

// messages builds the prompt: instructions, CONTEXT, recent history, utterance.
func (p *OpenAIPlanner) messages(req Request) ([]openai.ChatCompletionMessage, error) {
	ctxJSON, err := json.MarshalIndent(newContextView(req), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal planner context")
	}
	history := session.TruncateHistory(req.History, p.historyToks, p.historyMsgs)

	system := p.systemPrompt
	if req.Menu != nil {
		b := *p.business
		b.Menu = req.Menu
		system = SystemPrompt(&b)
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+3)
	msgs = append(msgs,
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: "CONTEXT:\n" + string(ctxJSON)},
	)
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	utterance := strings.TrimSpace(req.Utterance)
	if utterance == "" {
		utterance = noSpeech
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: utterance})
	return msgs, nil
}

// Plan implements Planner.
func (p *OpenAIPlanner) Plan(ctx context.Context, req Request) (TurnPlan, error) {
	msgs, err := p.messages(req)
	if err != nil {
		return TurnPlan{}, err
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: p.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: msgs,
	})
	if err != nil {
		return TurnPlan{}, errors.Wrap(err, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return TurnPlan{}, ErrEmptyCompletion
	}
	return ParsePlan(resp.Choices[0].Message.Content)
}
