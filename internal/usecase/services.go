package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mithun50/luma-cli/internal/domain"
)

var (
	ErrEmptyMessage    = errors.New("message required")
	ErrInvalidArgument = errors.New("invalid argument")
)

// SendResult mirrors what the injection expression reported.
type SendResult struct {
	Success bool            `json:"success"`
	Method  string          `json:"method"`
	Details json.RawMessage `json:"details"`
}

// ActionResult is what a page action (stop, mode, model, click, scroll)
// reported. Success=false with Error set is a refused action, not a failure.
type ActionResult struct {
	Success  bool     `json:"success"`
	Method   string   `json:"method,omitempty"`
	Mode     string   `json:"mode,omitempty"`
	Model    string   `json:"model,omitempty"`
	Scrolled *float64 `json:"scrolled,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type AppState struct {
	Mode  string `json:"mode"`
	Model string `json:"model"`
}

// UnknownAppState is reported while no IDE is connected.
var UnknownAppState = AppState{Mode: "Unknown", Model: "Unknown"}

// ChatService issues user actions against the current connection.
type ChatService struct {
	session *Session
	scripts Scripts
	log     zerolog.Logger
}

func NewChatService(session *Session, scripts Scripts, logger zerolog.Logger) *ChatService {
	return &ChatService{session: session, scripts: scripts, log: logger}
}

func (s *ChatService) conn() (Connection, error) {
	c := s.session.Connection()
	if c == nil || c.Err() != nil {
		return nil, domain.ErrNotConnected
	}
	return c, nil
}

func (s *ChatService) eval(expr domain.Expression) (json.RawMessage, error) {
	c, err := s.conn()
	if err != nil {
		return nil, err
	}
	raw, err := c.EvaluateAcrossContexts(expr)
	if errors.Is(err, domain.ErrTransportClosed) {
		return nil, fmt.Errorf("%w: %v", domain.ErrNotConnected, err)
	}
	return raw, err
}

// SendMessage types text into the chat input and submits it. A page that
// refuses the message (busy, no editor) yields Success=false, not an error.
func (s *ChatService) SendMessage(text string) (SendResult, error) {
	if strings.TrimSpace(text) == "" {
		return SendResult{}, ErrEmptyMessage
	}
	raw, err := s.eval(s.scripts.Inject(text))
	switch {
	case errors.Is(err, domain.ErrNoViableContext):
		s.log.Warn().Err(err).Msg("message injection found no usable context")
		return SendResult{Success: false, Method: "attempted", Details: json.RawMessage(`{"ok":false,"reason":"no_context"}`)}, nil
	case err != nil:
		return SendResult{}, err
	}
	var r struct {
		OK     *bool  `json:"ok"`
		Method string `json:"method"`
	}
	_ = json.Unmarshal(raw, &r)
	res := SendResult{Success: r.OK == nil || *r.OK, Method: r.Method, Details: raw}
	if res.Method == "" {
		res.Method = "attempted"
	}
	s.log.Info().Bool("success", res.Success).Str("method", res.Method).Int("length", len(text)).Msg("message sent")
	return res, nil
}

// StopGeneration presses the page's cancel control if one is visible.
func (s *ChatService) StopGeneration() (ActionResult, error) {
	return s.act(s.scripts.Stop, "no active generation found to stop")
}

func (s *ChatService) SetMode(mode string) (ActionResult, error) {
	mode = strings.TrimSpace(mode)
	if mode == "" {
		return ActionResult{}, fmt.Errorf("%w: mode is required", ErrInvalidArgument)
	}
	res, err := s.act(s.scripts.SetMode(mode), "mode change failed in all contexts")
	if err == nil {
		s.log.Info().Bool("success", res.Success).Str("mode", mode).Msg("mode change")
	}
	return res, err
}

func (s *ChatService) SetModel(model string) (ActionResult, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return ActionResult{}, fmt.Errorf("%w: model is required", ErrInvalidArgument)
	}
	res, err := s.act(s.scripts.SetModel(model), "model change failed in all contexts")
	if err == nil {
		s.log.Info().Bool("success", res.Success).Str("model", model).Msg("model change")
	}
	return res, err
}

// Click forwards a tap on the phone to the matching element on the desktop.
func (s *ChatService) Click(target domain.ClickTarget) (ActionResult, error) {
	if strings.TrimSpace(target.Selector) == "" {
		return ActionResult{}, fmt.Errorf("%w: selector is required", ErrInvalidArgument)
	}
	if target.Index < 0 {
		return ActionResult{}, fmt.Errorf("%w: index must not be negative", ErrInvalidArgument)
	}
	return s.act(s.scripts.Click(target), "click failed in all contexts")
}

// Scroll mirrors the phone's scroll position onto the desktop chat.
func (s *ChatService) Scroll(target domain.ScrollTarget) (ActionResult, error) {
	if target.ScrollTop == nil && target.ScrollPercent == nil {
		return ActionResult{}, fmt.Errorf("%w: scrollTop or scrollPercent required", ErrInvalidArgument)
	}
	if p := target.ScrollPercent; p != nil && (*p < 0 || *p > 1) {
		return ActionResult{}, fmt.Errorf("%w: scrollPercent must be within [0,1]", ErrInvalidArgument)
	}
	return s.act(s.scripts.Scroll(target), "scroll failed in all contexts")
}

// AppState reads the current mode and model; UnknownAppState while
// disconnected.
func (s *ChatService) AppState() (AppState, error) {
	raw, err := s.eval(s.scripts.AppState)
	if errors.Is(err, domain.ErrNotConnected) {
		return UnknownAppState, nil
	}
	if err != nil {
		return AppState{}, err
	}
	var st AppState
	if err := json.Unmarshal(raw, &st); err != nil {
		return AppState{}, fmt.Errorf("decode app state: %w", err)
	}
	return st, nil
}

// act evaluates a page action. When every context refuses it, the last
// page-reported reason (or fallback) becomes the result's Error.
func (s *ChatService) act(expr domain.Expression, fallback string) (ActionResult, error) {
	raw, err := s.eval(expr)
	if errors.Is(err, domain.ErrNoViableContext) {
		reason := lastReason(err)
		if reason == "" {
			reason = fallback
		}
		return ActionResult{Success: false, Error: reason}, nil
	}
	if err != nil {
		return ActionResult{}, err
	}
	var res ActionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return ActionResult{}, fmt.Errorf("decode %s result: %w", expr.Name, err)
	}
	return res, nil
}

// reasoner is implemented by evaluation errors that carry the page's own
// error message.
type reasoner interface{ EvaluationReason() string }

func lastReason(err error) string {
	var r reasoner
	if errors.As(err, &r) {
		return r.EvaluationReason()
	}
	return ""
}
