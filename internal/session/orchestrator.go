package session

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/heartguard/heartguard/internal/events"
	"github.com/heartguard/heartguard/internal/history"
	"github.com/heartguard/heartguard/internal/llm"
	"github.com/heartguard/heartguard/internal/llm/prompt"
	"github.com/heartguard/heartguard/internal/narrative"
)

// Fixed user-facing strings. Raw provider errors are logged only.
const (
	ImageFailureApology    = "哎呀，画笔断水了，请检查网络或稍后再试。"
	AssessmentFailureAlert = "分析失败，请检查网络"
	StoryFailureAlert      = "生成失败，请重试"
	MissingChildNameAlert  = "请至少输入孩子的名字哦~"
	SessionSavedAlert      = "对话已保存到历史记录！"

	untitledSession = "新对话"
	titleRuneLimit  = 20
)

var (
	// ErrTurnInFlight rejects a new chat turn while one is streaming.
	ErrTurnInFlight = errors.New("a chat turn is already in flight")
	// ErrGenerationInFlight rejects re-invocation of a pending single-shot call.
	ErrGenerationInFlight = errors.New("a generation call is already in flight")
	// ErrEmptyPrompt rejects a text-to-image request without a prompt.
	ErrEmptyPrompt = errors.New("prompt must not be empty")
	// ErrValidation marks input rejected before any provider call was made.
	ErrValidation = errors.New("required input missing")
	// ErrNothingToSave marks a save attempt on a conversation with no user turn.
	ErrNothingToSave = errors.New("nothing to save")
)

// ImageMode selects between the two image generation flows.
type ImageMode string

const (
	ImageModeText   ImageMode = "text"
	ImageModeSketch ImageMode = "sketch"
)

// Notifier is the orchestrator's channel for user-facing notices.
type Notifier interface {
	Toast(message string)
	ToastError(message string)
	Alert(message string)
}

// Stores bundles the four independent history domains.
type Stores struct {
	Sessions    *history.Store[Session]
	Prompts     *history.Store[string]
	Assessments *history.Store[AssessmentReport]
	Stories     *history.Store[StoryRecord]
}

// Orchestrator wires requests to the provider, shapes the output, and
// commits results to the matching history store. It owns the in-memory
// conversation; the presentation layer re-renders from its snapshots.
type Orchestrator struct {
	chatHandler  llm.ApiHandler
	imageHandler llm.ApiHandler
	stores       Stores
	notifier     Notifier
	broker       *events.Broker[Message]
	logger       *log.Logger

	mu         sync.Mutex
	messages   []Message
	chatBusy   bool
	imageBusy  bool
	assessBusy bool
	storyBusy  bool
}

// NewOrchestrator creates an orchestrator with a fresh welcome conversation.
func NewOrchestrator(chatHandler, imageHandler llm.ApiHandler, stores Stores, notifier Notifier) *Orchestrator {
	o := &Orchestrator{
		chatHandler:  chatHandler,
		imageHandler: imageHandler,
		stores:       stores,
		notifier:     notifier,
		broker:       events.NewBroker[Message](),
		logger:       log.NewWithOptions(os.Stderr, log.Options{Prefix: "session"}),
	}
	o.messages = []Message{welcomeMessage()}
	return o
}

func welcomeMessage() Message {
	return Message{
		ID:        "welcome",
		Role:      RoleAssistant,
		Content:   welcomeContent,
		Timestamp: time.Now(),
	}
}

// Subscribe returns the stream of message updates for a presentation surface.
func (o *Orchestrator) Subscribe(ctx context.Context) <-chan events.Event[Message] {
	return o.broker.Subscribe(ctx)
}

// Messages returns an immutable snapshot of the current conversation.
func (o *Orchestrator) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.messages))
	copy(out, o.messages)
	return out
}

// ChatBusy reports whether a chat turn is streaming.
func (o *Orchestrator) ChatBusy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.chatBusy
}

// ShouldOfferSuggestions reports whether the conversation is still short
// enough to show starter questions.
func (o *Orchestrator) ShouldOfferSuggestions() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.messages) < 5
}

// SendChatMessage appends a user turn and streams the assistant reply in the
// background. It returns once the user message and the empty assistant
// placeholder are both in place.
func (o *Orchestrator) SendChatMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyPrompt
	}

	o.mu.Lock()
	if o.chatBusy {
		o.mu.Unlock()
		return ErrTurnInFlight
	}
	o.chatBusy = true

	userMsg := Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   text,
		Timestamp: time.Now(),
	}
	o.messages = append(o.messages, userMsg)

	// Conversational context is the full message list including the new
	// user turn, but never the placeholder.
	llmContext := make([]llm.Message, 0, len(o.messages))
	for _, m := range o.messages {
		llmContext = append(llmContext, llm.Message{
			Role:    string(m.Role),
			Content: []llm.ContentBlock{llm.TextBlock{Text: m.Content}},
		})
	}

	placeholderID := uuid.New().String()
	o.mu.Unlock()

	o.broker.Publish(events.MessageUpdated, userMsg)

	agg := NewAggregator(placeholderID, func(msg Message) {
		o.mu.Lock()
		found := false
		for i := range o.messages {
			if o.messages[i].ID == msg.ID {
				o.messages[i] = msg
				found = true
				break
			}
		}
		if !found {
			o.messages = append(o.messages, msg)
		}
		o.mu.Unlock()
		o.broker.Publish(events.MessageUpdated, msg)
	})

	go o.streamTurn(ctx, llmContext, agg)
	return nil
}

// streamTurn drives one streamed assistant reply to completion or failure.
// The in-flight flag is cleared on every path.
func (o *Orchestrator) streamTurn(ctx context.Context, llmContext []llm.Message, agg *Aggregator) {
	defer func() {
		o.mu.Lock()
		o.chatBusy = false
		o.mu.Unlock()
		o.broker.Publish(events.TurnCompleted, agg.Message())
	}()

	collector := llm.NewStreamCollector()
	defer func() {
		fields := []any{"duration", collector.GetDuration()}
		if collector.Usage != nil {
			fields = append(fields, "inputTokens", collector.Usage.InputTokens, "outputTokens", collector.Usage.OutputTokens)
		}
		o.logger.Debug("chat turn finished", fields...)
	}()

	stream, err := o.chatHandler.CreateMessage(ctx, prompt.ChatSystemPrompt, llmContext)
	if err != nil {
		o.logger.Error("chat stream failed to start", "error", err)
		agg.Fail()
		return
	}

	for chunk := range stream {
		collector.Collect(chunk)
		switch c := chunk.(type) {
		case llm.ApiStreamTextChunk:
			agg.OnFragment(c.Text)
		case llm.ApiStreamErrorChunk:
			o.logger.Error("chat stream failed", "error", c.Err)
			agg.Fail()
			return
		}
	}
	agg.Complete()
}

// SaveSession commits the current conversation to the session history. The
// title derives from the first user message.
func (o *Orchestrator) SaveSession() (history.Record[Session], error) {
	o.mu.Lock()
	if len(o.messages) <= 1 {
		o.mu.Unlock()
		return history.Record[Session]{}, ErrNothingToSave
	}
	s := Session{
		ID:       uuid.New().String(),
		Title:    sessionTitle(o.messages),
		Messages: append([]Message(nil), o.messages...),
		Date:     time.Now().Format("2006-01-02"),
	}
	o.mu.Unlock()

	rec := o.stores.Sessions.Add(s)
	o.notifier.Alert(SessionSavedAlert)
	return rec, nil
}

func sessionTitle(messages []Message) string {
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		runes := []rune(m.Content)
		if len(runes) > titleRuneLimit {
			return string(runes[:titleRuneLimit]) + "..."
		}
		if m.Content == "" {
			break
		}
		return m.Content
	}
	return untitledSession
}

// LoadSession replaces the conversation with a saved one.
func (o *Orchestrator) LoadSession(id string) error {
	for _, rec := range o.stores.Sessions.List() {
		if rec.ID != id {
			continue
		}
		o.mu.Lock()
		o.messages = append([]Message(nil), rec.Payload.Messages...)
		o.mu.Unlock()
		o.broker.Publish(events.ConversationReset, Message{})
		return nil
	}
	return errors.New("session not found: " + id)
}

// DeleteSession removes a saved session; deleting an absent id is a no-op.
func (o *Orchestrator) DeleteSession(id string) {
	o.stores.Sessions.Remove(id)
}

// Sessions returns the saved sessions, newest-first.
func (o *Orchestrator) Sessions() []history.Record[Session] {
	return o.stores.Sessions.List()
}

// SearchSessions returns saved sessions whose titles fuzzy-match the query.
func (o *Orchestrator) SearchSessions(query string) []history.Record[Session] {
	all := o.stores.Sessions.List()
	if strings.TrimSpace(query) == "" {
		return all
	}
	var out []history.Record[Session]
	for _, rec := range all {
		if fuzzy.MatchNormalizedFold(query, rec.Payload.Title) {
			out = append(out, rec)
		}
	}
	return out
}

// ClearConversation resets the chat to just the welcome message.
func (o *Orchestrator) ClearConversation() {
	o.mu.Lock()
	o.messages = []Message{welcomeMessage()}
	o.mu.Unlock()
	o.broker.Publish(events.ConversationReset, Message{})
}

// GenerateImage runs a single-shot image generation call. In text mode the
// raw prompt (not the enhanced form) is recorded on success; sketch mode
// records nothing.
func (o *Orchestrator) GenerateImage(ctx context.Context, mode ImageMode, text, style string, sketch *llm.ImageSource) (*llm.ImageSource, error) {
	if mode == ImageModeText && strings.TrimSpace(text) == "" {
		return nil, ErrEmptyPrompt
	}

	o.mu.Lock()
	if o.imageBusy {
		o.mu.Unlock()
		return nil, ErrGenerationInFlight
	}
	o.imageBusy = true
	o.mu.Unlock()
	defer o.clearBusy(&o.imageBusy)

	enhanced := prompt.EnhanceImagePrompt(text, style)

	req := llm.GenerateRequest{Prompt: enhanced}
	if mode == ImageModeSketch {
		if sketch == nil {
			return nil, ErrValidation
		}
		req = llm.GenerateRequest{
			Prompt: prompt.SketchImagePrompt(enhanced),
			Image:  sketch,
		}
	}

	result, err := o.imageHandler.GenerateContent(ctx, req)
	if err != nil || result == nil || result.Image == nil {
		o.logger.Error("image generation failed", "mode", mode, "error", err)
		return nil, errors.New(ImageFailureApology)
	}

	if mode == ImageModeText {
		o.stores.Prompts.Add(text)
	}
	return result.Image, nil
}

// PromptHistory returns recent image prompts, newest-first.
func (o *Orchestrator) PromptHistory() []history.Record[string] {
	return o.stores.Prompts.List()
}

// RemovePrompt deletes one prompt from the history.
func (o *Orchestrator) RemovePrompt(id string) {
	o.stores.Prompts.Remove(id)
}

// RunAssessment validates the input, runs a single-shot analysis call, and
// commits the {input, result} pair. Validation failures never reach the
// provider and never create a record.
func (o *Orchestrator) RunAssessment(ctx context.Context, input AssessmentInput) (history.Record[AssessmentReport], error) {
	if strings.TrimSpace(input.ChildName) == "" {
		o.notifier.Alert(MissingChildNameAlert)
		return history.Record[AssessmentReport]{}, ErrValidation
	}

	o.mu.Lock()
	if o.assessBusy {
		o.mu.Unlock()
		return history.Record[AssessmentReport]{}, ErrGenerationInFlight
	}
	o.assessBusy = true
	o.mu.Unlock()
	defer o.clearBusy(&o.assessBusy)

	req := llm.GenerateRequest{
		Prompt: prompt.BuildAssessmentPrompt(prompt.AssessmentRequest{
			ChildName:   input.ChildName,
			ChildAge:    input.ChildAge,
			ChildGender: input.ChildGender,
			Sleep:       input.Sleep,
			Electronics: input.Electronics,
			PeerRel:     input.PeerRel,
			Concerns:    input.Concerns,
			Notes:       input.Notes,
			Details:     input.Details,
		}),
	}
	// A captured photo rides along as inline image context. A malformed
	// payload degrades to a text-only assessment rather than failing it.
	if input.Photo != "" {
		if img, ok := llm.ImageSourceFromDataURL(input.Photo); ok {
			req.Image = img
		} else {
			o.logger.Warn("ignoring malformed assessment photo payload")
		}
	}

	result, err := o.chatHandler.GenerateContent(ctx, req)
	if err != nil || result == nil || result.Text == "" {
		o.logger.Error("assessment generation failed", "error", err)
		o.notifier.Alert(AssessmentFailureAlert)
		return history.Record[AssessmentReport]{}, errors.New(AssessmentFailureAlert)
	}

	rec := o.stores.Assessments.Add(AssessmentReport{Input: input, Result: result.Text})
	return rec, nil
}

// AssessmentHistory returns saved reports, newest-first.
func (o *Orchestrator) AssessmentHistory() []history.Record[AssessmentReport] {
	return o.stores.Assessments.List()
}

// RemoveAssessment deletes one report from the history.
func (o *Orchestrator) RemoveAssessment(id string) {
	o.stores.Assessments.Remove(id)
}

// GenerateStory runs a single-shot story call, parses the structured
// narrative out of the free text, and commits it with its parameters.
func (o *Orchestrator) GenerateStory(ctx context.Context, params StoryParams) (history.Record[StoryRecord], error) {
	o.mu.Lock()
	if o.storyBusy {
		o.mu.Unlock()
		return history.Record[StoryRecord]{}, ErrGenerationInFlight
	}
	o.storyBusy = true
	o.mu.Unlock()
	defer o.clearBusy(&o.storyBusy)

	result, err := o.chatHandler.GenerateContent(ctx, llm.GenerateRequest{
		Prompt: prompt.BuildStoryPrompt(prompt.StoryRequest{
			Keywords: params.Theme,
			AgeGroup: params.AgeGroup,
			Length:   params.Length,
			Tone:     params.Tone,
		}),
	})
	if err != nil || result == nil || result.Text == "" {
		o.logger.Error("story generation failed", "error", err)
		o.notifier.Alert(StoryFailureAlert)
		return history.Record[StoryRecord]{}, errors.New(StoryFailureAlert)
	}

	rec := o.stores.Stories.Add(StoryRecord{
		Narrative: narrative.Parse(result.Text),
		Params:    params,
	})
	return rec, nil
}

// StoryHistory returns saved stories, newest-first.
func (o *Orchestrator) StoryHistory() []history.Record[StoryRecord] {
	return o.stores.Stories.List()
}

// RemoveStory deletes one story from the history.
func (o *Orchestrator) RemoveStory(id string) {
	o.stores.Stories.Remove(id)
}

func (o *Orchestrator) clearBusy(flag *bool) {
	o.mu.Lock()
	*flag = false
	o.mu.Unlock()
}

// Shutdown stops event delivery.
func (o *Orchestrator) Shutdown() {
	o.broker.Shutdown()
}
