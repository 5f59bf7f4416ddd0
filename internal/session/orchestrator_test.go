package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/heartguard/heartguard/internal/history"
	"github.com/heartguard/heartguard/internal/llm"
)

// fakeHandler scripts provider behavior for orchestrator tests.
type fakeHandler struct {
	mu           sync.Mutex
	streamChunks []llm.ApiStreamChunk
	streamErr    error
	result       *llm.GenerateResult
	generateErr  error
	generateHits int
	lastReq      llm.GenerateRequest
}

func (f *fakeHandler) CreateMessage(ctx context.Context, systemPrompt string, messages []llm.Message) (llm.ApiStream, error) {
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	ch := make(chan llm.ApiStreamChunk, len(f.streamChunks))
	for _, c := range f.streamChunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (f *fakeHandler) GenerateContent(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error) {
	f.mu.Lock()
	f.generateHits++
	f.lastReq = req
	f.mu.Unlock()
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.result, nil
}

func (f *fakeHandler) hits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generateHits
}

func (f *fakeHandler) request() llm.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastReq
}

// fakeNotifier records posted notices.
type fakeNotifier struct {
	toasts []string
	alerts []string
}

func (n *fakeNotifier) Toast(msg string)      { n.toasts = append(n.toasts, msg) }
func (n *fakeNotifier) ToastError(msg string) { n.toasts = append(n.toasts, msg) }
func (n *fakeNotifier) Alert(msg string)      { n.alerts = append(n.alerts, msg) }

type memoryBackend struct {
	data map[string]string
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: make(map[string]string)}
}

func (m *memoryBackend) Read(domain string) (string, bool, error) {
	v, ok := m.data[domain]
	return v, ok, nil
}

func (m *memoryBackend) Write(domain, payload string) error {
	m.data[domain] = payload
	return nil
}

func testStores() Stores {
	backend := newMemoryBackend()
	return Stores{
		Sessions: history.NewStore(backend, history.Options[Session]{Domain: "sessions", Capacity: 20}),
		Prompts: history.NewStore(backend, history.Options[string]{
			Domain:         "prompts",
			Capacity:       8,
			DedupeOnInsert: true,
			Equal:          func(a, b string) bool { return a == b },
		}),
		Assessments: history.NewStore(backend, history.Options[AssessmentReport]{Domain: "assessments", Capacity: 20}),
		Stories:     history.NewStore(backend, history.Options[StoryRecord]{Domain: "stories", Capacity: 20}),
	}
}

func newTestOrchestrator(chat, image *fakeHandler) (*Orchestrator, *fakeNotifier) {
	notifier := &fakeNotifier{}
	return NewOrchestrator(chat, image, testStores(), notifier), notifier
}

func waitForTurn(t *testing.T, o *Orchestrator) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !o.ChatBusy() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("chat turn did not complete")
}

func TestChatTurnStreamsIntoPlaceholder(t *testing.T) {
	chat := &fakeHandler{streamChunks: []llm.ApiStreamChunk{
		llm.ApiStreamTextChunk{Text: "别担心，"},
		llm.ApiStreamTextChunk{Text: "我在听。"},
	}}
	o, _ := newTestOrchestrator(chat, &fakeHandler{})

	if err := o.SendChatMessage(context.Background(), "我有点难过"); err != nil {
		t.Fatalf("SendChatMessage: %v", err)
	}
	waitForTurn(t, o)

	msgs := o.Messages()
	if len(msgs) != 3 { // welcome + user + assistant
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[1].Role != RoleUser || msgs[1].Content != "我有点难过" {
		t.Errorf("user turn = %+v", msgs[1])
	}
	if msgs[2].Role != RoleAssistant || msgs[2].Content != "别担心，我在听。" {
		t.Errorf("assistant turn = %+v", msgs[2])
	}
}

func TestChatTurnRejectedWhileInFlight(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeHandler{}, &fakeHandler{})

	o.mu.Lock()
	o.chatBusy = true
	o.mu.Unlock()

	if err := o.SendChatMessage(context.Background(), "hello"); !errors.Is(err, ErrTurnInFlight) {
		t.Errorf("expected ErrTurnInFlight, got %v", err)
	}
}

func TestChatFailureShowsApologyOnly(t *testing.T) {
	chat := &fakeHandler{streamChunks: []llm.ApiStreamChunk{
		llm.ApiStreamTextChunk{Text: "half a rep"},
		llm.ApiStreamErrorChunk{Err: errors.New("connection reset")},
	}}
	o, _ := newTestOrchestrator(chat, &fakeHandler{})

	if err := o.SendChatMessage(context.Background(), "在吗"); err != nil {
		t.Fatalf("SendChatMessage: %v", err)
	}
	waitForTurn(t, o)

	msgs := o.Messages()
	last := msgs[len(msgs)-1]
	if last.Content != StreamFailureApology {
		t.Errorf("content = %q, want the fixed apology", last.Content)
	}
	if strings.Contains(last.Content, "connection reset") {
		t.Error("raw error leaked to the user")
	}
}

func TestSaveSessionTitleTruncation(t *testing.T) {
	tests := []struct {
		name      string
		userMsg   string
		wantTitle string
	}{
		{"short message", "你好", "你好"},
		{"exactly twenty runes", strings.Repeat("字", 20), strings.Repeat("字", 20)},
		{"longer than twenty runes", strings.Repeat("字", 25), strings.Repeat("字", 20) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &fakeHandler{streamChunks: []llm.ApiStreamChunk{llm.ApiStreamTextChunk{Text: "好的"}}}
			o, _ := newTestOrchestrator(chat, &fakeHandler{})

			if err := o.SendChatMessage(context.Background(), tt.userMsg); err != nil {
				t.Fatalf("SendChatMessage: %v", err)
			}
			waitForTurn(t, o)

			rec, err := o.SaveSession()
			if err != nil {
				t.Fatalf("SaveSession: %v", err)
			}
			if rec.Payload.Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", rec.Payload.Title, tt.wantTitle)
			}
		})
	}
}

func TestSaveSessionRequiresUserTurn(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeHandler{}, &fakeHandler{})
	if _, err := o.SaveSession(); !errors.Is(err, ErrNothingToSave) {
		t.Errorf("expected ErrNothingToSave, got %v", err)
	}
	if len(o.Sessions()) != 0 {
		t.Error("welcome-only conversation was saved")
	}
}

func TestLoadAndDeleteSession(t *testing.T) {
	chat := &fakeHandler{streamChunks: []llm.ApiStreamChunk{llm.ApiStreamTextChunk{Text: "嗯嗯"}}}
	o, _ := newTestOrchestrator(chat, &fakeHandler{})

	if err := o.SendChatMessage(context.Background(), "今天考试没考好"); err != nil {
		t.Fatalf("SendChatMessage: %v", err)
	}
	waitForTurn(t, o)
	rec, err := o.SaveSession()
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	o.ClearConversation()
	if len(o.Messages()) != 1 {
		t.Fatalf("clear left %d messages", len(o.Messages()))
	}

	if err := o.LoadSession(rec.ID); err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if len(o.Messages()) != 3 {
		t.Errorf("loaded %d messages, want 3", len(o.Messages()))
	}

	o.DeleteSession(rec.ID)
	if len(o.Sessions()) != 0 {
		t.Error("session not deleted")
	}
	o.DeleteSession(rec.ID) // idempotent
}

func TestGenerateImageRecordsRawPrompt(t *testing.T) {
	image := &fakeHandler{result: &llm.GenerateResult{
		Image: &llm.ImageSource{Type: "base64", MediaType: "image/png", Data: "aGk="},
	}}
	o, _ := newTestOrchestrator(&fakeHandler{}, image)

	img, err := o.GenerateImage(context.Background(), ImageModeText, "一只戴草帽的小猫", "watercolor", nil)
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if img.MediaType != "image/png" {
		t.Errorf("media type = %q", img.MediaType)
	}

	prompts := o.PromptHistory()
	if len(prompts) != 1 || prompts[0].Payload != "一只戴草帽的小猫" {
		t.Errorf("prompt history = %+v, want the raw prompt only", prompts)
	}
}

func TestGenerateImageSketchModeRecordsNothing(t *testing.T) {
	image := &fakeHandler{result: &llm.GenerateResult{
		Image: &llm.ImageSource{Type: "base64", MediaType: "image/png", Data: "aGk="},
	}}
	o, _ := newTestOrchestrator(&fakeHandler{}, image)

	sketch := &llm.ImageSource{Type: "base64", MediaType: "image/png", Data: "c2tldGNo"}
	if _, err := o.GenerateImage(context.Background(), ImageModeSketch, "变成山峰", "watercolor", sketch); err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if len(o.PromptHistory()) != 0 {
		t.Error("sketch mode must not record a prompt-history entry")
	}
}

func TestGenerateImageFailureYieldsApologyAndNoRecord(t *testing.T) {
	image := &fakeHandler{generateErr: errors.New("503 upstream")}
	o, _ := newTestOrchestrator(&fakeHandler{}, image)

	_, err := o.GenerateImage(context.Background(), ImageModeText, "小猫", "watercolor", nil)
	if err == nil || err.Error() != ImageFailureApology {
		t.Errorf("err = %v, want the fixed apology", err)
	}
	if len(o.PromptHistory()) != 0 {
		t.Error("failed generation must not create a history record")
	}
}

func TestAssessmentValidationFailsFast(t *testing.T) {
	chat := &fakeHandler{result: &llm.GenerateResult{Text: "报告"}}
	o, notifier := newTestOrchestrator(chat, &fakeHandler{})

	_, err := o.RunAssessment(context.Background(), AssessmentInput{ChildName: "   "})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if chat.hits() != 0 {
		t.Error("validation failure must not reach the provider")
	}
	if len(o.AssessmentHistory()) != 0 {
		t.Error("validation failure must not create a record")
	}
	if len(notifier.alerts) != 1 || notifier.alerts[0] != MissingChildNameAlert {
		t.Errorf("alerts = %v, want the blocking name prompt", notifier.alerts)
	}
}

func TestAssessmentSuccessCommitsRecord(t *testing.T) {
	chat := &fakeHandler{result: &llm.GenerateResult{Text: "🎯 风险等级：低\n..."}}
	o, _ := newTestOrchestrator(chat, &fakeHandler{})

	input := AssessmentInput{
		ChildName:   "小明",
		ChildAge:    9,
		ChildGender: "男",
		Sleep:       "一般",
		Electronics: "适中",
		PeerRel:     "良好",
		Concerns:    []string{"分离焦虑"},
		Details:     "父母在外务工",
	}
	rec, err := o.RunAssessment(context.Background(), input)
	if err != nil {
		t.Fatalf("RunAssessment: %v", err)
	}
	if rec.Payload.Input.ChildName != "小明" || rec.Payload.Result == "" {
		t.Errorf("record = %+v", rec.Payload)
	}
	if len(o.AssessmentHistory()) != 1 {
		t.Errorf("history length = %d", len(o.AssessmentHistory()))
	}
}

func TestAssessmentPhotoRidesAlongAsInlineImage(t *testing.T) {
	chat := &fakeHandler{result: &llm.GenerateResult{Text: "报告"}}
	o, _ := newTestOrchestrator(chat, &fakeHandler{})

	input := AssessmentInput{
		ChildName: "小明",
		Photo:     "data:image/jpeg;base64,cGhvdG8=",
	}
	rec, err := o.RunAssessment(context.Background(), input)
	if err != nil {
		t.Fatalf("RunAssessment: %v", err)
	}

	req := chat.request()
	if req.Image == nil {
		t.Fatal("photo was not forwarded to the provider")
	}
	if req.Image.MediaType != "image/jpeg" || req.Image.Data != "cGhvdG8=" {
		t.Errorf("forwarded image = %+v", req.Image)
	}
	if rec.Payload.Input.Photo != input.Photo {
		t.Error("photo not retained on the committed record")
	}
}

func TestAssessmentMalformedPhotoDegradesToTextOnly(t *testing.T) {
	chat := &fakeHandler{result: &llm.GenerateResult{Text: "报告"}}
	o, _ := newTestOrchestrator(chat, &fakeHandler{})

	_, err := o.RunAssessment(context.Background(), AssessmentInput{
		ChildName: "小明",
		Photo:     "definitely-not-a-data-url",
	})
	if err != nil {
		t.Fatalf("RunAssessment: %v", err)
	}
	if req := chat.request(); req.Image != nil {
		t.Errorf("malformed photo must not reach the provider: %+v", req.Image)
	}
}

func TestAssessmentFailureLeavesNoRecord(t *testing.T) {
	chat := &fakeHandler{generateErr: errors.New("timeout")}
	o, notifier := newTestOrchestrator(chat, &fakeHandler{})

	_, err := o.RunAssessment(context.Background(), AssessmentInput{ChildName: "小明"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(o.AssessmentHistory()) != 0 {
		t.Error("failed generation must not create a record")
	}
	if len(notifier.alerts) != 1 || notifier.alerts[0] != AssessmentFailureAlert {
		t.Errorf("alerts = %v", notifier.alerts)
	}
}

func TestGenerateStoryParsesAndCommits(t *testing.T) {
	chat := &fakeHandler{result: &llm.GenerateResult{
		Text: "标题：勇敢的小溪\n小溪想去看大海。\n---\n故事里的小道理：\n1. 坚持就有希望\n2. 朋友会帮助你",
	}}
	o, _ := newTestOrchestrator(chat, &fakeHandler{})

	params := StoryParams{Theme: "小溪", AgeGroup: "7-12岁", Length: "short", Tone: "brave"}
	rec, err := o.GenerateStory(context.Background(), params)
	if err != nil {
		t.Fatalf("GenerateStory: %v", err)
	}
	if rec.Payload.Narrative.Title != "勇敢的小溪" {
		t.Errorf("title = %q", rec.Payload.Narrative.Title)
	}
	if len(rec.Payload.Narrative.Takeaways) != 2 {
		t.Errorf("takeaways = %v", rec.Payload.Narrative.Takeaways)
	}
	if rec.Payload.Params != params {
		t.Errorf("params = %+v, want %+v", rec.Payload.Params, params)
	}
}

func TestGenerateStoryFailurePath(t *testing.T) {
	chat := &fakeHandler{result: &llm.GenerateResult{}} // no usable payload
	o, notifier := newTestOrchestrator(chat, &fakeHandler{})

	_, err := o.GenerateStory(context.Background(), StoryParams{Theme: "月亮"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(o.StoryHistory()) != 0 {
		t.Error("failed generation must not create a record")
	}
	if len(notifier.alerts) != 1 || notifier.alerts[0] != StoryFailureAlert {
		t.Errorf("alerts = %v", notifier.alerts)
	}
}

func TestSearchSessions(t *testing.T) {
	o, _ := newTestOrchestrator(&fakeHandler{}, &fakeHandler{})

	o.stores.Sessions.Add(Session{Title: "爸爸妈妈什么时候回来"})
	o.stores.Sessions.Add(Session{Title: "学习压力好大"})

	got := o.SearchSessions("压力")
	if len(got) != 1 || got[0].Payload.Title != "学习压力好大" {
		t.Errorf("search results = %+v", got)
	}
	if all := o.SearchSessions("  "); len(all) != 2 {
		t.Errorf("blank query should return everything, got %d", len(all))
	}
}

func TestSuggestionsGateOnConversationLength(t *testing.T) {
	chat := &fakeHandler{streamChunks: []llm.ApiStreamChunk{llm.ApiStreamTextChunk{Text: "嗯"}}}
	o, _ := newTestOrchestrator(chat, &fakeHandler{})

	if !o.ShouldOfferSuggestions() {
		t.Error("fresh conversation should offer suggestions")
	}
	for i := 0; i < 2; i++ {
		if err := o.SendChatMessage(context.Background(), "你好"); err != nil {
			t.Fatalf("SendChatMessage: %v", err)
		}
		waitForTurn(t, o)
	}
	// welcome + 2*(user+assistant) = 5 messages
	if o.ShouldOfferSuggestions() {
		t.Error("long conversation should not offer suggestions")
	}
}
