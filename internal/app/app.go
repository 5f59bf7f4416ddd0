// Package app assembles the application: configuration, storage, the
// generation provider, and the orchestration layer on top of them.
package app

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/heartguard/heartguard/internal/config"
	"github.com/heartguard/heartguard/internal/history"
	"github.com/heartguard/heartguard/internal/llm"
	"github.com/heartguard/heartguard/internal/llm/providers"
	"github.com/heartguard/heartguard/internal/notifications"
	"github.com/heartguard/heartguard/internal/session"
	"github.com/heartguard/heartguard/internal/voice"
)

// History domains. Each domain is one independently persisted collection.
const (
	domainSessions    = "chat_sessions"
	domainPrompts     = "image_prompts"
	domainAssessments = "assessment_reports"
	domainStories     = "story_records"
)

// App is the assembled application.
type App struct {
	Config        *config.Config
	State         *config.State
	Backend       *history.LibsqlBackend
	Stores        session.Stores
	Notifications *notifications.Manager
	Orchestrator  *session.Orchestrator
	Voice         *voice.Controller

	logger *log.Logger
}

// New loads configuration, opens the history database, and wires the
// generation pipeline.
func New(debug bool) (*App, error) {
	cfg, err := config.Load(debug)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	state, err := config.LoadState(cfg.StatePath())
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	backend, err := history.OpenLibsqlBackend(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	stores := session.Stores{
		Sessions: history.NewStore[session.Session](backend, history.Options[session.Session]{
			Domain:   domainSessions,
			Capacity: cfg.History.SessionCapacity,
		}),
		Prompts: history.NewStore[string](backend, history.Options[string]{
			Domain:         domainPrompts,
			Capacity:       cfg.History.PromptCapacity,
			DedupeOnInsert: true,
			Equal:          func(a, b string) bool { return a == b },
		}),
		Assessments: history.NewStore[session.AssessmentReport](backend, history.Options[session.AssessmentReport]{
			Domain:   domainAssessments,
			Capacity: cfg.History.AssessmentCapacity,
		}),
		Stories: history.NewStore[session.StoryRecord](backend, history.Options[session.StoryRecord]{
			Domain:   domainStories,
			Capacity: cfg.History.StoryCapacity,
		}),
	}

	chatHandler := providers.NewGeminiHandler(llm.ApiHandlerOptions{
		APIKey:  cfg.Providers.GeminiAPIKey,
		ModelID: cfg.Models.Chat,
	})
	imageHandler := providers.NewGeminiHandler(llm.ApiHandlerOptions{
		APIKey:  cfg.Providers.GeminiAPIKey,
		ModelID: cfg.Models.Image,
	})

	manager := notifications.NewManager()
	orch := session.NewOrchestrator(chatHandler, imageHandler, stores, manager)

	a := &App{
		Config:        cfg,
		State:         state,
		Backend:       backend,
		Stores:        stores,
		Notifications: manager,
		Orchestrator:  orch,
		logger:        log.NewWithOptions(os.Stderr, log.Options{Prefix: "app"}),
	}

	// Terminal hosts have no dictation capability; the controller degrades
	// gracefully when one is not provided.
	a.Voice = voice.NewController(voice.UnsupportedCapability{}, manager, func(string) {}, nil)

	return a, nil
}

// SetVoiceController swaps in a host-backed dictation controller.
func (a *App) SetVoiceController(vc *voice.Controller) {
	a.Voice = vc
}

// FirstRun reports whether the tutorial has not been shown yet.
func (a *App) FirstRun() bool {
	return !a.State.TutorialSeen
}

// CompleteTutorial records that the walkthrough has been shown.
func (a *App) CompleteTutorial() {
	if err := a.State.MarkTutorialSeen(a.Config.StatePath()); err != nil {
		a.logger.Warn("failed to persist tutorial flag", "error", err)
	}
}

// Shutdown releases every resource; it is safe to call once at exit.
func (a *App) Shutdown() {
	a.Orchestrator.Shutdown()
	a.Notifications.Shutdown()
	a.Voice.Close()
	if err := a.Backend.Close(); err != nil {
		a.logger.Warn("failed to close history database", "error", err)
	}
}
