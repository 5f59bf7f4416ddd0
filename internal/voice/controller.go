// Package voice wraps a capability-gated, event-driven dictation source in
// an explicit state machine. The host decides whether dictation exists at
// all; the controller guarantees that every exit from the listening state is
// visible to the user and that teardown never leaves a recognizer running.
package voice

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// State is the controller's lifecycle state.
type State string

const (
	// StateUninitialized means the capability has not been probed yet.
	// Probing is deferred until a user-initiated action.
	StateUninitialized State = "uninitialized"
	// StateIdle means the recognizer exists and is not listening.
	StateIdle State = "idle"
	// StateListening means an utterance is being captured.
	StateListening State = "listening"
	// StateUnavailable is absorbing: the host lacks the capability or
	// forbids it structurally.
	StateUnavailable State = "unavailable"
)

// ErrorCode classifies recognizer error events.
type ErrorCode string

const (
	ErrPermissionDenied ErrorCode = "permission-denied"
	ErrNoSpeech         ErrorCode = "no-speech"
	ErrNetwork          ErrorCode = "network"
)

// User-facing messages, verbatim from the product copy.
const (
	insecureContextAlert = "⚠️ 安全限制：\n\n出于安全原因，当前运行环境禁止访问麦克风。\n\n解决方法：\n请在受信任的安全环境中运行本应用。"
	unsupportedAlert     = "抱歉，您的运行环境不支持语音输入功能。"
	permissionAlert      = "需要麦克风权限才能使用语音输入。\n\n请检查系统设置，并允许本应用访问麦克风。"

	listeningToast = "🎙️ 语音输入已开启"
	stoppedToast   = "✅ 语音输入已结束"
	networkToast   = "❌ 网络错误，请检查连接"
	noSpeechToast  = "🔕 未检测到声音"
)

// Callbacks receive recognizer events. All callbacks are optional for the
// recognizer to invoke but the controller wires every one.
type Callbacks struct {
	OnStart  func()
	OnEnd    func()
	OnResult func(text string, final bool)
	OnError  func(code ErrorCode)
}

// Recognizer is one constructed dictation handle.
type Recognizer interface {
	// Start begins capturing; events arrive via the Callbacks.
	Start() error
	// Stop ends the current utterance gracefully.
	Stop()
	// Abort cancels immediately; no further callbacks may fire.
	Abort()
}

// Capability is the host's dictation surface. Construction is deferred to
// the first user gesture per host security policy.
type Capability interface {
	// Supported reports whether the host exposes dictation at all.
	Supported() bool
	// Permitted reports whether the current execution context allows it
	// structurally (e.g. secure context).
	Permitted() bool
	// NewRecognizer constructs a handle delivering events to cb.
	NewRecognizer(cb Callbacks) (Recognizer, error)
}

// Notifier surfaces controller notices.
type Notifier interface {
	Toast(message string)
	ToastError(message string)
	Alert(message string)
}

// Controller feeds recognized text into an input buffer. Final results are
// appended to the buffer (never replacing a typed draft); interim results go
// to the preview only.
type Controller struct {
	capability Capability
	notifier   Notifier
	appendText func(text string)
	preview    func(text string)
	logger     *log.Logger

	mu         sync.Mutex
	state      State
	recognizer Recognizer
}

// NewController creates a controller in the uninitialized state.
// appendText receives finalized recognition results; preview receives
// interim partials and may be nil.
func NewController(capability Capability, notifier Notifier, appendText func(string), preview func(string)) *Controller {
	if preview == nil {
		preview = func(string) {}
	}
	return &Controller{
		capability: capability,
		notifier:   notifier,
		appendText: appendText,
		preview:    preview,
		logger:     log.NewWithOptions(os.Stderr, log.Options{Prefix: "voice"}),
		state:      StateUninitialized,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Toggle starts or stops listening. It must be called from a user-initiated
// action; the first call lazily constructs the recognizer.
func (c *Controller) Toggle() {
	c.mu.Lock()

	switch c.state {
	case StateUnavailable:
		c.mu.Unlock()
		return

	case StateUninitialized:
		if !c.capability.Permitted() {
			c.state = StateUnavailable
			c.mu.Unlock()
			c.notifier.Alert(insecureContextAlert)
			return
		}
		if !c.capability.Supported() {
			c.state = StateUnavailable
			c.mu.Unlock()
			c.notifier.Alert(unsupportedAlert)
			return
		}
		rec, err := c.capability.NewRecognizer(Callbacks{
			OnStart:  c.onStart,
			OnEnd:    c.onEnd,
			OnResult: c.onResult,
			OnError:  c.onError,
		})
		if err != nil {
			c.state = StateUnavailable
			c.mu.Unlock()
			c.logger.Error("failed to construct recognizer", "error", err)
			c.notifier.Alert(unsupportedAlert)
			return
		}
		c.recognizer = rec
		c.state = StateIdle
	}

	listening := c.state == StateListening
	rec := c.recognizer
	c.mu.Unlock()

	if listening {
		rec.Stop()
		return
	}
	if err := rec.Start(); err != nil {
		// Out-of-sync recognizer; force it back to a stopped state.
		c.logger.Error("failed to start recognition", "error", err)
		rec.Stop()
	}
}

func (c *Controller) onStart() {
	c.mu.Lock()
	c.state = StateListening
	c.mu.Unlock()
	c.notifier.Toast(listeningToast)
}

func (c *Controller) onEnd() {
	c.mu.Lock()
	if c.state != StateListening {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.mu.Unlock()
	c.notifier.Toast(stoppedToast)
}

func (c *Controller) onResult(text string, final bool) {
	if !final {
		c.preview(text)
		return
	}
	if text != "" {
		c.appendText(text)
	}
}

// onError drops back to idle. Every error produces either a transient
// notice or a blocking explanatory prompt; none is silently swallowed.
func (c *Controller) onError(code ErrorCode) {
	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()

	c.logger.Warn("recognition error", "code", code)
	switch code {
	case ErrPermissionDenied:
		c.notifier.Alert(permissionAlert)
	case ErrNoSpeech:
		c.notifier.Toast(noSpeechToast)
	default:
		c.notifier.ToastError(networkToast)
	}
}

// Close aborts any in-flight recognition so no callback can fire after the
// owning view is gone.
func (c *Controller) Close() {
	c.mu.Lock()
	rec := c.recognizer
	c.recognizer = nil
	if c.state == StateListening || c.state == StateIdle {
		c.state = StateUninitialized
	}
	c.mu.Unlock()

	if rec != nil {
		rec.Abort()
	}
}

// UnsupportedCapability is a host without dictation; the controller
// degrades to unavailable on first use.
type UnsupportedCapability struct{}

func (UnsupportedCapability) Supported() bool { return false }
func (UnsupportedCapability) Permitted() bool { return true }
func (UnsupportedCapability) NewRecognizer(Callbacks) (Recognizer, error) {
	return nil, nil
}
