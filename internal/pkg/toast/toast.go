// Package toast is the fire-and-forget user alert primitive.
package toast

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
	LevelAction  Level = "action"
)

const (
	DefaultSuccessDuration = 3 * time.Second
	DefaultErrorDuration   = 5 * time.Second
	DefaultInfoDuration    = 4 * time.Second
)

// Action is a button rendered on a toast. ID is echoed back when pressed.
type Action struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type Toast struct {
	ID             string        `json:"id"`
	Level          Level         `json:"level"`
	Title          string        `json:"title,omitempty"`
	Message        string        `json:"message"`
	Icon           string        `json:"icon,omitempty"`
	Duration       time.Duration `json:"duration"`
	Actions        []Action      `json:"actions,omitempty"`
	NotificationID int64         `json:"notification_id,omitempty"`
}

// Toaster shows toasts. Implementations must not block.
type Toaster interface {
	Success(msg string)
	Error(msg string)
	Info(msg string)
	Custom(t Toast)
}

// New fills in an id and the level's default duration.
func New(level Level, msg string) Toast {
	t := Toast{Level: level, Message: msg}
	return Normalize(t)
}

// Normalize assigns an ID and duration when they are missing.
func Normalize(t Toast) Toast {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Duration <= 0 {
		switch t.Level {
		case LevelSuccess:
			t.Duration = DefaultSuccessDuration
		case LevelError:
			t.Duration = DefaultErrorDuration
		default:
			t.Duration = DefaultInfoDuration
		}
	}
	return t
}

// Func adapts a function receiving normalized toasts to a Toaster.
type Func func(Toast)

func (f Func) Success(msg string) { f(New(LevelSuccess, msg)) }
func (f Func) Error(msg string)   { f(New(LevelError, msg)) }
func (f Func) Info(msg string)    { f(New(LevelInfo, msg)) }
func (f Func) Custom(t Toast)     { f(Normalize(t)) }

// NewLogToaster prints toasts to the process log.
func NewLogToaster(prefix string) Toaster {
	return Func(func(t Toast) {
		actions := make([]string, 0, len(t.Actions))
		for _, a := range t.Actions {
			actions = append(actions, a.ID)
		}
		log.Printf("%s toast level=%s id=%s notification_id=%d title=%q message=%q actions=%v", prefix, t.Level, t.ID, t.NotificationID, t.Title, t.Message, actions)
	})
}

// Recorder keeps every toast it is given.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Success(msg string) { r.add(New(LevelSuccess, msg)) }
func (r *Recorder) Error(msg string)   { r.add(New(LevelError, msg)) }
func (r *Recorder) Info(msg string)    { r.add(New(LevelInfo, msg)) }
func (r *Recorder) Custom(t Toast)     { r.add(Normalize(t)) }

func (r *Recorder) add(t Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
}

func (r *Recorder) All() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Toast, len(r.toasts))
	copy(out, r.toasts)
	return out
}

// Last returns the most recent toast.
func (r *Recorder) Last() (Toast, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.toasts) == 0 {
		return Toast{}, false
	}
	return r.toasts[len(r.toasts)-1], true
}

func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.toasts {
		if t.Level == level {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = nil
}

var (
	_ Toaster = Func(nil)
	_ Toaster = (*Recorder)(nil)
)
