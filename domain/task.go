package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// State tracks task progress. The enumeration is flat: any state may move to
// any other state directly, there is no transition graph.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateComplete   State = "complete"
)

// States lists every recognized state value.
var States = []State{StateNotStarted, StateInProgress, StateComplete}

// Valid reports whether s is a recognized state.
func (s State) Valid() bool {
	for _, v := range States {
		if s == v {
			return true
		}
	}
	return false
}

// Color is the display tag assigned to a task.
type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorYellow Color = "yellow"
	ColorPurple Color = "purple"
)

// Colors lists every recognized color value.
var Colors = []Color{ColorRed, ColorBlue, ColorGreen, ColorYellow, ColorPurple}

// Valid reports whether c is a recognized color.
func (c Color) Valid() bool {
	for _, v := range Colors {
		if c == v {
			return true
		}
	}
	return false
}

// Task represents one user-owned unit of work. The owner reference never
// changes after creation and is not part of the wire representation; every
// query is owner-scoped at the storage layer.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	State       State     `json:"state"`
	Color       Color     `json:"color"`
	Order       int       `json:"order"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ValidationError reports request input that failed validation.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

// ErrNoFields is returned for an update that supplies nothing to change. A
// no-op mutation is a caller error, not a silent success.
var ErrNoFields = errors.New("no fields to update")

func invalidStateError() error {
	return ValidationError{Msg: fmt.Sprintf("state must be one of %s", joinStates())}
}

func invalidColorError() error {
	return ValidationError{Msg: fmt.Sprintf("color must be one of %s", joinColors())}
}

func joinStates() string {
	parts := make([]string, len(States))
	for i, s := range States {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

func joinColors() string {
	parts := make([]string, len(Colors))
	for i, c := range Colors {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

// Draft carries the fields accepted when creating a task.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	State       State  `json:"state"`
	Color       Color  `json:"color"`
}

// Normalize trims the title, applies defaults for absent state/color and
// validates the result. It must succeed before the draft reaches storage.
func (d *Draft) Normalize() error {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return ValidationError{Msg: "title is required"}
	}
	if d.State == "" {
		d.State = StateNotStarted
	}
	if !d.State.Valid() {
		return invalidStateError()
	}
	if d.Color == "" {
		d.Color = ColorBlue
	}
	if !d.Color.Valid() {
		return invalidColorError()
	}
	return nil
}

// Patch is a sparse task update. A nil field is left untouched; a non-nil
// field (including a pointer to the empty string for description) replaces
// the stored value.
type Patch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	State       *State  `json:"state"`
	Color       *Color  `json:"color"`
}

// Empty reports whether the patch supplies no recognized field.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.State == nil && p.Color == nil
}

// Validate checks every supplied field. Absent fields are skipped.
func (p Patch) Validate() error {
	if p.Empty() {
		return ErrNoFields
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ValidationError{Msg: "title must not be empty"}
	}
	if p.State != nil && !p.State.Valid() {
		return invalidStateError()
	}
	if p.Color != nil && !p.Color.Valid() {
		return invalidColorError()
	}
	return nil
}
