// Package intent defines the closed set of actions a habit-tracking email can
// express. Every variant implements Intent; the set is sealed by an unexported
// method so consumers can switch over it exhaustively.
//
// Intents are transient: they are produced per message by the pre-parser or
// the LLM parser, validated, executed, and only persisted as JSON in the
// email audit log.
package intent

import "strings"

// Type is the wire discriminator of an intent ("type" in JSON).
type Type string

const (
	TypeCheckin     Type = "checkin"
	TypeAddHabit    Type = "add_habit"
	TypeRemoveHabit Type = "remove_habit"
	TypeUpdateHabit Type = "update_habit"
	TypeQuery       Type = "query"
	TypeGreeting    Type = "greeting"
	TypeHelp        Type = "help"
	TypeSettings    Type = "settings"
	TypeCorrection  Type = "correction"
	TypeAffirm      Type = "affirm"
	TypeDecline     Type = "decline"

	// TypeNote is a pseudo-intent some models emit for free-form context.
	// Normalization folds it into the check-in and it never reaches execution.
	TypeNote Type = "note"
)

// Status is the completion level of a single check-in entry.
type Status string

const (
	StatusFull    Status = "full"
	StatusPartial Status = "partial"
	StatusSkip    Status = "skip"
)

// Valid reports whether s is one of full, partial or skip.
func (s Status) Valid() bool {
	switch s {
	case StatusFull, StatusPartial, StatusSkip:
		return true
	}
	return false
}

// Intent is one extracted action. The concrete types are the pointer types
// declared in this package.
type Intent interface {
	Type() Type
	isIntent()
}

// List is an ordered sequence of intents as extracted from one message.
type List []Intent

// Types returns the discriminators of l in order.
func (l List) Types() []Type {
	out := make([]Type, len(l))
	for i, in := range l {
		out[i] = in.Type()
	}
	return out
}

// CheckinEntry reports progress on one habit for the check-in date.
//
// InvalidValue holds the raw JSON of a "value" that was present but not a
// number; validation rejects entries carrying one. Done is the legacy boolean
// some models emit instead of a status.
type CheckinEntry struct {
	Habit        string   `json:"habit"`
	Status       Status   `json:"status,omitempty"`
	Value        *float64 `json:"value,omitempty"`
	Unit         *string  `json:"unit,omitempty"`
	Note         *string  `json:"note,omitempty"`
	Done         *bool    `json:"-"`
	InvalidValue string   `json:"-"`
}

// Checkin records one or more habit entries for a day. Date is "", "today",
// "yesterday" or YYYY-MM-DD.
type Checkin struct {
	Date    string         `json:"date,omitempty"`
	Entries []CheckinEntry `json:"entries"`
}

// HabitSpec describes a habit to start tracking.
type HabitSpec struct {
	Name        string   `json:"name"`
	Unit        *string  `json:"unit,omitempty"`
	Goal        *float64 `json:"goal,omitempty"`
	InvalidGoal string   `json:"-"`
}

// AddHabit starts tracking one or more habits.
type AddHabit struct {
	Habits []HabitSpec `json:"habits"`
}

// RemoveHabit stops tracking habits by name.
type RemoveHabit struct {
	Habits []string `json:"habits"`
}

// UpdateHabit changes the goal and/or unit of an existing habit.
type UpdateHabit struct {
	Habit       string   `json:"habit"`
	Unit        *string  `json:"unit,omitempty"`
	Goal        *float64 `json:"goal,omitempty"`
	InvalidGoal string   `json:"-"`
}

// Query is a question about stats or progress.
type Query struct {
	Scope    string `json:"scope,omitempty"`
	Question string `json:"question"`
}

// Settings carries preference changes.
type Settings struct {
	Changes map[string]any `json:"changes,omitempty"`
}

// Correction disputes something previously recorded.
type Correction struct {
	Claim string `json:"claim"`
}

// Note is free-form context attached to the day's check-in.
type Note struct {
	Text string `json:"text"`
}

type (
	Greeting struct{}
	Help     struct{}
	Affirm   struct{}
	Decline  struct{}
)

func (*Checkin) Type() Type     { return TypeCheckin }
func (*AddHabit) Type() Type    { return TypeAddHabit }
func (*RemoveHabit) Type() Type { return TypeRemoveHabit }
func (*UpdateHabit) Type() Type { return TypeUpdateHabit }
func (*Query) Type() Type       { return TypeQuery }
func (*Greeting) Type() Type    { return TypeGreeting }
func (*Help) Type() Type        { return TypeHelp }
func (*Settings) Type() Type    { return TypeSettings }
func (*Correction) Type() Type  { return TypeCorrection }
func (*Affirm) Type() Type      { return TypeAffirm }
func (*Decline) Type() Type     { return TypeDecline }
func (*Note) Type() Type        { return TypeNote }

func (*Checkin) isIntent()     {}
func (*AddHabit) isIntent()    {}
func (*RemoveHabit) isIntent() {}
func (*UpdateHabit) isIntent() {}
func (*Query) isIntent()       {}
func (*Greeting) isIntent()    {}
func (*Help) isIntent()        {}
func (*Settings) isIntent()    {}
func (*Correction) isIntent()  {}
func (*Affirm) isIntent()      {}
func (*Decline) isIntent()     {}
func (*Note) isIntent()        {}

// Clone returns a copy of in that shares no mutable slices, maps or pointers
// with the original.
func Clone(in Intent) Intent {
	switch v := in.(type) {
	case *Checkin:
		c := &Checkin{Date: v.Date, Entries: make([]CheckinEntry, len(v.Entries))}
		for i, e := range v.Entries {
			e.Value = cloneFloat(e.Value)
			e.Unit = cloneString(e.Unit)
			e.Note = cloneString(e.Note)
			if e.Done != nil {
				d := *e.Done
				e.Done = &d
			}
			c.Entries[i] = e
		}
		return c
	case *AddHabit:
		a := &AddHabit{Habits: make([]HabitSpec, len(v.Habits))}
		for i, h := range v.Habits {
			h.Unit = cloneString(h.Unit)
			h.Goal = cloneFloat(h.Goal)
			a.Habits[i] = h
		}
		return a
	case *RemoveHabit:
		return &RemoveHabit{Habits: append([]string(nil), v.Habits...)}
	case *UpdateHabit:
		u := *v
		u.Unit = cloneString(v.Unit)
		u.Goal = cloneFloat(v.Goal)
		return &u
	case *Query:
		q := *v
		return &q
	case *Settings:
		s := &Settings{}
		if v.Changes != nil {
			s.Changes = make(map[string]any, len(v.Changes))
			for k, val := range v.Changes {
				s.Changes[k] = val
			}
		}
		return s
	case *Correction:
		c := *v
		return &c
	case *Note:
		n := *v
		return &n
	case *Greeting:
		return &Greeting{}
	case *Help:
		return &Help{}
	case *Affirm:
		return &Affirm{}
	case *Decline:
		return &Decline{}
	}
	return in
}

// NormalizeName lowercases and trims a habit name.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

// String returns a pointer to s.
func String(s string) *string { return &s }

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
