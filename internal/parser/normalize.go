package parser

import (
	"strings"

	"github.com/tbourn/go-habit-mail/internal/intent"
)

// Normalize applies the post-extraction rules to a decoded list. It never
// mutates its input and Normalize(Normalize(l)) equals Normalize(l).
//
//  1. note pseudo-intents are folded into the last entry of the first
//     check-in, then removed;
//  2. several check-ins are merged into one, placed first;
//  3. habit names are lowercased and trimmed;
//  4. entry status is forced into full|partial|skip.
func Normalize(in intent.List) intent.List {
	list := make(intent.List, 0, len(in))
	for _, it := range in {
		list = append(list, intent.Clone(it))
	}

	list = absorbNotes(list)
	list = mergeCheckins(list)

	for _, it := range list {
		switch v := it.(type) {
		case *intent.Checkin:
			for i := range v.Entries {
				e := &v.Entries[i]
				e.Habit = intent.NormalizeName(e.Habit)
				e.Status = coerceStatus(e.Status, e.Done)
				e.Done = nil
			}
		case *intent.AddHabit:
			for i := range v.Habits {
				v.Habits[i].Name = intent.NormalizeName(v.Habits[i].Name)
			}
		case *intent.RemoveHabit:
			for i := range v.Habits {
				v.Habits[i] = intent.NormalizeName(v.Habits[i])
			}
		case *intent.UpdateHabit:
			v.Habit = intent.NormalizeName(v.Habit)
		}
	}
	return list
}

func absorbNotes(list intent.List) intent.List {
	var note *intent.Note
	out := list[:0]
	for _, it := range list {
		if n, ok := it.(*intent.Note); ok {
			if note == nil {
				note = n
			}
			continue
		}
		out = append(out, it)
	}
	if note == nil || note.Text == "" {
		return out
	}
	for _, it := range out {
		if c, ok := it.(*intent.Checkin); ok {
			if len(c.Entries) > 0 {
				c.Entries[len(c.Entries)-1].Note = intent.String(note.Text)
			}
			break
		}
	}
	return out
}

func mergeCheckins(list intent.List) intent.List {
	var checkins []*intent.Checkin
	for _, it := range list {
		if c, ok := it.(*intent.Checkin); ok {
			checkins = append(checkins, c)
		}
	}
	if len(checkins) < 2 {
		return list
	}

	merged := &intent.Checkin{Date: checkins[0].Date}
	for _, c := range checkins {
		if merged.Date == "" {
			merged.Date = c.Date
		}
		merged.Entries = append(merged.Entries, c.Entries...)
	}
	out := intent.List{merged}
	for _, it := range list {
		if _, ok := it.(*intent.Checkin); !ok {
			out = append(out, it)
		}
	}
	return out
}

// coerceStatus keeps valid statuses, maps a legacy done=false to skip and
// defaults everything else to full.
func coerceStatus(s intent.Status, done *bool) intent.Status {
	s = intent.Status(strings.ToLower(strings.TrimSpace(string(s))))
	if s.Valid() {
		return s
	}
	if done != nil && !*done {
		return intent.StatusSkip
	}
	return intent.StatusFull
}
