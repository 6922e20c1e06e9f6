package intent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownType is returned by Decode for a discriminator outside the set.
var ErrUnknownType = errors.New("unknown intent type")

// Decode turns one JSON object into its concrete intent using the "type"
// discriminator.
func Decode(raw json.RawMessage) (Intent, error) {
	var head struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}

	var in Intent
	switch head.Type {
	case TypeCheckin:
		in = &Checkin{}
	case TypeAddHabit:
		in = &AddHabit{}
	case TypeRemoveHabit:
		in = &RemoveHabit{}
	case TypeUpdateHabit:
		in = &UpdateHabit{}
	case TypeQuery:
		in = &Query{}
	case TypeGreeting:
		in = &Greeting{}
	case TypeHelp:
		in = &Help{}
	case TypeSettings:
		in = &Settings{}
	case TypeCorrection:
		in = &Correction{}
	case TypeAffirm:
		in = &Affirm{}
	case TypeDecline:
		in = &Decline{}
	case TypeNote:
		in = &Note{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, head.Type)
	}
	if err := json.Unmarshal(raw, in); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	return in, nil
}

// DecodeList decodes every element it can. Elements that fail are skipped and
// reported in errs, in order.
func DecodeList(raws []json.RawMessage) (List, []error) {
	out := make(List, 0, len(raws))
	var errs []error
	for i, r := range raws {
		in, err := Decode(r)
		if err != nil {
			errs = append(errs, fmt.Errorf("intents[%d]: %w", i, err))
			continue
		}
		out = append(out, in)
	}
	return out, errs
}

// withType encodes v and prepends the "type" discriminator.
func withType(t Type, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	buf.WriteString(strconv.Quote(string(t)))
	if body = bytes.TrimSpace(body); len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

func (v *Checkin) MarshalJSON() ([]byte, error) {
	type plain Checkin
	return withType(TypeCheckin, (*plain)(v))
}

func (v *AddHabit) MarshalJSON() ([]byte, error) {
	type plain AddHabit
	return withType(TypeAddHabit, (*plain)(v))
}

func (v *RemoveHabit) MarshalJSON() ([]byte, error) {
	type plain RemoveHabit
	return withType(TypeRemoveHabit, (*plain)(v))
}

func (v *UpdateHabit) MarshalJSON() ([]byte, error) {
	type plain UpdateHabit
	return withType(TypeUpdateHabit, (*plain)(v))
}

func (v *Query) MarshalJSON() ([]byte, error) {
	type plain Query
	return withType(TypeQuery, (*plain)(v))
}

func (v *Settings) MarshalJSON() ([]byte, error) {
	type plain Settings
	return withType(TypeSettings, (*plain)(v))
}

func (v *Correction) MarshalJSON() ([]byte, error) {
	type plain Correction
	return withType(TypeCorrection, (*plain)(v))
}

func (v *Note) MarshalJSON() ([]byte, error) {
	type plain Note
	return withType(TypeNote, (*plain)(v))
}

func (*Greeting) MarshalJSON() ([]byte, error) { return withType(TypeGreeting, struct{}{}) }
func (*Help) MarshalJSON() ([]byte, error)     { return withType(TypeHelp, struct{}{}) }
func (*Affirm) MarshalJSON() ([]byte, error)   { return withType(TypeAffirm, struct{}{}) }
func (*Decline) MarshalJSON() ([]byte, error)  { return withType(TypeDecline, struct{}{}) }

// UnmarshalJSON accepts numbers, numeric strings and null for "value" and
// keeps anything else in InvalidValue.
func (e *CheckinEntry) UnmarshalJSON(b []byte) error {
	type plain CheckinEntry
	aux := struct {
		*plain
		Value json.RawMessage `json:"value"`
		Done  json.RawMessage `json:"done"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.Value, e.InvalidValue = decodeNumber(aux.Value)
	e.Done = decodeBool(aux.Done)
	return nil
}

func (h *HabitSpec) UnmarshalJSON(b []byte) error {
	type plain HabitSpec
	aux := struct {
		*plain
		Goal json.RawMessage `json:"goal"`
	}{plain: (*plain)(h)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	h.Goal, h.InvalidGoal = decodeNumber(aux.Goal)
	return nil
}

func (u *UpdateHabit) UnmarshalJSON(b []byte) error {
	type plain UpdateHabit
	aux := struct {
		*plain
		Goal json.RawMessage `json:"goal"`
	}{plain: (*plain)(u)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	u.Goal, u.InvalidGoal = decodeNumber(aux.Goal)
	return nil
}

func decodeNumber(raw json.RawMessage) (*float64, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ""
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f, ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &f, ""
		}
		return nil, s
	}
	return nil, string(raw)
}

func decodeBool(raw json.RawMessage) *bool {
	var b bool
	if len(raw) == 0 || json.Unmarshal(raw, &b) != nil {
		return nil
	}
	return &b
}
