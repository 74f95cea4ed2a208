package quiz

import (
	"bytes"
	"encoding/json"
)

type answerKind uint8

const (
	answerNone answerKind = iota
	answerText
	answerList
	answerMalformed
)

// Answer is either a single string or a list of strings. Payloads of any
// other JSON shape decode without error into a malformed Answer, which
// never matches a question.
type Answer struct {
	kind answerKind
	text string
	list []string
}

func Text(s string) Answer { return Answer{kind: answerText, text: s} }

func List(vals ...string) Answer {
	cp := make([]string, len(vals))
	copy(cp, vals)
	return Answer{kind: answerList, list: cp}
}

func (a Answer) IsZero() bool { return a.kind == answerNone }
func (a Answer) IsList() bool { return a.kind == answerList }

// String returns the text value and whether the answer is a single string.
func (a Answer) String() (string, bool) {
	return a.text, a.kind == answerText
}

// Strings returns a copy of the list value and whether the answer is a list.
func (a Answer) Strings() ([]string, bool) {
	if a.kind != answerList {
		return nil, false
	}
	out := make([]string, len(a.list))
	copy(out, a.list)
	return out, true
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case answerText:
		return json.Marshal(a.text)
	case answerList:
		if a.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.list)
	default:
		return []byte("null"), nil
	}
}

func (a *Answer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*a = Answer{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Text(s)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		list := make([]string, 0, len(raw))
		for _, r := range raw {
			var s string
			if err := json.Unmarshal(r, &s); err != nil {
				a.kind = answerMalformed
				return nil
			}
			list = append(list, s)
		}
		*a = Answer{kind: answerList, list: list}
	default:
		a.kind = answerMalformed
	}
	return nil
}
