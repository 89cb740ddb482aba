// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bureau-foundation/pollhistory/lib/ref"
	"github.com/bureau-foundation/pollhistory/messaging"
)

// Matrix event types that carry poll data. Both the stable names and
// the MSC3381 unstable prefixes are accepted; clients in the wild still
// send the unstable forms.
const (
	TypeStart    ref.EventType = "m.poll.start"
	TypeResponse ref.EventType = "m.poll.response"
	TypeEnd      ref.EventType = "m.poll.end"

	TypeUnstableStart    ref.EventType = "org.matrix.msc3381.poll.start"
	TypeUnstableResponse ref.EventType = "org.matrix.msc3381.poll.response"
	TypeUnstableEnd      ref.EventType = "org.matrix.msc3381.poll.end"

	// TypeEncrypted events are included because a poll response in an
	// encrypted room arrives as m.room.encrypted with a cleartext
	// m.relates_to. The viewer cannot decrypt them, but it can flag the
	// poll they relate to.
	TypeEncrypted ref.EventType = "m.room.encrypted"
)

// TimelineTypes lists every event type the assembler consumes, for use
// in /messages and /sync filters.
var TimelineTypes = []string{
	string(TypeStart), string(TypeResponse), string(TypeEnd),
	string(TypeUnstableStart), string(TypeUnstableResponse), string(TypeUnstableEnd),
	string(TypeEncrypted),
}

// maxAnswers is the MSC3381 cap on poll options; further answers are
// dropped.
const maxAnswers = 20

// Relation types used by poll events.
const (
	relReference = "m.reference"
	relReplace   = "m.replace"
)

// ErrMalformed is returned (wrapped) for poll events whose content
// cannot be interpreted.
var ErrMalformed = errors.New("malformed poll event")

// Action classifies a parsed poll event.
type Action int

const (
	// ActionIgnore is returned for events that carry nothing for any
	// poll (other event types, encrypted events without a reference).
	ActionIgnore Action = iota
	ActionStart
	ActionEdit
	ActionResponse
	ActionEnd
	ActionEncrypted
)

// Definition is the creator-controlled part of a poll: everything an
// edit can change.
type Definition struct {
	Question      string
	Answers       []AnswerDefinition
	Kind          Kind
	MaxSelections int
}

// AnswerDefinition is one option as declared in the start event.
type AnswerDefinition struct {
	ID   string
	Text string
}

// ParsedEvent is a poll-relevant Matrix event reduced to the fields the
// assembler needs.
type ParsedEvent struct {
	Action    Action
	EventID   string
	Sender    string
	Timestamp time.Time

	// PollID is the start event ID the event belongs to. For
	// ActionStart it equals EventID.
	PollID string

	// Definition is set for ActionStart and ActionEdit.
	Definition *Definition

	// Selections is the raw answer list of an ActionResponse. Empty
	// means the sender withdrew their vote.
	Selections []string
}

type relatesTo struct {
	RelType string `json:"rel_type"`
	EventID string `json:"event_id"`
}

type textBlock struct {
	Body     string `json:"body"`
	MimeType string `json:"mimetype,omitempty"`
}

type stableAnswer struct {
	ID   string      `json:"m.id"`
	Text []textBlock `json:"m.text"`
}

type stableStart struct {
	Question struct {
		Text []textBlock `json:"m.text"`
	} `json:"question"`
	Kind          string         `json:"kind"`
	MaxSelections int            `json:"max_selections"`
	Answers       []stableAnswer `json:"answers"`
}

type unstableAnswer struct {
	ID   string `json:"id"`
	Text string `json:"org.matrix.msc1767.text"`
	Body string `json:"body"`
}

type unstableStart struct {
	Question struct {
		Text string `json:"org.matrix.msc1767.text"`
		Body string `json:"body"`
	} `json:"question"`
	Kind          string           `json:"kind"`
	MaxSelections int              `json:"max_selections"`
	Answers       []unstableAnswer `json:"answers"`
}

type startContent struct {
	Stable     *stableStart   `json:"m.poll"`
	Unstable   *unstableStart `json:"org.matrix.msc3381.poll.start"`
	RelatesTo  *relatesTo     `json:"m.relates_to"`
	NewContent *startContent  `json:"m.new_content"`
}

type responseContent struct {
	Selections *[]string `json:"m.selections"`
	Unstable   *struct {
		Answers []string `json:"answers"`
	} `json:"org.matrix.msc3381.poll.response"`
	RelatesTo *relatesTo `json:"m.relates_to"`
}

type relatedContent struct {
	RelatesTo *relatesTo `json:"m.relates_to"`
}

// decodeContent converts the generic content map into a typed struct
// by round-tripping through JSON.
func decodeContent(content map[string]any, target any) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("re-encoding content: %w", err)
	}
	return json.Unmarshal(data, target)
}

// ParseEvent classifies a Matrix event and extracts its poll payload.
// Events of unrelated types return ActionIgnore with a nil error.
func ParseEvent(event messaging.Event) (ParsedEvent, error) {
	parsed := ParsedEvent{
		EventID:   event.EventID.String(),
		Sender:    event.Sender.String(),
		Timestamp: event.Timestamp(),
	}

	switch event.Type {
	case TypeStart, TypeUnstableStart:
		var content startContent
		if err := decodeContent(event.Content, &content); err != nil {
			return parsed, fmt.Errorf("%w: %s: %v", ErrMalformed, parsed.EventID, err)
		}
		if content.RelatesTo != nil && content.RelatesTo.RelType == relReplace {
			if content.RelatesTo.EventID == "" || content.NewContent == nil {
				return parsed, fmt.Errorf("%w: %s: edit without target or m.new_content", ErrMalformed, parsed.EventID)
			}
			definition, err := parseDefinition(*content.NewContent)
			if err != nil {
				return parsed, fmt.Errorf("%w: %s: %v", ErrMalformed, parsed.EventID, err)
			}
			parsed.Action = ActionEdit
			parsed.PollID = content.RelatesTo.EventID
			parsed.Definition = &definition
			return parsed, nil
		}
		definition, err := parseDefinition(content)
		if err != nil {
			return parsed, fmt.Errorf("%w: %s: %v", ErrMalformed, parsed.EventID, err)
		}
		parsed.Action = ActionStart
		parsed.PollID = parsed.EventID
		parsed.Definition = &definition
		return parsed, nil

	case TypeResponse, TypeUnstableResponse:
		var content responseContent
		if err := decodeContent(event.Content, &content); err != nil {
			return parsed, fmt.Errorf("%w: %s: %v", ErrMalformed, parsed.EventID, err)
		}
		target, err := referenceTarget(content.RelatesTo)
		if err != nil {
			return parsed, fmt.Errorf("%w: %s: %v", ErrMalformed, parsed.EventID, err)
		}
		switch {
		case content.Selections != nil:
			parsed.Selections = *content.Selections
		case content.Unstable != nil:
			parsed.Selections = content.Unstable.Answers
		default:
			return parsed, fmt.Errorf("%w: %s: response has no selections", ErrMalformed, parsed.EventID)
		}
		parsed.Action = ActionResponse
		parsed.PollID = target
		return parsed, nil

	case TypeEnd, TypeUnstableEnd:
		var content relatedContent
		if err := decodeContent(event.Content, &content); err != nil {
			return parsed, fmt.Errorf("%w: %s: %v", ErrMalformed, parsed.EventID, err)
		}
		target, err := referenceTarget(content.RelatesTo)
		if err != nil {
			return parsed, fmt.Errorf("%w: %s: %v", ErrMalformed, parsed.EventID, err)
		}
		parsed.Action = ActionEnd
		parsed.PollID = target
		return parsed, nil

	case TypeEncrypted:
		var content relatedContent
		if err := decodeContent(event.Content, &content); err != nil {
			return parsed, nil
		}
		target, err := referenceTarget(content.RelatesTo)
		if err != nil {
			return parsed, nil
		}
		parsed.Action = ActionEncrypted
		parsed.PollID = target
		return parsed, nil
	}
	return parsed, nil
}

func referenceTarget(relation *relatesTo) (string, error) {
	if relation == nil || relation.RelType != relReference || relation.EventID == "" {
		return "", errors.New("missing m.reference relation")
	}
	return relation.EventID, nil
}

func parseDefinition(content startContent) (Definition, error) {
	switch {
	case content.Stable != nil:
		return parseStableDefinition(content.Stable)
	case content.Unstable != nil:
		return parseUnstableDefinition(content.Unstable)
	default:
		return Definition{}, errors.New("no m.poll or org.matrix.msc3381.poll.start block")
	}
}

func parseStableDefinition(start *stableStart) (Definition, error) {
	definition := Definition{
		Question:      plainText(start.Question.Text),
		Kind:          parseKind(start.Kind),
		MaxSelections: max(start.MaxSelections, 1),
	}
	for _, answer := range start.Answers {
		definition.Answers = appendAnswer(definition.Answers, answer.ID, plainText(answer.Text))
	}
	return definition, validateDefinition(definition)
}

func parseUnstableDefinition(start *unstableStart) (Definition, error) {
	definition := Definition{
		Question:      firstNonEmpty(start.Question.Text, start.Question.Body),
		Kind:          parseKind(start.Kind),
		MaxSelections: max(start.MaxSelections, 1),
	}
	for _, answer := range start.Answers {
		definition.Answers = appendAnswer(definition.Answers, answer.ID, firstNonEmpty(answer.Text, answer.Body))
	}
	return definition, validateDefinition(definition)
}

// appendAnswer skips answers with empty or duplicate IDs and enforces
// maxAnswers.
func appendAnswer(answers []AnswerDefinition, id, text string) []AnswerDefinition {
	if id == "" || len(answers) >= maxAnswers {
		return answers
	}
	for _, existing := range answers {
		if existing.ID == id {
			return answers
		}
	}
	return append(answers, AnswerDefinition{ID: id, Text: text})
}

func validateDefinition(definition Definition) error {
	if definition.Question == "" {
		return errors.New("empty question")
	}
	if len(definition.Answers) == 0 {
		return errors.New("no answers")
	}
	return nil
}

// parseKind maps both stable and unstable kind strings. Unknown kinds
// are treated as undisclosed.
func parseKind(raw string) Kind {
	switch raw {
	case "m.disclosed", "org.matrix.msc3381.poll.disclosed":
		return KindDisclosed
	default:
		return KindUndisclosed
	}
}

// plainText picks the text/plain representation from an extensible
// events text array, falling back to the first entry.
func plainText(blocks []textBlock) string {
	for _, block := range blocks {
		if block.MimeType == "" || block.MimeType == "text/plain" {
			return block.Body
		}
	}
	if len(blocks) > 0 {
		return blocks[0].Body
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
