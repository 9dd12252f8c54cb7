package stt

import "encoding/json"

// EventKind tags a classified recognizer event.
type EventKind int

const (
	// KindNone marks events with nothing to relay (empty transcripts,
	// unknown types, malformed payloads).
	KindNone EventKind = iota
	// KindPartial is in-progress text that may still change.
	KindPartial
	// KindProgressiveFinal is a final candidate for the current turn. The
	// recognizer re-emits it as it refines punctuation and casing, so only
	// the last one before a new turn is authoritative.
	KindProgressiveFinal
	// KindUnformattedFinal is the fast, lower-quality duplicate that
	// accompanies a formatted final for the same turn. It must be dropped
	// to avoid double delivery.
	KindUnformattedFinal
	KindError
	KindSessionReady
	KindSessionTerminated
)

// Event is a classified recognizer event.
type Event struct {
	Kind    EventKind
	Text    string // transcript text for Partial/ProgressiveFinal
	Message string // error detail for KindError
}

// rawEvent mirrors the upstream JSON envelope.
type rawEvent struct {
	Type            string `json:"type"`
	Transcript      string `json:"transcript"`
	EndOfTurn       bool   `json:"end_of_turn"`
	TurnIsFormatted bool   `json:"turn_is_formatted"`
	Error           string `json:"error"`
}

// Classify maps one raw upstream message to a classified event. Pure; no
// state is consulted or mutated.
func Classify(raw []byte) Event {
	var ev rawEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}
	}

	switch ev.Type {
	case "Turn":
		switch {
		case ev.EndOfTurn && !ev.TurnIsFormatted:
			return Event{Kind: KindUnformattedFinal, Text: ev.Transcript}
		case ev.TurnIsFormatted && ev.Transcript != "":
			return Event{Kind: KindProgressiveFinal, Text: ev.Transcript}
		case !ev.EndOfTurn && ev.Transcript != "":
			return Event{Kind: KindPartial, Text: ev.Transcript}
		}
		return Event{}
	case "Error":
		msg := ev.Error
		if msg == "" {
			msg = "unknown recognizer error"
		}
		return Event{Kind: KindError, Message: msg}
	case "Begin":
		return Event{Kind: KindSessionReady}
	case "Termination":
		return Event{Kind: KindSessionTerminated}
	}
	return Event{}
}
