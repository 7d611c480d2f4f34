package flow

import (
	"fmt"
	"log/slog"

	"github.com/BTreeMap/BrandOS/internal/models"
)

// EventInput is the loosely typed form of an event as received from a presentation layer.
type EventInput struct {
	Type         string               `json:"type"`
	Value        string               `json:"value,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
	Answers      map[string]string    `json:"answers,omitempty"`
}

// Decoder turns an EventInput into a typed Event.
type Decoder func(in EventInput) (Event, error)

var registry = make(map[EventKind]Decoder)

// Register associates an event kind with its Decoder.
func Register(kind EventKind, dec Decoder) {
	registry[kind] = dec
}

// Get retrieves the Decoder for a given event kind.
func Get(kind EventKind) (Decoder, bool) {
	dec, ok := registry[kind]
	return dec, ok
}

// Decode finds and runs the Decoder for the input's type.
func Decode(in EventInput) (Event, error) {
	dec, ok := Get(EventKind(in.Type))
	if !ok {
		slog.Debug("No decoder registered for event type", "type", in.Type)
		return nil, fmt.Errorf("%w: event type %q", models.ErrUnknownValue, in.Type)
	}
	ev, err := dec(in)
	if err != nil {
		slog.Debug("Flow Decode failed", "type", in.Type, "error", err)
		return nil, err
	}
	return ev, nil
}

func noPayload(ev Event) Decoder {
	return func(EventInput) (Event, error) { return ev, nil }
}

// Register default decoders
func init() {
	Register(EventSelectCompanyType, func(in EventInput) (Event, error) {
		ct, err := models.ParseCompanyType(in.Value)
		return SelectCompanyType{Type: ct}, err
	})
	Register(EventSelectCompanyStage, func(in EventInput) (Event, error) {
		cs, err := models.ParseCompanyStage(in.Value)
		return SelectCompanyStage{Stage: cs}, err
	})
	Register(EventSelectFlow, func(in EventInput) (Event, error) {
		ft, err := models.ParseFlowType(in.Value)
		return SelectFlow{Flow: ft}, err
	})
	Register(EventSelectPlan, func(in EventInput) (Event, error) {
		pt, err := models.ParsePlanType(in.Value)
		return SelectPlan{Plan: pt}, err
	})
	Register(EventSetActiveView, func(in EventInput) (Event, error) {
		v, err := models.ParseActiveView(in.Value)
		return SetActiveView{View: v}, err
	})
	Register(EventSetNotificationFilter, func(in EventInput) (Event, error) {
		f, err := models.ParseNotificationFilter(in.Value)
		return SetNotificationFilter{Filter: f}, err
	})
	Register(EventOpenNotification, func(in EventInput) (Event, error) {
		if in.Notification == nil {
			return nil, fmt.Errorf("%s requires a notification", EventOpenNotification)
		}
		return OpenNotification{Notification: *in.Notification}, nil
	})
	Register(EventUpdateAnswers, func(in EventInput) (Event, error) {
		return UpdateAnswers{Answers: in.Answers}, nil
	})
	Register(EventGoBack, noPayload(GoBack{}))
	Register(EventPurchaseDocumentAddon, noPayload(PurchaseDocumentAddon{}))
	Register(EventAdvanceQuestionnaire, noPayload(AdvanceQuestionnaire{}))
	Register(EventRetreatQuestionnaire, noPayload(RetreatQuestionnaire{}))
	Register(EventReset, noPayload(Reset{}))
}
