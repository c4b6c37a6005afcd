package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/audit"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/commands"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// CommandRouter handles slash commands.
type CommandRouter interface {
	Route(ctx context.Context, text, clinicID string) commands.Result
}

// MessageClassifier classifies free text.
type MessageClassifier interface {
	Classify(ctx context.Context, text string, now time.Time) Parsed
}

// ActionDispatcher performs a classified action.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, clinicID string, msg Parsed) Outcome
}

// Reply is what the assistant answers to one inbound text.
type Reply struct {
	Text         string `json:"text"`
	IsCommand    bool   `json:"is_command"`
	Command      string `json:"command,omitempty"`
	Kind         Kind   `json:"kind,omitempty"`
	Success      bool   `json:"success"`
	RecordID     string `json:"record_id,omitempty"`
	PatientIsNew bool   `json:"patient_is_new,omitempty"`
}

// Processor is the single entry point for inbound chat text: slash
// commands go to the router, everything else is classified and dispatched.
type Processor struct {
	router     CommandRouter
	classifier MessageClassifier
	dispatcher ActionDispatcher
	audit      audit.Recorder
	now        calendar.NowFunc
	logger     *logging.Logger
}

func NewProcessor(router CommandRouter, classifier MessageClassifier, dispatcher ActionDispatcher, recorder audit.Recorder, now calendar.NowFunc, logger *logging.Logger) *Processor {
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = calendar.NowIn(calendar.Location(""))
	}
	return &Processor{
		router:     router,
		classifier: classifier,
		dispatcher: dispatcher,
		audit:      recorder,
		now:        now,
		logger:     logger,
	}
}

// Handle never fails; the reply text always carries the outcome.
func (p *Processor) Handle(ctx context.Context, clinicID, text string) (reply Reply) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("processor panicked", "clinic_id", clinicID, "panic", fmt.Sprint(rec))
			reply = Reply{Text: msgActionFailed}
		}
	}()

	if strings.HasPrefix(strings.TrimSpace(text), "/") {
		res := p.router.Route(ctx, text, clinicID)
		if res.IsCommand {
			reply = Reply{Text: res.Text, IsCommand: true, Command: res.Command, Success: res.Success}
			p.record(ctx, audit.Event{
				EventType:    audit.EventCommandRouted,
				ClinicID:     clinicID,
				Kind:         res.Command,
				Success:      res.Success,
				OriginalText: text,
				Reply:        res.Text,
				Tags:         []string{"command"},
			})
			return reply
		}
	}

	parsed := p.classifier.Classify(ctx, text, p.now(ctx, clinicID))
	out := p.dispatcher.Dispatch(ctx, clinicID, parsed)
	reply = Reply{
		Text:         out.Text,
		Kind:         out.Kind,
		Success:      out.Success,
		RecordID:     out.RecordID,
		PatientIsNew: out.PatientIsNew,
	}
	tags := []string{"classified"}
	if out.PatientIsNew {
		tags = append(tags, "new_patient")
	}
	p.record(ctx, audit.Event{
		EventType:    audit.EventActionDispatched,
		ClinicID:     clinicID,
		Kind:         string(out.Kind),
		Success:      out.Success,
		RecordID:     out.RecordID,
		PatientIsNew: out.PatientIsNew,
		OriginalText: text,
		Reply:        out.Text,
		Tags:         tags,
	})
	return reply
}

func (p *Processor) record(ctx context.Context, evt audit.Event) {
	if p.audit == nil {
		return
	}
	if err := p.audit.Record(ctx, evt); err != nil {
		p.logger.Warn("audit record failed", "clinic_id", evt.ClinicID, "event_type", evt.EventType, "error", err)
	}
}
