package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdincayar/klinik-asistan-sub000/internal/audit"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/commands"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

type stubRouter struct {
	calls  []string
	result commands.Result
}

func (s *stubRouter) Route(_ context.Context, text, _ string) commands.Result {
	s.calls = append(s.calls, text)
	return s.result
}

type stubClassifier struct {
	calls  []string
	seenAt time.Time
	result Parsed
}

func (s *stubClassifier) Classify(_ context.Context, text string, now time.Time) Parsed {
	s.calls = append(s.calls, text)
	s.seenAt = now
	return s.result
}

func TestProcessorRoutesSlashCommands(t *testing.T) {
	router := &stubRouter{result: commands.Result{IsCommand: true, Command: "kasa", Text: "🏦 Kasa", Success: true}}
	classifier := &stubClassifier{}
	recorder := audit.NewMemoryRecorder()
	p := NewProcessor(router, classifier, newPipeline(t).dispatcher, recorder, calendar.FixedNow(now), logging.Discard())

	reply := p.Handle(context.Background(), "c1", "/kasa")

	assert.True(t, reply.IsCommand)
	assert.Equal(t, "kasa", reply.Command)
	assert.Equal(t, "🏦 Kasa", reply.Text)
	assert.Empty(t, classifier.calls)

	events := recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventCommandRouted, events[0].EventType)
	assert.Equal(t, "kasa", events[0].Kind)
	assert.Equal(t, []string{"command"}, events[0].Tags)
}

func TestProcessorClassifiesFreeText(t *testing.T) {
	router := &stubRouter{}
	classifier := &stubClassifier{result: ExpenseRecord{Description: "Kira", Amount: 2500000, Category: catalog.ExpenseKira}}
	recorder := audit.NewMemoryRecorder()
	pl := newPipeline(t)
	p := NewProcessor(router, classifier, pl.dispatcher, recorder, calendar.FixedNow(now), logging.Discard())

	reply := p.Handle(context.Background(), "c1", "Kira 25000 odendi")

	require.True(t, reply.Success, reply.Text)
	assert.False(t, reply.IsCommand)
	assert.Equal(t, KindExpense, reply.Kind)
	assert.NotEmpty(t, reply.RecordID)
	assert.Empty(t, router.calls)
	assert.True(t, classifier.seenAt.Equal(now))

	events := recorder.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventActionDispatched, events[0].EventType)
	assert.Equal(t, "EXPENSE", events[0].Kind)
	assert.Equal(t, reply.RecordID, events[0].RecordID)
	assert.Equal(t, "Kira 25000 odendi", events[0].OriginalText)
}

func TestProcessorFallsBackToClassifierForNonCommands(t *testing.T) {
	router := &stubRouter{result: commands.Result{IsCommand: false}}
	classifier := &stubClassifier{result: Unparsed{Message: msgNotUnderstood, OriginalText: "/ 3000"}}
	p := NewProcessor(router, classifier, newPipeline(t).dispatcher, nil, calendar.FixedNow(now), logging.Discard())

	reply := p.Handle(context.Background(), "c1", "/ 3000")

	assert.Len(t, router.calls, 1)
	assert.Len(t, classifier.calls, 1)
	assert.Equal(t, KindError, reply.Kind)
	assert.False(t, reply.Success)
}

func TestProcessorTagsNewPatients(t *testing.T) {
	classifier := &stubClassifier{result: IncomeRecord{PatientName: "Elif Demir", TreatmentType: catalog.TreatmentBotox, Amount: 500000}}
	recorder := audit.NewMemoryRecorder()
	p := NewProcessor(&stubRouter{}, classifier, newPipeline(t).dispatcher, recorder, calendar.FixedNow(now), logging.Discard())

	reply := p.Handle(context.Background(), "c1", "Elif botoks 5000")

	require.True(t, reply.Success)
	assert.True(t, reply.PatientIsNew)
	assert.Equal(t, []string{"classified", "new_patient"}, recorder.Events()[0].Tags)
}

type panickingClassifier struct{}

func (panickingClassifier) Classify(context.Context, string, time.Time) Parsed { panic("boom") }

func TestProcessorRecoversFromPanics(t *testing.T) {
	p := NewProcessor(&stubRouter{}, panickingClassifier{}, newPipeline(t).dispatcher, nil, calendar.FixedNow(now), logging.Discard())
	reply := p.Handle(context.Background(), "c1", "merhaba")
	assert.Equal(t, msgActionFailed, reply.Text)
	assert.False(t, reply.Success)
}
