package reminders

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/erdincayar/klinik-asistan-sub000/internal/llm"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// Preferences tune generated reminder text for a clinic.
type Preferences struct {
	ClinicName string
	Tone       string
}

// RenderTemplate substitutes {hasta}, {islem} and {gun}. An empty template
// falls back to DefaultTemplate.
func RenderTemplate(template string, d Due) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	name := strings.TrimSpace(d.PatientName)
	if name == "" {
		name = "Değerli hastamız"
	}
	return strings.NewReplacer(
		"{hasta}", name,
		"{islem}", d.Category.Label(),
		"{gun}", strconv.Itoa(d.IntervalDays),
	).Replace(template)
}

// Generator writes reminder messages, optionally rewritten by the oracle.
type Generator struct {
	oracle llm.Client
	logger *logging.Logger
}

// NewGenerator returns a Generator. A nil oracle always uses the template.
func NewGenerator(oracle llm.Client, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{oracle: oracle, logger: logger}
}

// Generate never fails: any oracle problem yields the rendered template.
func (g *Generator) Generate(ctx context.Context, d Due, rule Rule, prefs Preferences) string {
	fallback := RenderTemplate(rule.MessageTemplate, d)
	if g == nil || g.oracle == nil {
		return fallback
	}

	resp, err := g.oracle.Complete(ctx, llm.Request{
		System:      []string{reminderSystemPrompt(prefs)},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: reminderUserPrompt(d, fallback)}},
		MaxTokens:   300,
		Temperature: 0.7,
	})
	if err != nil {
		g.logger.Warn("reminder enrichment failed, using template", "patient_id", d.PatientID, "error", err)
		return fallback
	}
	text := strings.TrimSpace(llm.StripCodeFence(resp.Text))
	if text == "" {
		return fallback
	}
	return text
}

func reminderSystemPrompt(prefs Preferences) string {
	tone := strings.TrimSpace(prefs.Tone)
	if tone == "" {
		tone = "samimi ve profesyonel"
	}
	clinic := strings.TrimSpace(prefs.ClinicName)
	if clinic == "" {
		clinic = "kliniğimiz"
	}
	return fmt.Sprintf(`Sen %s adına hastalara kısa hatırlatma mesajları yazan bir asistansın.
Ton: %s. Türkçe yaz, en fazla 3 cümle kullan, fiyat veya tıbbi tavsiye verme.
Sadece mesaj metnini döndür.`, clinic, tone)
}

func reminderUserPrompt(d Due, draft string) string {
	return fmt.Sprintf(`Hasta: %s
İşlem: %s
Son işlem tarihi: %s
Önerilen tekrar aralığı: %d gün
Taslak: %s`,
		d.PatientName, d.Category.Label(), d.LastTreatmentDate.Format("02.01.2006"), d.IntervalDays, draft)
}
