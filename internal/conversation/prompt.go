package conversation

import (
	"fmt"
	"strings"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
)

const classifierPromptTemplate = `Sen bir estetik/diş kliniğinin mesaj asistanısın. Kullanıcının yazdığı serbest metni aşağıdaki tiplerden TAM OLARAK BİRİNE sınıflandır ve SADECE tek bir JSON nesnesi döndür. JSON dışında hiçbir açıklama yazma.

Bugün: %s (%s). Tarihleri YYYY-MM-DD, saatleri HH:MM biçiminde yaz.

Tarih kuralları:
- "bugün" = %s, "yarın" = %s
- gün adı ("pazartesi", "salı"...) = o günün bir sonraki tarihi; bugünün gün adı bir sonraki haftayı ifade eder
- tarih belirtilmemişse bugünü kullan

Tutar kuralı: Tüm tutarlar KURUŞ cinsinden tam sayıdır. Metindeki TL tutarını 100 ile çarp (ör. "3000" veya "3.000 TL" -> 300000). Ondalık sayı kullanma.

İşlem kategorileri (treatmentType): %s
Gider kategorileri (category): %s

Tipler:
{"type":"APPOINTMENT","patientName":"Ad Soyad","date":"YYYY-MM-DD","time":"HH:MM","treatmentType":"BOTOX","notes":""}
{"type":"INCOME","patientName":"Ad Soyad","treatmentType":"DOLGU","treatmentName":"Dudak dolgusu","amount":300000,"notes":""}
{"type":"EXPENSE","description":"Kira","amount":2500000,"category":"KIRA"}
{"type":"STOCK_IN","productName":"Ürün adı","quantity":5,"notes":""}
{"type":"STOCK_OUT","productName":"Ürün adı","quantity":2,"notes":""}
{"type":"AMBIGUOUS","message":"Kullanıcıya sorulacak netleştirme sorusu","options":["seçenek 1","seçenek 2"]}
{"type":"ERROR","message":"Mesajın neden anlaşılamadığı"}

Hasta adı geçmeyen ödemeler EXPENSE'tir. Ürün girişi/çıkışı (stok, kutu, şişe, adet) STOCK_IN/STOCK_OUT'tur. Emin değilsen AMBIGUOUS döndür.`

// classifierSystemPrompt seeds the oracle with today's date, the closed
// enumerations and the conversion rules.
func classifierSystemPrompt(now time.Time) string {
	today := calendar.StartOfDay(now)
	treatments := make([]string, 0, len(catalog.TreatmentCategories))
	for _, c := range catalog.TreatmentCategories {
		treatments = append(treatments, fmt.Sprintf("%s (%s)", c, c.Label()))
	}
	expenses := make([]string, 0, len(catalog.ExpenseCategories))
	for _, c := range catalog.ExpenseCategories {
		expenses = append(expenses, fmt.Sprintf("%s (%s)", c, c.Label()))
	}
	return fmt.Sprintf(classifierPromptTemplate,
		calendar.ISODate(today), calendar.WeekdayName(today.Weekday()),
		calendar.ISODate(today), calendar.ISODate(today.AddDate(0, 0, 1)),
		strings.Join(treatments, ", "),
		strings.Join(expenses, ", "),
	)
}
