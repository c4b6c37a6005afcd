package appointments

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/http/httpx"
	"github.com/erdincayar/klinik-asistan-sub000/internal/patients"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// Handler provides the appointment and schedule HTTP endpoints.
type Handler struct {
	service  *Service
	patients *patients.Resolver
	now      calendar.NowFunc
	logger   *logging.Logger
}

func NewHandler(service *Service, resolver *patients.Resolver, now calendar.NowFunc, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = calendar.NowIn(calendar.Location(""))
	}
	return &Handler{service: service, patients: resolver, now: now, logger: logger}
}

// RegisterRoutes mounts appointment endpoints. Expected under /api/appointments.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listDay)
	r.Post("/", h.create)
	r.Get("/slots", h.slots)
	r.Post("/{appointmentID}/cancel", h.cancel)
	r.Post("/{appointmentID}/reschedule", h.reschedule)
}

// RegisterScheduleRoutes mounts the weekly schedule endpoints. Expected
// under /api/schedule.
func (h *Handler) RegisterScheduleRoutes(r chi.Router) {
	r.Get("/", h.getSchedule)
	r.Put("/", h.putSchedule)
}

type createAppointmentRequest struct {
	PatientID     string `json:"patient_id" validate:"required_without=PatientName"`
	PatientName   string `json:"patient_name" validate:"required_without=PatientID"`
	Phone         string `json:"phone"`
	Date          string `json:"date" validate:"required"`
	StartTime     string `json:"start_time" validate:"required"`
	EndTime       string `json:"end_time"`
	TreatmentType string `json:"treatment_type"`
	Notes         string `json:"notes"`
}

type rescheduleRequest struct {
	SlotIndex int `json:"slot_index" validate:"required,min=1"`
}

type scheduleRequest struct {
	Days []scheduleDay `json:"days" validate:"max=7,dive"`
}

type scheduleDay struct {
	Weekday      int    `json:"weekday" validate:"min=0,max=6"`
	StartTime    string `json:"start_time" validate:"required"`
	EndTime      string `json:"end_time" validate:"required"`
	SlotDuration int    `json:"slot_duration" validate:"required,min=5,max=480"`
	IsActive     bool   `json:"is_active"`
}

// resolveDay accepts ISO dates and Turkish expressions ("yarın", "cuma").
func (h *Handler) resolveDay(r *http.Request, clinicID, raw string) (time.Time, error) {
	day, ok := calendar.ResolveDate(raw, h.now(r.Context(), clinicID))
	if !ok {
		return time.Time{}, apperr.Validation("unrecognized date " + raw)
	}
	return day, nil
}

func (h *Handler) slots(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	day, err := h.resolveDay(r, clinicID, r.URL.Query().Get("date"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	slots, err := h.service.Slots(r.Context(), clinicID, day)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"date":      calendar.ISODate(day),
		"slots":     slots,
		"available": len(AvailableSlots(slots)),
	})
}

func (h *Handler) listDay(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	day, err := h.resolveDay(r, clinicID, r.URL.Query().Get("date"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	list, err := h.service.Day(r.Context(), clinicID, day)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"date": calendar.ISODate(day), "appointments": list})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req createAppointmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}

	a, err := h.buildAppointment(r, clinicID, req)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	if a.PatientID != "" {
		err = h.service.Book(r.Context(), a)
	} else {
		_, _, err = h.service.BookForName(r.Context(), a, h.patients, req.PatientName, req.Phone)
	}
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) buildAppointment(r *http.Request, clinicID string, req createAppointmentRequest) (*Appointment, error) {
	day, err := h.resolveDay(r, clinicID, req.Date)
	if err != nil {
		return nil, err
	}
	start, err := calendar.ParseClock(req.StartTime)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}
	var end calendar.Clock
	if strings.TrimSpace(req.EndTime) != "" {
		if end, err = calendar.ParseClock(req.EndTime); err != nil {
			return nil, apperr.Validation(err.Error())
		}
	}
	treatment, err := catalog.ParseTreatmentCategory(req.TreatmentType)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		ClinicID:      clinicID,
		PatientID:     req.PatientID,
		Date:          day,
		Start:         start,
		End:           end,
		TreatmentType: treatment,
		Notes:         req.Notes,
	}
	return a, nil
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	a, err := h.service.Cancel(r.Context(), clinicID, chi.URLParam(r, "appointmentID"))
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) reschedule(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req rescheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	a, err := h.service.RescheduleToSlot(r.Context(), clinicID, chi.URLParam(r, "appointmentID"), req.SlotIndex)
	if err != nil {
		var idxErr *SlotIndexError
		if errors.As(err, &idxErr) {
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]any{
				"error":     idxErr.Error(),
				"available": idxErr.Available,
			})
			return
		}
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) getSchedule(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	schedules, err := h.service.Schedules(r.Context(), clinicID)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"days": schedules})
}

func (h *Handler) putSchedule(w http.ResponseWriter, r *http.Request) {
	clinicID, err := httpx.ClinicID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	var req scheduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	schedules := make([]Schedule, 0, len(req.Days))
	for _, d := range req.Days {
		start, err := calendar.ParseClock(d.StartTime)
		if err != nil {
			httpx.WriteError(w, h.logger, apperr.Validation(err.Error()))
			return
		}
		end, err := calendar.ParseClock(d.EndTime)
		if err != nil {
			httpx.WriteError(w, h.logger, apperr.Validation(err.Error()))
			return
		}
		schedules = append(schedules, Schedule{
			Weekday:     time.Weekday(d.Weekday),
			Start:       start,
			End:         end,
			SlotMinutes: d.SlotDuration,
			Active:      d.IsActive,
		})
	}
	if err := h.service.SetSchedules(r.Context(), clinicID, schedules); err != nil {
		httpx.WriteError(w, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"days": schedules})
}
