package api

import (
	"strconv"
	"time"

	apperrors "github.com/gmsas95/recovery-tracker/internal/errors"
	"github.com/gmsas95/recovery-tracker/internal/recovery"
	"github.com/gmsas95/recovery-tracker/internal/security"
	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

func (s *Server) handleHealth(c *fiber.Ctx) error {
	snap := s.metrics.Snapshot()
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   s.version,
		"timestamp": time.Now().Unix(),
		"uptime":    int64(snap.Uptime.Seconds()),
	})
}

func (s *Server) handleCatalogDay(c *fiber.Ctx) error {
	surgeryType := recovery.SurgeryType(c.Params("surgeryType"))
	day, err := c.ParamsInt("day")
	if err != nil {
		return s.fail(c, apperrors.Invalid(apperrors.ErrInvalidDay, "day must be a number"))
	}

	templates, err := s.catalog.Templates(c.UserContext(), surgeryType, day)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"surgery_type": surgeryType,
		"day":          day,
		"templates":    templates,
	})
}

func (s *Server) handleEnroll(c *fiber.Ctx) error {
	var req enrollRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, apperrors.Invalid(apperrors.ErrBadRequest, "invalid request"))
	}

	startDate := s.tracker.Today()
	if req.StartDate != "" {
		d, err := parseDate(req.StartDate)
		if err != nil {
			return s.fail(c, err)
		}
		startDate = d
	}

	e, err := s.tracker.Enroll(c.UserContext(), patientID(c), recovery.SurgeryType(req.SurgeryType), startDate)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(e)
}

func (s *Server) handleUpdateEnrollment(c *fiber.Ctx) error {
	var req updateEnrollmentRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, apperrors.Invalid(apperrors.ErrBadRequest, "invalid request"))
	}

	var upd recovery.EnrollmentUpdate
	if req.SurgeryType != nil {
		st := recovery.SurgeryType(*req.SurgeryType)
		upd.SurgeryType = &st
	}
	if req.StartDate != nil {
		d, err := parseDate(*req.StartDate)
		if err != nil {
			return s.fail(c, err)
		}
		upd.StartDate = &d
	}

	e, err := s.tracker.UpdateEnrollment(c.UserContext(), patientID(c), upd)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(e)
}

func (s *Server) handleOverview(c *fiber.Ctx) error {
	ov, err := s.tracker.Overview(c.UserContext(), patientID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(ov)
}

func (s *Server) handleDailyTasks(c *fiber.Ctx) error {
	day := 0
	if q := c.Query("day"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || !recovery.ValidDay(n) {
			return s.fail(c, apperrors.Invalid(apperrors.ErrInvalidDay, "day must be between 1 and %d", recovery.ProgramLength))
		}
		day = n
	}

	tasks, err := s.tracker.GetDailyTasks(c.UserContext(), patientID(c), day)
	if err != nil {
		return s.fail(c, err)
	}

	resp := dailyTasksResponse{
		Tasks: make([]taskView, 0, len(tasks)),
		Stats: recovery.NewStats(tasks),
	}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, newTaskView(t))
	}
	return c.JSON(resp)
}

func (s *Server) handleCompleteTask(c *fiber.Ctx) error {
	var req completionRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, apperrors.Invalid(apperrors.ErrBadRequest, "invalid request"))
	}
	if req.IsCompleted == nil {
		return s.fail(c, apperrors.Invalid(apperrors.ErrBadRequest, "is_completed is required"))
	}
	if req.Notes != nil {
		if err := security.ValidateNotes(*req.Notes); err != nil {
			return s.fail(c, apperrors.Invalid(apperrors.ErrBadRequest, "notes: %v", err))
		}
	}

	rec, err := s.tracker.CompleteTask(c.UserContext(), patientID(c), c.Params("id"), *req.IsCompleted, req.Notes)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(rec)
}

func (s *Server) handleTodayStats(c *fiber.Ctx) error {
	stats, err := s.tracker.GetTodayCompletionStats(c.UserContext(), patientID(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(stats)
}

func parseDate(value string) (time.Time, error) {
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, apperrors.Invalid(apperrors.ErrBadRequest, "start_date must use the %s format", dateLayout)
	}
	return d, nil
}
