package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/report-dispatch/internal/domain"
	"github.com/kursadbilgin/report-dispatch/internal/schedule"
	"github.com/kursadbilgin/report-dispatch/internal/service"
)

type ScheduleService interface {
	Get(ctx context.Context) (*service.ScheduleView, error)
	Update(ctx context.Context, input service.UpdateScheduleInput) (*service.ScheduleView, error)
}

type ReportHandler struct {
	dispatcher service.ReportDispatcher
	schedules  ScheduleService
}

func NewReportHandler(dispatcher service.ReportDispatcher, schedules ScheduleService) (*ReportHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("report dispatcher is required")
	}
	if schedules == nil {
		return nil, fmt.Errorf("schedule service is required")
	}
	return &ReportHandler{dispatcher: dispatcher, schedules: schedules}, nil
}

func RegisterReportRoutes(router fiber.Router, dispatcher service.ReportDispatcher, schedules ScheduleService) error {
	h, err := NewReportHandler(dispatcher, schedules)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/reports/dispatch", h.Dispatch)
	v1.Get("/reports/schedule", h.GetSchedule)
	v1.Put("/reports/schedule", h.UpdateSchedule)

	return nil
}

type decisionResponse struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
	Date   string `json:"date"`
}

type recipientFailureResponse struct {
	RecipientID int64  `json:"recipientId"`
	Kind        string `json:"kind"`
	Error       string `json:"error"`
}

type skippedRecipientResponse struct {
	RecipientID int64  `json:"recipientId"`
	Reason      string `json:"reason"`
}

type outcomeResponse struct {
	Date       string                     `json:"date"`
	Attempted  int                        `json:"attempted"`
	Delivered  int                        `json:"delivered"`
	Failed     []recipientFailureResponse `json:"failed"`
	Skipped    []skippedRecipientResponse `json:"skipped"`
	StartedAt  time.Time                  `json:"startedAt"`
	FinishedAt time.Time                  `json:"finishedAt"`
}

type dispatchResponse struct {
	RunID    string           `json:"runId"`
	Trigger  string           `json:"trigger"`
	Forced   bool             `json:"forced"`
	Decision decisionResponse `json:"decision"`
	Summary  string           `json:"summary"`
	Outcome  *outcomeResponse `json:"outcome,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// weekdayTokens accepts send days as JSON numbers or strings.
type weekdayTokens []string

func (w *weekdayTokens) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	tokens := make([]string, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var s string
			if err := json.Unmarshal(item, &s); err != nil {
				return err
			}
			tokens = append(tokens, s)
			continue
		}
		var n json.Number
		if err := json.Unmarshal(item, &n); err != nil {
			return fmt.Errorf("send day must be a number or a name: %w", err)
		}
		tokens = append(tokens, n.String())
	}

	*w = tokens
	return nil
}

type updateScheduleRequest struct {
	SendDays   *weekdayTokens `json:"sendDays"`
	SendTime   *string        `json:"sendTime"`
	Convention *string        `json:"convention"`
}

type scheduleResponse struct {
	SendDays           []string         `json:"sendDays"`
	SendDaysRaw        string           `json:"sendDaysRaw"`
	Convention         string           `json:"convention"`
	SendTime           string           `json:"sendTime"`
	SendTimeRaw        string           `json:"sendTimeRaw"`
	SendTimeFallback   bool             `json:"sendTimeFallback"`
	LastReportSentDate *string          `json:"lastReportSentDate"`
	Now                time.Time        `json:"now"`
	Decision           decisionResponse `json:"decision"`
}

// Dispatch runs the manual trigger. ?force=true bypasses the schedule gates.
func (h *ReportHandler) Dispatch(c *fiber.Ctx) error {
	force := false
	if raw := strings.TrimSpace(c.Query("force")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return toHTTPError(fmt.Errorf("%w: force must be a boolean", domain.ErrValidation))
		}
		force = parsed
	}

	result, err := h.dispatcher.Dispatch(c.Context(), service.DispatchRequest{
		Trigger: service.TriggerManual,
		Force:   force,
	})
	if err != nil {
		// A marker commit failure still carries the completed fan-out.
		if result != nil && result.Outcome != nil && errors.Is(err, domain.ErrMarkerCommit) {
			resp := toDispatchResponse(result)
			resp.Error = err.Error()
			return c.Status(fiber.StatusInternalServerError).JSON(resp)
		}
		return toHTTPError(err)
	}

	status := fiber.StatusOK
	if result.Outcome.PartialFailure() {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(toDispatchResponse(result))
}

func (h *ReportHandler) GetSchedule(c *fiber.Ctx) error {
	view, err := h.schedules.Get(c.Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toScheduleResponse(view))
}

func (h *ReportHandler) UpdateSchedule(c *fiber.Ctx) error {
	var req updateScheduleRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	input := service.UpdateScheduleInput{
		SendTime:   req.SendTime,
		Convention: req.Convention,
	}
	if req.SendDays != nil {
		days := []string(*req.SendDays)
		input.SendDays = &days
	}

	view, err := h.schedules.Update(c.Context(), input)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toScheduleResponse(view))
}

func toDecisionResponse(d schedule.Decision) decisionResponse {
	return decisionResponse{
		Action: string(d.Action),
		Reason: d.Reason.String(),
		Date:   d.Date.String(),
	}
}

func toDispatchResponse(result *service.DispatchResult) dispatchResponse {
	resp := dispatchResponse{
		RunID:    result.RunID,
		Trigger:  string(result.Trigger),
		Forced:   result.Forced,
		Decision: toDecisionResponse(result.Decision),
		Summary:  result.Summary(),
	}
	if result.Outcome == nil {
		return resp
	}

	o := result.Outcome
	out := &outcomeResponse{
		Date:       o.Date.String(),
		Attempted:  o.Attempted,
		Delivered:  o.Delivered,
		Failed:     make([]recipientFailureResponse, 0, len(o.Failed)),
		Skipped:    make([]skippedRecipientResponse, 0, len(o.Skipped)),
		StartedAt:  o.StartedAt,
		FinishedAt: o.FinishedAt,
	}
	for _, f := range o.Failed {
		out.Failed = append(out.Failed, recipientFailureResponse{
			RecipientID: f.RecipientID,
			Kind:        f.Kind.String(),
			Error:       f.Error,
		})
	}
	for _, s := range o.Skipped {
		out.Skipped = append(out.Skipped, skippedRecipientResponse{
			RecipientID: s.RecipientID,
			Reason:      s.Reason,
		})
	}
	resp.Outcome = out
	return resp
}

func toScheduleResponse(view *service.ScheduleView) scheduleResponse {
	days := make([]string, 0, len(view.SendDays))
	for _, d := range view.SendDays {
		days = append(days, d.String())
	}

	var last *string
	if view.LastReportSentDate != nil {
		s := view.LastReportSentDate.String()
		last = &s
	}

	return scheduleResponse{
		SendDays:           days,
		SendDaysRaw:        view.SendDaysRaw,
		Convention:         string(view.Convention),
		SendTime:           view.SendTime.String(),
		SendTimeRaw:        view.SendTimeRaw,
		SendTimeFallback:   view.SendTimeFallback,
		LastReportSentDate: last,
		Now:                view.Now,
		Decision:           toDecisionResponse(view.Decision),
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRecipientsUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, err.Error())
	default:
		return err
	}
}
