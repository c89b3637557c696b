package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/i474232898/fpv-flight-conditions/internal/location"
	"github.com/i474232898/fpv-flight-conditions/internal/scheduler"
	"github.com/i474232898/fpv-flight-conditions/internal/store"
	"github.com/i474232898/fpv-flight-conditions/internal/weather"
)

var validate = validator.New()

// streamKeepAlive is how often an idle report stream sends a comment line.
var streamKeepAlive = 15 * time.Second

// Refresher exposes the scheduler's state and its manual retry.
type Refresher interface {
	Status() scheduler.Status
	Refresh(ctx context.Context) error
}

// ReportStore exposes report history and live updates.
type ReportStore interface {
	GetRange(from, to time.Time) ([]weather.Report, error)
	Subscribe() (<-chan weather.Report, func())
}

// LocationController receives position fixes and permission changes from the app.
type LocationController interface {
	RecordFix(at weather.Coordinates)
	SetPermission(granted bool)
}

// conditionsResponse is the consumer-facing view of the current state.
type conditionsResponse struct {
	Loading   bool              `json:"loading"`
	Error     *string           `json:"error"`
	Location  *weather.Place    `json:"location"`
	Snapshot  *weather.Snapshot `json:"snapshot"`
	ReportID  string            `json:"reportId,omitempty"`
	UpdatedAt *time.Time        `json:"updatedAt"`
}

func newConditionsResponse(st scheduler.Status) conditionsResponse {
	resp := conditionsResponse{Loading: st.Loading()}
	if st.Err != nil {
		msg := errorMessage(st.Err)
		resp.Error = &msg
	}
	if st.Report != nil {
		r := st.Report
		resp.Location = &r.Location
		resp.Snapshot = &r.Snapshot
		resp.ReportID = r.ID
		resp.UpdatedAt = &r.FetchedAt
	}
	return resp
}

// errorMessage gives permission problems a user-actionable message distinct from network failures.
func errorMessage(err error) string {
	if errors.Is(err, weather.ErrPermissionDenied) {
		return "Permission to access location was denied"
	}
	return err.Error()
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, refresher Refresher, reports ReportStore, loc LocationController, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	v1 := app.Group("/api/v1")

	v1.Get("/conditions", func(c *fiber.Ctx) error {
		return c.JSON(newConditionsResponse(refresher.Status()))
	})

	v1.Post("/conditions/refresh", func(c *fiber.Ctx) error {
		err := refresher.Refresh(c.UserContext())
		var upstream *weather.UpstreamError
		switch {
		case err == nil:
			return c.JSON(newConditionsResponse(refresher.Status()))
		case errors.Is(err, scheduler.ErrRefreshInProgress):
			return fiber.NewError(fiber.StatusConflict, err.Error())
		case errors.Is(err, weather.ErrPermissionDenied):
			return fiber.NewError(fiber.StatusForbidden, errorMessage(err))
		case errors.Is(err, location.ErrNoFix):
			return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
		case errors.As(err, &upstream):
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		case errors.Is(err, scheduler.ErrStopped):
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		default:
			return fiber.NewError(fiber.StatusInternalServerError, "failed to refresh conditions")
		}
	})

	v1.Get("/conditions/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		history, err := reports.GetRange(req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather history")
		}

		return c.JSON(fiber.Map{
			"from":    req.From,
			"to":      req.To,
			"reports": history,
		})
	})

	v1.Get("/conditions/stream", func(c *fiber.Ctx) error {
		updates, cancel := reports.Subscribe()

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer cancel()

			// Commit the headers right away so the client sees the stream open.
			fmt.Fprint(w, ": connected\n\n")
			if err := w.Flush(); err != nil {
				return
			}
			streamReports(w, updates, logger)
		}))
		return nil
	})

	v1.Put("/location/fix", func(c *fiber.Ctx) error {
		var req fixRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc.RecordFix(weather.Coordinates{Lat: *req.Latitude, Lon: *req.Longitude})
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Put("/location/permission", func(c *fiber.Ctx) error {
		var req permissionRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc.SetPermission(*req.Granted)
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// streamReports writes one server-sent event per published report until the
// client goes away or the subscription is closed.
func streamReports(w *bufio.Writer, updates <-chan weather.Report, logger *zap.Logger) {
	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case report, ok := <-updates:
			if !ok {
				return
			}
			payload, err := json.Marshal(report)
			if err != nil {
				logger.Error("dropping report from stream",
					zap.String("id", report.ID),
					zap.Error(err),
				)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: report\ndata: %s\n\n", report.ID, payload)
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
		}

		// A failed flush means the client disconnected.
		if err := w.Flush(); err != nil {
			return
		}
	}
}

// fixRequest is the body of PUT /location/fix.
type fixRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

// permissionRequest is the body of PUT /location/permission.
type permissionRequest struct {
	Granted *bool `json:"granted" validate:"required"`
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
