package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/riskibarqy/iptv-companion/internal/platform/logging"
	"github.com/riskibarqy/iptv-companion/internal/usecase"
)

const defaultEventsLimit = 20

type Handler struct {
	guideService *usecase.GuideService
	scheduler    *usecase.Scheduler
	logger       *logging.Logger
	validator    *validator.Validate
}

func NewHandler(guideService *usecase.GuideService, scheduler *usecase.Scheduler, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		guideService: guideService,
		scheduler:    scheduler,
		logger:       logger,
		validator:    validator.New(),
	}
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	out := healthDTO{Status: "ok"}
	if h.guideService != nil {
		out.Guide = toGuideHealthDTO(h.guideService.Snapshot())
	}
	if h.scheduler != nil {
		out.Scheduler = toSchedulerHealthDTO(h.scheduler.Status())
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}

func (h *Handler) GetNowNext(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetNowNext")
	defer span.End()

	result, err := h.guideService.NowNext(ctx, r.PathValue("channelKey"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, toNowNextDTO(result))
}

type locateMatchQuery struct {
	Title    string   `validate:"required,max=200"`
	Channels []string `validate:"max=100,dive,required,max=200"`
}

func (h *Handler) LocateMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.LocateMatch")
	defer span.End()

	query := locateMatchQuery{
		Title:    strings.TrimSpace(r.URL.Query().Get("title")),
		Channels: splitQueryCSV(r.URL.Query().Get("channels")),
	}
	if err := h.validateRequest(ctx, query); err != nil {
		writeError(ctx, w, err)
		return
	}

	matches, err := h.guideService.Locate(ctx, query.Title, query.Channels)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, locateMatchDTO{Title: query.Title, Matches: toLocalMatchDTOs(matches)})
}

func (h *Handler) ListFixtures(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListFixtures")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, toFixtureListDTO(h.scheduler.Fixtures()))
}

type listEventsQuery struct {
	Limit int `validate:"min=1,max=200"`
}

func (h *Handler) ListFixtureEvents(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListFixtureEvents")
	defer span.End()

	query := listEventsQuery{Limit: defaultEventsLimit}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(ctx, w, fmt.Errorf("%w: limit must be a number", usecase.ErrInvalidInput))
			return
		}
		query.Limit = limit
	}
	if err := h.validateRequest(ctx, query); err != nil {
		writeError(ctx, w, err)
		return
	}

	events := h.scheduler.RecentEvents(query.Limit)
	writeSuccess(ctx, w, http.StatusOK, toEventDTOs(events))
}

func splitQueryCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
