package preset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jameshartig/autopreset/pkg/config"
	"github.com/jameshartig/autopreset/pkg/ess"
	"github.com/jameshartig/autopreset/pkg/log"
	"github.com/jameshartig/autopreset/pkg/types"
)

// timestampFormat is ISO-8601 with microsecond precision.
const timestampFormat = "2006-01-02T15:04:05.999999Z07:00"

const missingConfigMessage = "Missing API_KEY or SITE_ID environment variables"

// Configurator applies a preset to a site.
type Configurator interface {
	ApplyConfig(ctx context.Context, creds config.Credentials, preset types.Preset) error
}

// Response is the outcome of a single invocation.
type Response struct {
	StatusCode int  `json:"statusCode"`
	Body       Body `json:"body"`
}

// Body is the JSON document returned to the caller. Exactly one of Message or
// Error is set.
type Body struct {
	Message string        `json:"message,omitempty"`
	Config  *types.Preset `json:"config,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Handler applies one fixed preset per invocation. It holds no mutable state
// so a single Handler can serve concurrent invocations.
type Handler struct {
	preset types.Preset
	config config.Provider
	api    Configurator
	now    func() time.Time
}

// New returns a Handler that applies p using credentials from cfg.
func New(p types.Preset, cfg config.Provider, api Configurator) *Handler {
	return &Handler{
		preset: p,
		config: cfg,
		api:    api,
		now:    time.Now,
	}
}

// NewMorning returns the handler for the daytime preset.
func NewMorning(cfg config.Provider, api Configurator) *Handler {
	return New(types.MorningPreset(), cfg, api)
}

// NewEvening returns the handler for the overnight preset.
func NewEvening(cfg config.Provider, api Configurator) *Handler {
	return New(types.EveningPreset(), cfg, api)
}

// Preset returns a copy of the preset this handler applies.
func (h *Handler) Preset() types.Preset {
	return h.preset
}

// Handle runs one invocation: resolve credentials, post the preset once and
// map the outcome to a response. It never returns an error; every failure is
// logged and turned into a 400 or 500 response.
func (h *Handler) Handle(ctx context.Context) Response {
	logger := log.Ctx(ctx)

	creds, err := config.LoadCredentials(h.config)
	if err != nil {
		logger.ErrorContext(ctx, "API_KEY and SITE_ID environment variables are required", slog.Any("error", err))
		return Response{
			StatusCode: http.StatusBadRequest,
			Body:       Body{Error: missingConfigMessage},
		}
	}

	preset := h.preset
	logger.InfoContext(
		ctx,
		fmt.Sprintf("applying %s configuration", preset.Name),
		slog.String("siteID", creds.SiteID),
		slog.Any("config", preset),
	)

	if err := h.api.ApplyConfig(ctx, creds, preset); err != nil {
		attrs := []any{slog.Any("error", err)}
		var reqErr *ess.RequestError
		if errors.As(err, &reqErr) {
			attrs = append(attrs, slog.String("kind", reqErr.Kind.String()))
			if reqErr.StatusCode != 0 {
				attrs = append(attrs, slog.Int("status", reqErr.StatusCode))
			}
		}
		msg := fmt.Sprintf("Failed to apply %s configuration: %s", preset.Name, err.Error())
		logger.ErrorContext(ctx, msg, attrs...)
		return Response{
			StatusCode: http.StatusInternalServerError,
			Body:       Body{Error: msg},
		}
	}

	logger.InfoContext(ctx, fmt.Sprintf("%s configuration applied successfully", preset.Title()))

	return Response{
		StatusCode: http.StatusOK,
		Body: Body{
			Message: fmt.Sprintf(
				"%s Tesla configuration applied successfully at %s",
				preset.Title(),
				h.now().Format(timestampFormat),
			),
			Config: &preset,
		},
	}
}
