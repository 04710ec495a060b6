package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jameshartig/autopreset/pkg/config"
	"github.com/jameshartig/autopreset/pkg/ess"
	"github.com/jameshartig/autopreset/pkg/log"
	"github.com/jameshartig/autopreset/pkg/preset"
	"github.com/jameshartig/autopreset/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
)

func TestHandlePreset(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusBadRequest, http.StatusInternalServerError} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			morning := newMockHandler(types.MorningPreset(), code)
			srv := New(morning)

			req := httptest.NewRequest("POST", "/api/preset/morning", strings.NewReader(`{"ignored":true}`))
			req.SetPathValue("name", "morning")
			w := httptest.NewRecorder()

			srv.handlePreset(w, req)

			assert.Equal(t, code, w.Result().StatusCode)
			assert.Equal(t, "application/json", w.Result().Header.Get("Content-Type"))
			assert.Equal(t, 1, morning.calls)

			var body preset.Body
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, morning.resp.Body, body)
		})
	}

	t.Run("Unknown Preset", func(t *testing.T) {
		srv := New(newMockHandler(types.MorningPreset(), http.StatusOK))

		req := httptest.NewRequest("POST", "/api/preset/noon", nil)
		req.SetPathValue("name", "noon")
		w := httptest.NewRecorder()

		srv.handlePreset(w, req)
		assert.Equal(t, http.StatusNotFound, w.Result().StatusCode)
	})

	t.Run("Logger Scoped To Invocation", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		morning := newMockHandler(types.MorningPreset(), http.StatusOK)
		srv := New(morning)

		req := httptest.NewRequest("POST", "/api/preset/morning", nil)
		req.SetPathValue("name", "morning")
		req = req.WithContext(log.With(context.WithValue(req.Context(), emailContextKey, "scheduler@example.com"), logger))
		w := httptest.NewRecorder()

		srv.handlePreset(w, req)
		require.Len(t, morning.ctxs, 1)

		ctx := morning.ctxs[0]
		log.Ctx(ctx).InfoContext(ctx, "inside")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "morning", entry["preset"])
		assert.Equal(t, "http", entry["trigger"])
		assert.Equal(t, "scheduler@example.com", entry["email"])
	})
}

// TestPresetEndToEnd runs the real handlers behind the server against a fake
// Configuration API.
func TestPresetEndToEnd(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		mu.Lock()
		bodies = append(bodies, r.URL.Path+" "+buf.String())
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	netzero := ess.NewNetZero(api.Client(), api.URL)
	cfg := config.Map{config.EnvAPIKey: "abc", config.EnvSiteID: "site1"}

	srv := New(preset.NewMorning(cfg, netzero), preset.NewEvening(cfg, netzero))
	srv.schedulerAudience = "my-audience"
	srv.schedulerEmail = "scheduler@example.com"
	srv.tokenValidator = mockTokenValidator(&idtoken.Payload{
		Claims: map[string]interface{}{"email": "scheduler@example.com"},
	}, nil)
	handler := srv.setupHandler()

	for _, name := range []string{"morning", "evening"} {
		req := httptest.NewRequest("POST", "/api/preset/"+name, nil)
		req.Header.Set("Authorization", "Bearer scheduler-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Result().StatusCode, w.Body.String())

		var body preset.Body
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		require.NotNil(t, body.Config)
		p, _ := types.PresetByName(name)
		assert.Equal(t, p.BackupReservePercent, body.Config.BackupReservePercent)
		assert.Equal(t, p.EnergyExports, body.Config.EnergyExports)
	}

	mu.Lock()
	got := append([]string(nil), bodies...)
	mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, `/api/v1/site1/config {"backup_reserve_percent":20,"operational_mode":"autonomous","energy_exports":"battery_ok","grid_charging":false}`, got[0])
	assert.Equal(t, `/api/v1/site1/config {"backup_reserve_percent":100,"operational_mode":"autonomous","energy_exports":"pv_only","grid_charging":true}`, got[1])

	t.Run("Remote Rejects", func(t *testing.T) {
		bad := config.Map{config.EnvAPIKey: "wrong", config.EnvSiteID: "site1"}
		srv := New(preset.NewEvening(bad, netzero))
		srv.bypassAuth = true

		req := httptest.NewRequest("POST", "/api/preset/evening", nil)
		w := httptest.NewRecorder()
		srv.setupHandler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Result().StatusCode)
		var body preset.Body
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "Failed to apply evening configuration: 401 Client Error: Unauthorized for url: "+api.URL+"/api/v1/site1/config", body.Error)
	})
}
