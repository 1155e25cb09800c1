package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aquadash/internal/models"
	"aquadash/internal/service"
)

type fakeSettingsAPI struct {
	settings     *models.ControlSettings
	lastPatch    *models.SettingsPatch
	updateErr    error
	calibrations [][2]int64
}

func (f *fakeSettingsAPI) current() *models.ControlSettings {
	if f.settings == nil {
		f.settings = models.DefaultControlSettings()
	}
	return f.settings
}

func (f *fakeSettingsAPI) Get(context.Context) (*models.ControlSettings, error) {
	return f.current(), nil
}

func (f *fakeSettingsAPI) Update(_ context.Context, patch *models.SettingsPatch) (*models.ControlSettings, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.lastPatch = patch
	s := f.current()
	if patch.ActiveMode != nil {
		s.ActiveMode = *patch.ActiveMode
	}
	if patch.TemperatureSetpoint != nil {
		s.TemperatureSetpoint = *patch.TemperatureSetpoint
	}
	return s, nil
}

func (f *fakeSettingsAPI) UpdateCalibration(_ context.Context, clearADC, turbidADC *int64) (*models.ControlSettings, error) {
	if clearADC == nil || turbidADC == nil || *clearADC == *turbidADC {
		return nil, service.ErrInvalidCalibration
	}
	f.calibrations = append(f.calibrations, [2]int64{*clearADC, *turbidADC})
	s := f.current()
	s.CalibrationClearADC = *clearADC
	s.CalibrationTurbidADC = *turbidADC
	return s, nil
}

type fakeTelemetryReader struct {
	records   []*models.TelemetryRecord
	lastLimit int
	lastStart time.Time
	lastEnd   time.Time
	err       error
}

func (f *fakeTelemetryReader) Insert(context.Context, *models.TelemetryRecord) error { return nil }

func (f *fakeTelemetryReader) Recent(_ context.Context, limit int) ([]*models.TelemetryRecord, error) {
	f.lastLimit = limit
	return f.records, f.err
}

func (f *fakeTelemetryReader) Range(_ context.Context, start, end time.Time) ([]*models.TelemetryRecord, error) {
	f.lastStart, f.lastEnd = start, end
	return f.records, f.err
}

func sampleRecords() []*models.TelemetryRecord {
	base := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	setpoint := 28.0
	return []*models.TelemetryRecord{
		{ID: 1, Timestamp: base, Temperature: 27.4, TurbidityPercent: 11.2, ActiveMode: models.ModeFuzzy, TemperatureSetpoint: &setpoint},
		{ID: 2, Timestamp: base.Add(2 * time.Second), Temperature: 27.5, TurbidityPercent: 11.0, ActiveMode: models.ModeFuzzy, TemperatureSetpoint: &setpoint},
	}
}

func newTestRouter(settings *fakeSettingsAPI, telemetry *fakeTelemetryReader) *Router {
	logger := zap.NewNop()
	r := NewRouter(logger)
	r.RegisterControlRoutes(NewControlHandler(settings, logger))
	r.RegisterDataRoutes(NewDataHandler(telemetry, logger))
	r.RegisterExportRoutes(NewExportHandler(telemetry, logger))
	r.RegisterHealthRoute()
	return r
}

func TestGetControl_ReturnsSettings(t *testing.T) {
	r := newTestRouter(&fakeSettingsAPI{}, &fakeTelemetryReader{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/control", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got models.ControlSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.ModeFuzzy, got.ActiveMode)
	assert.Equal(t, 28.0, got.TemperatureSetpoint)
}

func TestPostControl_MergesAndReturnsResult(t *testing.T) {
	settings := &fakeSettingsAPI{}
	r := newTestRouter(settings, &fakeTelemetryReader{})

	body := strings.NewReader(`{"active_mode":"PID","temperature_setpoint":29.5}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/control", body))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool                    `json:"success"`
		Data    *models.ControlSettings `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, models.ModePID, resp.Data.ActiveMode)
	assert.Equal(t, 29.5, resp.Data.TemperatureSetpoint)

	// Only the provided fields rode in the patch.
	require.NotNil(t, settings.lastPatch)
	assert.Nil(t, settings.lastPatch.TurbiditySetpoint)
	assert.Nil(t, settings.lastPatch.KpTemperature)
}

func TestPostControl_RejectsMalformedBody(t *testing.T) {
	r := newTestRouter(&fakeSettingsAPI{}, &fakeTelemetryReader{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/control", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostCalibration_EqualValuesRejected(t *testing.T) {
	settings := &fakeSettingsAPI{}
	r := newTestRouter(settings, &fakeTelemetryReader{})

	body := strings.NewReader(`{"clear_adc":5000,"turbid_adc":5000}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/calibration", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, settings.calibrations)
}

func TestPostCalibration_UpdatesReferencePoints(t *testing.T) {
	settings := &fakeSettingsAPI{}
	r := newTestRouter(settings, &fakeTelemetryReader{})

	body := strings.NewReader(`{"clear_adc":9000,"turbid_adc":3100}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/calibration", body))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, settings.calibrations, 1)
	assert.Equal(t, [2]int64{9000, 3100}, settings.calibrations[0])
}

func TestGetData_DefaultLimit(t *testing.T) {
	telemetry := &fakeTelemetryReader{records: sampleRecords()}
	r := newTestRouter(&fakeSettingsAPI{}, telemetry)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 100, telemetry.lastLimit)

	var got []*models.TelemetryRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestGetData_EmptyStoreReturnsEmptyArray(t *testing.T) {
	r := newTestRouter(&fakeSettingsAPI{}, &fakeTelemetryReader{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/data?limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestGetDataRange_ValidatesBounds(t *testing.T) {
	r := newTestRouter(&fakeSettingsAPI{}, &fakeTelemetryReader{records: sampleRecords()})

	cases := []struct {
		name string
		url  string
	}{
		{"missing params", "/api/data/range"},
		{"bad start", "/api/data/range?start=yesterday&end=2026-03-14T11:00:00Z"},
		{"bad end", "/api/data/range?start=2026-03-14T10:00:00Z&end=later"},
		{"start equals end", "/api/data/range?start=2026-03-14T10:00:00Z&end=2026-03-14T10:00:00Z"},
		{"start after end", "/api/data/range?start=2026-03-14T11:00:00Z&end=2026-03-14T10:00:00Z"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetDataRange_PassesParsedBounds(t *testing.T) {
	telemetry := &fakeTelemetryReader{records: sampleRecords()}
	r := newTestRouter(&fakeSettingsAPI{}, telemetry)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/data/range?start=2026-03-14T10:00:00Z&end=2026-03-14T11:00:00Z", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC), telemetry.lastStart)
	assert.Equal(t, time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC), telemetry.lastEnd)
}

func TestExportCSV_EmptyRangeIs404(t *testing.T) {
	r := newTestRouter(&fakeSettingsAPI{}, &fakeTelemetryReader{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/export/csv/range?start=2026-03-14T10:00:00Z&end=2026-03-14T11:00:00Z", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportCSV_ServesAttachment(t *testing.T) {
	r := newTestRouter(&fakeSettingsAPI{}, &fakeTelemetryReader{records: sampleRecords()})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/export/csv/range?start=2026-03-14T10:00:00Z&end=2026-03-14T11:00:00Z", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")

	body := rec.Body.Bytes()
	require.True(t, bytes.HasPrefix(body, []byte{0xEF, 0xBB, 0xBF}))
	lines := strings.Split(strings.TrimSpace(string(body[3:])), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Timestamp,Control_Mode,Temperature"))
}

func TestExportXLSX_ServesWorkbook(t *testing.T) {
	r := newTestRouter(&fakeSettingsAPI{}, &fakeTelemetryReader{records: sampleRecords()})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/export/xlsx/range?start=2026-03-14T10:00:00Z&end=2026-03-14T11:00:00Z", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestMethodGuards(t *testing.T) {
	r := newTestRouter(&fakeSettingsAPI{}, &fakeTelemetryReader{})

	cases := []struct {
		method string
		url    string
	}{
		{http.MethodDelete, "/api/control"},
		{http.MethodGet, "/api/calibration"},
		{http.MethodPost, "/api/data"},
		{http.MethodPost, "/api/data/range"},
		{http.MethodPost, "/api/export/csv/range"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.url, nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tc.method, tc.url)
	}
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(&fakeSettingsAPI{}, &fakeTelemetryReader{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
