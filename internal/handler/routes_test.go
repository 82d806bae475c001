package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/service"
)

func newTestRouter(t *testing.T) (*gin.Engine, *service.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens := service.NewTokenService(service.TokenConfig{Secret: "test-secret"})
	r := gin.New()
	Register(r, "/api/v1", Handlers{
		Timetable: NewTimetableHandler(&timetableServiceMock{}),
		Subject:   NewSubjectHandler(&subjectPartServiceMock{}, &coTeachingServiceMock{}),
		Scheduler: NewSchedulerHandler(&autoSchedulerMock{}),
		Metrics:   NewMetricsHandler(service.NewMetricsService(), nil),
	}, tokens, zap.NewNop(), true)
	return r, tokens
}

func bearer(t *testing.T, tokens *service.TokenService, role models.UserRole, teacherID *int64) string {
	t.Helper()
	token, err := tokens.Issue(models.JWTClaims{UserID: "u-1", Role: role, TeacherID: teacherID}, time.Minute)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRoutesEnforceRoles(t *testing.T) {
	r, tokens := newTestRouter(t)
	teacherID := int64(5)
	admin := bearer(t, tokens, models.RoleAdmin, nil)
	teacher := bearer(t, tokens, models.RoleTeacher, &teacherID)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		auth   string
		status int
	}{
		{name: "anonymous list", method: http.MethodGet, path: "/api/v1/timetable?termYear=1/2567", status: http.StatusUnauthorized},
		{name: "teacher list", method: http.MethodGet, path: "/api/v1/timetable?termYear=1/2567", auth: teacher, status: http.StatusOK},
		{name: "teacher own list", method: http.MethodGet, path: "/api/v1/timetable/me", auth: teacher, status: http.StatusOK},
		{name: "admin own list", method: http.MethodGet, path: "/api/v1/timetable/me", auth: admin, status: http.StatusForbidden},
		{name: "teacher cannot assign", method: http.MethodPost, path: "/api/v1/timetable", body: `{}`, auth: teacher, status: http.StatusForbidden},
		{name: "admin unassign", method: http.MethodDelete, path: "/api/v1/timetable/3", auth: admin, status: http.StatusOK},
		{name: "teacher check co-teaching", method: http.MethodGet, path: "/api/v1/subject/co-teaching/check?subjectId=3", auth: teacher, status: http.StatusOK},
		{name: "teacher cannot split", method: http.MethodPost, path: "/api/v1/subject/split", body: `{}`, auth: teacher, status: http.StatusForbidden},
		{name: "admin merge", method: http.MethodPost, path: "/api/v1/subject/merge", body: `{"subjectId":3}`, auth: admin, status: http.StatusOK},
		{name: "teacher cannot schedule", method: http.MethodPost, path: "/api/v1/scheduler/scope", body: `{}`, auth: teacher, status: http.StatusForbidden},
		{name: "admin run lookup", method: http.MethodGet, path: "/api/v1/scheduler/runs/run-1", auth: admin, status: http.StatusOK},
		{name: "garbage token", method: http.MethodGet, path: "/api/v1/timetable", auth: "Bearer nope", status: http.StatusUnauthorized},
		{name: "health is public", method: http.MethodGet, path: "/health", status: http.StatusOK},
		{name: "metrics exposed", method: http.MethodGet, path: "/metrics", status: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString(tc.body))
			req.Header.Set("Content-Type", "application/json")
			if tc.auth != "" {
				req.Header.Set("Authorization", tc.auth)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestRoutesListCarriesResponseMeta(t *testing.T) {
	r, tokens := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/timetable?roomId=2", nil)
	req.Header.Set("Authorization", bearer(t, tokens, models.RoleAdmin, nil))
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
}
