package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"caseboard-service/internal/domain"
	"caseboard-service/internal/realtime"
	"caseboard-service/internal/views"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const nameCookieMaxAge = 365 * 24 * 60 * 60

// API serves the REST endpoints.
type API struct {
	svc Services
}

type submitRequest struct {
	CaseID      string            `json:"case_id"`
	SessionID   string            `json:"session_id"`
	Step        *int              `json:"step"`
	StudentName string            `json:"student_name"`
	Answer      *string           `json:"answer"`
	Sentiment   *domain.Sentiment `json:"sentiment"`
	PollChoice  *string           `json:"poll_choice"`
}

type nameRequest struct {
	Name string `json:"name"`
}

func fail(c *gin.Context, err error) {
	status, body := statusFor(err)
	c.AbortWithStatusJSON(status, body)
}

func scopeOf(c *gin.Context) domain.Scope {
	return domain.NewScope(c.Param("case"), c.Param("session"))
}

func (a *API) getConfig(c *gin.Context) {
	cfg, err := a.svc.Setup.Get(c.Request.Context(), c.Param("case"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (a *API) putConfig(c *gin.Context) {
	var cfg domain.CaseConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		fail(c, domain.NewValidationError("", "invalid config payload"))
		return
	}
	cfg.ID = c.Param("case")
	saved, err := a.svc.Setup.Save(c.Request.Context(), cfg)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (a *API) getState(c *gin.Context) {
	state, err := a.svc.Controller.State(c.Request.Context(), scopeOf(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (a *API) transition(c *gin.Context) {
	state, err := runCommand(c.Request.Context(), a.svc, scopeOf(c), c.Param("action"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (a *API) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, domain.NewValidationError("", "invalid submission payload"))
		return
	}
	row, err := a.svc.Ledger.Submit(c.Request.Context(), domain.Submission{
		CaseID:      req.CaseID,
		SessionID:   req.SessionID,
		Step:        req.Step,
		StudentName: req.StudentName,
		Answer:      req.Answer,
		Sentiment:   req.Sentiment,
		PollChoice:  req.PollChoice,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (a *API) listResponses(c *gin.Context) {
	rows, err := a.svc.Ledger.List(c.Request.Context(), domain.ResponseFilter{
		CaseID:    c.Query("case_id"),
		SessionID: c.Query("session_id"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (a *API) getName(c *gin.Context) {
	c.JSON(http.StatusOK, nameRequest{Name: rememberedName(c.Request, scopeOf(c))})
}

func (a *API) putName(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		fail(c, domain.NewValidationError("name", "is required"))
		return
	}
	name := strings.TrimSpace(req.Name)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(nameCookie(scopeOf(c)), name, nameCookieMaxAge, "/", "", false, true)
	c.JSON(http.StatusOK, nameRequest{Name: name})
}

func (a *API) deleteName(c *gin.Context) {
	c.SetCookie(nameCookie(scopeOf(c)), "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

// getView returns a one-shot projection built from the bootstrap queries.
func (a *API) getView(c *gin.Context) {
	role, ok := views.ParseRole(c.Param("role"))
	if !ok {
		fail(c, domain.NewValidationError("role", "must be board, instructor or student"))
		return
	}
	scope := scopeOf(c)
	cfg, err := a.svc.Reader.CaseConfig(c.Request.Context(), scope.CaseID)
	if err != nil {
		fail(c, err)
		return
	}
	if _, ok := cfg.Session(scope.SessionID); !ok {
		fail(c, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, scope))
		return
	}
	snap, err := realtime.Fetch(c.Request.Context(), a.svc.Reader, scope)
	if err != nil {
		fail(c, err)
		return
	}
	snap.Connected = true
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		name = rememberedName(c.Request, scope)
	}
	var viewers int64
	if a.svc.Presence != nil {
		if viewers, err = a.svc.Presence.Viewers(c.Request.Context(), scope); err != nil {
			log.Warn().Err(err).Str("case", scope.CaseID).Str("session", scope.SessionID).Msg("read viewer count")
		}
	}
	c.JSON(http.StatusOK, views.Build(role, snap, name, viewers))
}

// nameCookie scopes the remembered display name to one case and session.
func nameCookie(scope domain.Scope) string {
	return "student_name_" + scope.CaseID + "_" + scope.SessionID
}

func rememberedName(r *http.Request, scope domain.Scope) string {
	cookie, err := r.Cookie(nameCookie(scope))
	if err != nil {
		return ""
	}
	name, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(name)
}
