package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/giveboard/internal/activity"
	"github.com/victornm/giveboard/internal/backend"
	"github.com/victornm/giveboard/internal/cache"
	"github.com/victornm/giveboard/internal/domain"
	"github.com/victornm/giveboard/internal/errors"
	"github.com/victornm/giveboard/internal/event"
	"github.com/victornm/giveboard/internal/leaderboard"
	"github.com/victornm/giveboard/internal/wheel"
)

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Cache        *cache.Cache
	Backend      *backend.Client
	Leaderboard  *leaderboard.Service
	Activity     *activity.Service
	Wheel        *wheel.Service
	Redis        Redis
	PubsubPrefix string
	Now          func() time.Time
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	cache   *cache.Cache
	backend *backend.Client
	ls      *leaderboard.Service
	as      *activity.Service
	ws      *wheel.Service

	redis  Redis
	prefix string
	now    func() time.Time
}

func New(c Config) *API {
	a := &API{
		cache:   c.Cache,
		backend: c.Backend,
		ls:      c.Leaderboard,
		as:      c.Activity,
		ws:      c.Wheel,
		redis:   c.Redis,
		prefix:  c.PubsubPrefix,
		now:     c.Now,
	}

	if a.now == nil {
		a.now = time.Now
	}

	// HTTP APIs
	a.register(c.Router)

	// Register event handlers
	if a.redis != nil {
		c.EventBus.Subscribe(domain.EventNameResourceRevalidated, func(ctx context.Context, e event.Event) error {
			return a.PublishResourceRevalidated(ctx, e.(domain.EventResourceRevalidated))
		})
		c.EventBus.Subscribe(domain.EventNameWheelSpun, func(ctx context.Context, e event.Event) error {
			return a.PublishWheelSpun(ctx, e.(domain.EventWheelSpun))
		})
	}

	return a
}

func (a *API) register(r gin.IRouter) {
	r.GET("/auth/twitch", a.SignIn)
	r.GET("/logout/twitch", a.SignOut)

	g := r.Group("/api")
	g.GET("/overview", a.GetOverview)
	g.GET("/leaderboard", a.GetLeaderboard)
	g.GET("/stats", a.GetStats)
	g.GET("/recent-entries", a.GetRecentEntries)
	g.GET("/streamers", a.GetStreamers)
	g.GET("/me", a.GetMe)
	g.POST("/add-reward", a.AddReward)

	g.POST("/resources/:name/revalidate", a.RevalidateResource)
	g.POST("/focus", a.Focus)
	g.POST("/reconnect", a.Reconnect)

	g.POST("/wheel/spin", a.SpinWheel)
	g.GET("/wheel/history", a.GetWheelHistory)
}

type (
	Panel[T any] struct {
		Data  *T            `json:"data,omitempty"`
		Error *errors.Error `json:"error,omitempty"`
	}

	Overview struct {
		Leaderboard   Panel[Leaderboard]   `json:"leaderboard"`
		Stats         Panel[Stats]         `json:"stats"`
		RecentEntries Panel[[]RecentEntry] `json:"recent_entries"`
		Streamers     Panel[[]Streamer]    `json:"streamers"`
	}
)

// GetOverview loads every dashboard panel concurrently. A failing panel carries its own error
// and never fails the others.
func (a *API) GetOverview(c *gin.Context) {
	ctx := c.Request.Context()
	now := a.now()

	var (
		o  Overview
		eg errgroup.Group
	)

	eg.Go(func() error {
		b, err := a.ls.Board(ctx)
		o.Leaderboard = panel(err, func() Leaderboard { return toLeaderboard(b) })
		return nil
	})
	eg.Go(func() error {
		s, err := a.ls.Stats(ctx)
		o.Stats = panel(err, func() Stats { return toStats(s) })
		return nil
	})
	eg.Go(func() error {
		entries, err := a.as.RecentEntries(ctx, now)
		o.RecentEntries = panel(err, func() []RecentEntry { return toRecentEntries(entries) })
		return nil
	})
	eg.Go(func() error {
		streamers, err := a.as.Streamers(ctx)
		o.Streamers = panel(err, func() []Streamer { return toStreamers(streamers) })
		return nil
	})
	_ = eg.Wait()

	c.JSON(http.StatusOK, o)
}

func panel[T any](err error, data func() T) Panel[T] {
	if err != nil {
		return Panel[T]{Error: errors.Convert(err)}
	}

	v := data()
	return Panel[T]{Data: &v}
}

func (a *API) GetLeaderboard(c *gin.Context) {
	b, err := a.ls.Board(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toLeaderboard(b))
}

func (a *API) GetStats(c *gin.Context) {
	s, err := a.ls.Stats(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toStats(s))
}

func (a *API) GetRecentEntries(c *gin.Context) {
	entries, err := a.as.RecentEntries(c.Request.Context(), a.now())
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRecentEntries(entries))
}

func (a *API) GetStreamers(c *gin.Context) {
	streamers, err := a.as.Streamers(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toStreamers(streamers))
}

// GetMe returns the signed in user, or a null user for anonymous visitors.
func (a *API) GetMe(c *gin.Context) {
	u, err := a.backend.Me(c.Request.Context(), c.Request.Cookies())
	if err != nil {
		renderError(c, err)
		return
	}

	resp := Me{}
	if u != nil {
		resp.User = &User{
			TwitchID:        u.TwitchID,
			Username:        u.Username,
			ProfileImageURL: u.ProfileImageURL,
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (a *API) SignIn(c *gin.Context) {
	c.Redirect(http.StatusTemporaryRedirect, a.backend.SignInURL())
}

func (a *API) SignOut(c *gin.Context) {
	c.Redirect(http.StatusTemporaryRedirect, a.backend.SignOutURL())
}

func (a *API) AddReward(c *gin.Context) {
	msg, err := a.backend.AddReward(c.Request.Context(), c.Request.Cookies())
	if err != nil {
		renderError(c, err)
		return
	}

	c.String(http.StatusOK, msg)
}

// RevalidateResource refetches one resource now, the "try again" action of a failed panel.
func (a *API) RevalidateResource(c *gin.Context) {
	key := c.Param("name")

	s, err := a.cache.Revalidate(c.Request.Context(), key)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toResourceState(key, s))
}

func (a *API) Focus(c *gin.Context) {
	c.JSON(http.StatusOK, Revalidating{Count: a.cache.Focus()})
}

func (a *API) Reconnect(c *gin.Context) {
	c.JSON(http.StatusOK, Revalidating{Count: a.cache.Reconnect()})
}

func (a *API) SpinWheel(c *gin.Context) {
	res, err := a.ws.Spin(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}

	d := toDraw(res.Draw)
	d.Chance = res.Chance
	d.ChanceDisplay = res.ChanceDisplay

	c.JSON(http.StatusOK, d)
}

type historyQuery struct {
	Limit int `form:"limit" binding:"min=0"`
}

func (a *API) GetWheelHistory(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		renderError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid limit: %s", c.Query("limit")),
			errors.WithCause(err),
		))
		return
	}

	draws, err := a.ws.History(c.Request.Context(), q.Limit)
	if err != nil {
		renderError(c, err)
		return
	}

	resp := make([]Draw, 0, len(draws))
	for _, d := range draws {
		resp = append(resp, toDraw(d))
	}

	c.JSON(http.StatusOK, resp)
}

func renderError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed",
			"path", c.FullPath(),
			"error", err,
		)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
