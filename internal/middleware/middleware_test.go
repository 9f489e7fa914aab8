package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/field-booking/internal/config"
	"github.com/iliyamo/field-booking/internal/logger"
	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/utils"
)

const secret = "test-secret"

func whoami(c echo.Context) error {
	id, _ := UserID(c)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c)})
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func token(t *testing.T, id uint64, role model.Role) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, string(role), 5)
	require.NoError(t, err)
	return tok.Token
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(secret))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 5, model.RoleAdmin))
	rec = serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":5,"role":"admin"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me?access_token="+token(t, 6, model.RoleCustomer), nil)
	rec = serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":6,"role":"customer"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/staff", whoami, JWTAuth(secret), RequireRole(model.RoleAdmin, model.RoleSuperAdmin))

	req := httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 1, model.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, serve(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/staff", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, 1, model.RoleSuperAdmin))
	assert.Equal(t, http.StatusOK, serve(e, req).Code)
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	var out bytes.Buffer
	log := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Format: "json", Output: &out})
	e := echo.New()
	e.Use(RequestLogger(log))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	id := rec.Header().Get(HeaderRequestID)
	assert.NotEmpty(t, id)
	assert.Contains(t, out.String(), id)
	assert.Contains(t, out.String(), `"route":"/ping"`)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "fixed-id")
	rec = serve(e, req)
	assert.Equal(t, "fixed-id", rec.Header().Get(HeaderRequestID))
}

// fakeScripter hands out capacity tokens per key and never refills.
type fakeScripter struct {
	used map[string]int64
	err  error
}

func (f *fakeScripter) run(keys []string, args ...any) *redis.Cmd {
	if f.err != nil {
		return redis.NewCmdResult(nil, f.err)
	}
	capacity := int64(args[1].(int))
	f.used[keys[0]]++
	if n := f.used[keys[0]]; n <= capacity {
		return redis.NewCmdResult([]any{int64(1), capacity - n, int64(0)}, nil)
	}
	return redis.NewCmdResult([]any{int64(0), int64(0), int64(2500)}, nil)
}

func (f *fakeScripter) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.run(keys, args...)
}
func (f *fakeScripter) EvalSha(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.run(keys, args...)
}
func (f *fakeScripter) EvalRO(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.run(keys, args...)
}
func (f *fakeScripter) EvalShaRO(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	return f.run(keys, args...)
}
func (f *fakeScripter) ScriptExists(context.Context, ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult([]bool{true}, nil)
}
func (f *fakeScripter) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("sha", nil)
}

func rateCfg() config.RateLimitConfig {
	return config.RateLimitConfig{Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, KeyStrategy: "ip_route", Prefix: "rl"}
}

func TestTokenBucketBlocksAfterCapacity(t *testing.T) {
	e := echo.New()
	f := &fakeScripter{used: map[string]int64{}}
	e.POST("/book", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, newTokenBucket(rateCfg(), f, nil, time.Now))

	for i := 0; i < 2; i++ {
		rec := serve(e, httptest.NewRequest(http.MethodPost, "/book", nil))
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}
	rec := serve(e, httptest.NewRequest(http.MethodPost, "/book", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))
}

func TestTokenBucketFailsOpen(t *testing.T) {
	e := echo.New()
	f := &fakeScripter{used: map[string]int64{}, err: errors.New("redis down")}
	e.POST("/book", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, newTokenBucket(rateCfg(), f, nil, time.Now))

	assert.Equal(t, http.StatusCreated, serve(e, httptest.NewRequest(http.MethodPost, "/book", nil)).Code)
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil))
	assert.Equal(t, http.StatusNoContent, serve(e, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/public/bookings", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/public/bookings")

	cfg := rateCfg()
	assert.Equal(t, "rl:ip:10.0.0.1:route:POST /v1/public/bookings", buildRateKey(cfg, c))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:anon", buildRateKey(cfg, c))
	c.Set(ContextUserID, uint64(9))
	assert.Equal(t, "rl:user:9", buildRateKey(cfg, c))
}

type memResponseStore struct {
	data map[string][]byte
}

func (m *memResponseStore) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *memResponseStore) SetEx(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func TestResponseCache(t *testing.T) {
	store := &memResponseStore{data: map[string][]byte{}}
	cfg := config.CacheConfig{Enabled: true, MethodList: "GET", TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1 << 20}
	calls := 0
	e := echo.New()
	e.GET("/fields/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id")})
	}, newResponseCache(cfg, store))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/fields/1", nil))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	rec = serve(e, httptest.NewRequest(http.MethodGet, "/fields/1", nil))
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"id":"1"}`, rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
	assert.Equal(t, 1, calls)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/fields/2", nil))
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"id":"2"}`, rec.Body.String())
	assert.Equal(t, 2, calls)
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}

// pagedKeys serves SCAN one key per page and records deletions.
type pagedKeys struct {
	keys    []string
	deleted []string
	scanErr error
}

func (p *pagedKeys) Scan(_ context.Context, cursor uint64, match string, _ int64) *redis.ScanCmd {
	if p.scanErr != nil {
		return redis.NewScanCmdResult(nil, 0, p.scanErr)
	}
	prefix := strings.TrimSuffix(match, "*")
	var matched []string
	for _, k := range p.keys {
		if strings.HasPrefix(k, prefix) {
			matched = append(matched, k)
		}
	}
	if int(cursor) >= len(matched) {
		return redis.NewScanCmdResult(nil, 0, nil)
	}
	next := cursor + 1
	if int(next) >= len(matched) {
		next = 0
	}
	return redis.NewScanCmdResult(matched[cursor:cursor+1], next, nil)
}

func (p *pagedKeys) Del(_ context.Context, keys ...string) *redis.IntCmd {
	p.deleted = append(p.deleted, keys...)
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestCachePurgerDeletesOnlyCacheKeys(t *testing.T) {
	keys := &pagedKeys{keys: []string{"cache:aa", "rl:ip:1", "cache:bb", "cache:cc"}}
	p := &CachePurger{rdb: keys, prefix: "cache"}

	require.NoError(t, p.Purge(context.Background()))
	assert.ElementsMatch(t, []string{"cache:aa", "cache:bb", "cache:cc"}, keys.deleted)

	keys = &pagedKeys{scanErr: errors.New("redis down")}
	p = &CachePurger{rdb: keys, prefix: "cache"}
	assert.Error(t, p.Purge(context.Background()))

	var disabled *CachePurger
	assert.NoError(t, disabled.Purge(context.Background()))
	assert.Nil(t, NewCachePurger(config.CacheConfig{Enabled: false}, nil))
}
