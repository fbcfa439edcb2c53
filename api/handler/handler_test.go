package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/realtime"
	"github.com/fastygo/taskboard/internal/testutil"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	collabUC "github.com/fastygo/taskboard/usecase/collab"
	notifyUC "github.com/fastygo/taskboard/usecase/notify"
	taskUC "github.com/fastygo/taskboard/usecase/task"
)

type envelope struct {
	Status string          `json:"status"`
	Code   string          `json:"code"`
	Data   json.RawMessage `json:"data"`
	Error  json.RawMessage `json:"error"`
}

func request(method, userID, body string, params map[string]string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	if userID != "" {
		ctx.Request.Header.Set(httpcontext.HeaderUserID, userID)
	}
	if body != "" {
		ctx.Request.SetBodyString(body)
	}
	for k, v := range params {
		ctx.SetUserValue(k, v)
	}
	return ctx
}

func decodeResponse(t *testing.T, ctx *fasthttp.RequestCtx) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &env))
	return env
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{domain.ErrNotOwner, http.StatusForbidden, "FORBIDDEN"},
		{domain.ErrEmptyComment, http.StatusBadRequest, "INVALID"},
		{domain.ErrTaskNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrAlreadyFinalized, http.StatusConflict, "CONFLICT"},
		{domain.ErrTxAborted, http.StatusConflict, "ABORTED"},
		{domain.WrapError(domain.ErrCodeUnavailable, "list tasks", errors.New("dial tcp")), http.StatusServiceUnavailable, "UNAVAILABLE"},
		{fmt.Errorf("share: %w", domain.ErrNotInFriendList), http.StatusBadRequest, "INVALID"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		status, code := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}

type fixture struct {
	stores *testutil.Stores
	tasks  *TaskHandler
	collab *CollabHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stores := testutil.NewStores(t)
	tasks := taskUC.New(stores.Tasks, nil, realtime.NewHub(nil), nil, nil)
	collab := collabUC.New(stores.Tasks, stores.Users, notifyUC.New(stores.Notifications, nil), nil)
	return &fixture{
		stores: stores,
		tasks:  NewTaskHandler(tasks, nil, nil, nil, nil),
		collab: NewCollabHandler(collab, nil, nil),
	}
}

func TestCreateTaskThenGet(t *testing.T) {
	f := newFixture(t)
	f.stores.SeedUser(t, "alice")

	due := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	body := fmt.Sprintf(`{"name":"release","difficulty":2,"workload":3,"risk":1,"due_date":%q,"subtasks":["a","b"]}`, due)
	ctx := request(http.MethodPost, "alice", body, nil)
	f.tasks.Create(ctx)
	require.Equal(t, http.StatusCreated, ctx.Response.StatusCode(), string(ctx.Response.Body()))

	var created domain.Task
	require.NoError(t, json.Unmarshal(decodeResponse(t, ctx).Data, &created))
	assert.Equal(t, "alice", created.OwnerID)
	assert.Equal(t, 13, created.StoryPoint)

	ctx = request(http.MethodGet, "alice", "", map[string]string{"owner": "alice", "id": created.ID})
	f.tasks.Get(ctx)
	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())

	ctx = request(http.MethodGet, "mallory", "", map[string]string{"owner": "alice", "id": created.ID})
	f.tasks.Get(ctx)
	assert.Equal(t, http.StatusNotFound, ctx.Response.StatusCode())
}

func TestCreateTaskRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	ctx := request(http.MethodPost, "", `{}`, nil)
	f.tasks.Create(ctx)
	assert.Equal(t, http.StatusUnauthorized, ctx.Response.StatusCode())

	ctx = request(http.MethodPost, "alice", `{not json`, nil)
	f.tasks.Create(ctx)
	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())

	ctx = request(http.MethodPost, "alice", `{"name":"x","due_date":"tomorrow"}`, nil)
	f.tasks.Create(ctx)
	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())
}

func TestOwnerOnlyRoutes(t *testing.T) {
	f := newFixture(t)
	f.stores.SeedUser(t, "alice")
	f.stores.SeedUser(t, "bob")
	task := f.stores.SeedTask(t, "alice")

	params := map[string]string{"owner": "alice", "id": task.ID}

	ctx := request(http.MethodPost, "bob", "", params)
	f.tasks.Finalize(ctx)
	assert.Equal(t, http.StatusForbidden, ctx.Response.StatusCode())

	ctx = request(http.MethodPost, "bob", `{"friend_ids":["bob"]}`, params)
	f.collab.Share(ctx)
	assert.Equal(t, http.StatusForbidden, ctx.Response.StatusCode())
}

func TestShareAndComment(t *testing.T) {
	f := newFixture(t)
	f.stores.SeedUser(t, "alice")
	f.stores.SeedUser(t, "bob")
	f.stores.SeedUser(t, "carol")
	f.stores.MakeFriends(t, "alice", "bob")
	task := f.stores.SeedTask(t, "alice")
	params := map[string]string{"owner": "alice", "id": task.ID}

	ctx := request(http.MethodPost, "alice", `{"friend_ids":["carol"]}`, params)
	f.collab.Share(ctx)
	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())

	ctx = request(http.MethodPost, "alice", `{"friend_ids":["bob"]}`, params)
	f.collab.Share(ctx)
	require.Equal(t, http.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	assert.True(t, f.stores.MustTask(t, "alice", task.ID).IsSharedWith("bob"))

	ctx = request(http.MethodPost, "bob", `{"text":"on it"}`, params)
	f.collab.AddComment(ctx)
	require.Less(t, ctx.Response.StatusCode(), 300, string(ctx.Response.Body()))

	ctx = request(http.MethodPost, "carol", `{"text":"me too"}`, params)
	f.collab.AddComment(ctx)
	assert.Equal(t, http.StatusForbidden, ctx.Response.StatusCode())

	stored := f.stores.MustTask(t, "alice", task.ID)
	require.Len(t, stored.Comments, 1)
	assert.Equal(t, "on it", stored.Comments[0].Text)
}
