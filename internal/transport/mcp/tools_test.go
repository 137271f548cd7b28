package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcpmcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/alanyang/annotation-desk/internal/adapter/memory"
	domainartifact "github.com/alanyang/annotation-desk/internal/domain/artifact"
	domainassignment "github.com/alanyang/annotation-desk/internal/domain/assignment"
	"github.com/alanyang/annotation-desk/internal/domain/event"
	"github.com/alanyang/annotation-desk/internal/mocks"
	portstorage "github.com/alanyang/annotation-desk/internal/port/storage"
	artifactsvc "github.com/alanyang/annotation-desk/internal/service/artifact"
	assignmentsvc "github.com/alanyang/annotation-desk/internal/service/assignment"
)

// ── helpers ───────────────────────────────────────────────────────────────────

var testWorkers = []domainassignment.Worker{{Name: "Amy", Quota: 2}, {Name: "Bob", Quota: 1}}

func newToolsDeps(t *testing.T, present ...string) (*assignmentsvc.Service, *artifactsvc.Service) {
	t.Helper()
	ctrl := gomock.NewController(t)
	lister := mocks.NewMockImageLister(ctrl)
	store := mocks.NewMockStateStore(ctrl)
	bus := mocks.NewMockEventBus(ctrl)
	storage := mocks.NewMockStorage(ctrl)

	stored := domainassignment.Table{Files: map[string][]string{"Amy": {"a.png", "b.png"}, "Bob": {"c.png"}}}
	lister.EXPECT().List(gomock.Any()).Return([]string{"a.png", "b.png", "c.png"}, nil)
	store.EXPECT().Load(gomock.Any()).Return(stored, nil)

	aSvc := assignmentsvc.NewService(lister, store, bus, testWorkers, domainassignment.SeededShuffler(42))
	_, err := aSvc.LoadOrCreate(context.Background())
	require.NoError(t, err)

	set := make(map[string]bool, len(present))
	for _, p := range present {
		set[p] = true
	}
	storage.EXPECT().Stat(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, name string) (portstorage.Info, error) {
			if set[name] {
				return portstorage.Info{Name: name}, nil
			}
			return portstorage.Info{}, domainartifact.ErrNotFound
		}).AnyTimes()

	return aSvc, artifactsvc.NewService(aSvc, storage, nil, 0, bus)
}

func makeReq(args map[string]any) mcpmcp.CallToolRequest {
	var req mcpmcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(r *mcpmcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	b, _ := json.Marshal(r.Content[0])
	var m map[string]interface{}
	json.Unmarshal(b, &m) //nolint:errcheck
	if t, ok := m["text"].(string); ok {
		return t
	}
	return ""
}

// ── list_workers ──────────────────────────────────────────────────────────────

func TestListWorkersHandler(t *testing.T) {
	aSvc, artSvc := newToolsDeps(t, "a.xcf", "a_mask.png", "c_mask.png")

	res, err := listWorkersHandler(aSvc, artSvc)(context.Background(), makeReq(nil))
	require.NoError(t, err)

	var got []workerSummary
	require.NoError(t, json.Unmarshal([]byte(resultText(res)), &got))
	assert.Equal(t, []workerSummary{
		{Name: "Amy", Quota: 2, Summary: domainartifact.Summary{Total: 2, Completed: 1, Pending: 1}},
		{Name: "Bob", Quota: 1, Summary: domainartifact.Summary{Total: 1, MaskOnly: 1}},
	}, got)
}

// ── worker_status ─────────────────────────────────────────────────────────────

func TestWorkerStatusHandler(t *testing.T) {
	tests := []struct {
		name         string
		args         map[string]any
		wantContains string
	}{
		{name: "known worker", args: map[string]any{"worker": "Amy"}, wantContains: `"xcf_exists":true`},
		{name: "unknown worker", args: map[string]any{"worker": "Zed"}, wantContains: "error: unknown worker"},
		{name: "missing worker", args: map[string]any{}, wantContains: "error: worker is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, artSvc := newToolsDeps(t, "a.xcf")
			res, err := workerStatusHandler(artSvc)(context.Background(), makeReq(tt.args))
			require.NoError(t, err)
			assert.Contains(t, resultText(res), tt.wantContains)
		})
	}
}

// ── image_status ──────────────────────────────────────────────────────────────

func TestImageStatusHandler(t *testing.T) {
	tests := []struct {
		name         string
		args         map[string]any
		wantContains string
	}{
		{name: "assigned image", args: map[string]any{"worker": "Amy", "filename": "a.png"}, wantContains: `"bucket":"completed"`},
		{name: "not assigned", args: map[string]any{"worker": "Bob", "filename": "a.png"}, wantContains: "error: file not assigned to worker"},
		{name: "missing filename", args: map[string]any{"worker": "Amy"}, wantContains: "error: worker and filename are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, artSvc := newToolsDeps(t, "a.xcf", "a_mask.png")
			res, err := imageStatusHandler(artSvc)(context.Background(), makeReq(tt.args))
			require.NoError(t, err)
			assert.Contains(t, resultText(res), tt.wantContains)
		})
	}
}

// ── watch_worker ──────────────────────────────────────────────────────────────

func TestWatchWorkerHandler_Errors(t *testing.T) {
	aSvc, _ := newToolsDeps(t)
	reg := NewSessionRegistry()
	h := watchWorkerHandler(reg, aSvc)

	res, err := h(context.Background(), makeReq(map[string]any{"worker": "Zed"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "error: unknown worker")

	res, err = h(context.Background(), makeReq(map[string]any{"worker": "Amy"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(res), "error: watch_worker requires a session")
	assert.Empty(t, reg.Watchers("Amy"))
}

// ── server ────────────────────────────────────────────────────────────────────

func TestNew_RegistersTools(t *testing.T) {
	aSvc, artSvc := newToolsDeps(t)
	srv := New(NewSessionRegistry(), aSvc, artSvc)
	require.NotNil(t, srv.Handler())

	msg := srv.mcpSrv.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	for _, name := range []string{"list_workers", "worker_status", "image_status", "watch_worker"} {
		assert.Contains(t, string(data), `"name":"`+name+`"`)
	}
}

func TestSubscribe_NoWatchersIsQuiet(t *testing.T) {
	aSvc, artSvc := newToolsDeps(t)
	srv := New(NewSessionRegistry(), aSvc, artSvc)

	bus := memory.NewEventBus()
	delivered := make(chan struct{}, 1)
	probe, err := bus.Subscribe(context.Background(), func(context.Context, event.Event) { delivered <- struct{}{} })
	require.NoError(t, err)
	defer probe.Unsubscribe()

	sub, err := srv.Subscribe(context.Background(), bus)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	require.NoError(t, bus.Publish(context.Background(), event.New(event.TypeArtifactUploaded, "Amy", "a.png")))
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatalf("event %s not delivered", event.TypeArtifactUploaded)
	}
}
