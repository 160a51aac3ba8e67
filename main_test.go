package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zlnvch/drawroom/api"
	"github.com/zlnvch/drawroom/canvas"
	"github.com/zlnvch/drawroom/models"
	"github.com/zlnvch/drawroom/service"
	storemocks "github.com/zlnvch/drawroom/store/mocks"
)

func TestBuildRootCmd_Subcommands(t *testing.T) {
	rootCmd := buildRootCmd()

	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"serve", "token", "snapshot"}, names)
}

func TestNewRenderTarget(t *testing.T) {
	target, err := newRenderTarget("out.PDF", 100, 100)
	require.NoError(t, err)
	assert.IsType(t, &canvas.PDFSurface{}, target)

	target, err = newRenderTarget("room.png", 100, 100)
	require.NoError(t, err)
	assert.IsType(t, &canvas.RasterSurface{}, target)

	_, err = newRenderTarget("room.svg", 100, 100)
	assert.Error(t, err)
}

func TestSnapshot_RendersReplayedHistory(t *testing.T) {
	secret := []byte("secret")
	mockStore := new(storemocks.MockStore)
	mockStore.On("ListRecentChats", mock.Anything, "room-1", service.RecentChatsLimit).Return([]models.Chat{
		{Id: "1", RoomId: "room-1", Message: `{"shape":{"type":"rect","x":1,"y":2,"width":3,"height":4,"color":"red","lineWidth":2}}`},
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drawroomAPI, err := api.NewDrawroomAPI(mockStore, nil, nil, secret, nil, ctx)
	require.NoError(t, err)
	mux := http.NewServeMux()
	drawroomAPI.RegisterRoutes(mux, func(string) bool { return true })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc, err := service.NewService(mockStore, nil, nil, secret, nil)
	require.NoError(t, err)
	token, err := svc.CreateJWT("alice")
	require.NoError(t, err)

	rec := &canvas.Recorder{}
	err = snapshot(context.Background(), snapshotOptions{
		server: srv.URL,
		token:  token,
		room:   "room-1",
		wait:   50 * time.Millisecond,
	}, rec)
	require.NoError(t, err)
	assert.Contains(t, rec.Ops, "rect 1 2 3 4 red 2")
}
