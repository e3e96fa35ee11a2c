package ws

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-holodisplay/internal/app"
	"github.com/coreman2200/funtimes-holodisplay/internal/config"
	"github.com/coreman2200/funtimes-holodisplay/internal/frames"
	"github.com/coreman2200/funtimes-holodisplay/internal/motor"
	"github.com/coreman2200/funtimes-holodisplay/internal/options"
)

type nopDriver struct{}

func (nopDriver) Write([]frames.Pixel, uint8) error { return nil }
func (nopDriver) Close() error { return nil }

func newTestServer(t *testing.T) (*State, *httptest.Server) {
	t.Helper()
	core, err := app.InitCore(app.HWConfig{
		LedsPerSide:  4,
		MaxFrames:    3,
		DegreePeriod: time.Millisecond,
		Options:      options.Default(),
	}, nopDriver{})
	require.NoError(t, err)
	t.Cleanup(func() { core.Close() })

	dir := t.TempDir()
	cfg := &config.Config{Driver: "sim", ImagePath: filepath.Join(dir, "image.bin")}
	s := NewState(core, motor.NewTracker(90, 1), cfg, filepath.Join(dir, "config.yaml"))
	s.CurrentDriver = "sim"
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return s, srv
}

func records(side, n int) []byte {
	var buf bytes.Buffer
	for i := 0; i < n; i++ {
		binary.Write(&buf, binary.LittleEndian, uint16(50))
		buf.Write(bytes.Repeat([]byte{byte(i + 1)}, side*side*3))
	}
	return buf.Bytes()
}

func get(t *testing.T, u string) string {
	t.Helper()
	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestPostAppliesOptionsAndPersists(t *testing.T) {
	s, srv := newTestServer(t)

	resp, err := http.PostForm(srv.URL+"/post", url.Values{
		"s2": {"77"}, "s3": {"-20"}, "offset": {"450"}, "l2": {"false"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	o := s.Core.Opts.Snapshot()
	assert.Equal(t, uint8(77), o.Brightness)
	assert.Equal(t, int16(-20), o.RedAdjust)
	assert.Equal(t, uint16(90), o.OffsetDegrees)
	assert.False(t, o.Enabled)

	saved, err := config.Load(s.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, 77, saved.BrightnessOr(0))
	assert.Equal(t, 90, saved.OffsetDegrees)
	require.NotNil(t, saved.Enabled)
	assert.False(t, *saved.Enabled)
}

func TestPostRejectsBadFields(t *testing.T) {
	s, srv := newTestServer(t)
	resp, err := http.PostForm(srv.URL+"/post", url.Values{"s2": {"loud"}, "s4": {"5"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	// The valid field still lands.
	assert.Equal(t, int16(5), s.Core.Opts.Snapshot().GreenAdjust)
}

func TestMotorEndpoints(t *testing.T) {
	_, srv := newTestServer(t)

	assert.Equal(t, "0", get(t, srv.URL+"/TargetPower"))
	resp, err := http.PostForm(srv.URL+"/post", url.Values{"l1": {"true"}})
	require.NoError(t, err)
	resp.Body.Close()
	resp, err = http.PostForm(srv.URL+"/post", url.Values{"s1": {"100"}, "m1": {"2000"}})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "255", get(t, srv.URL+"/TargetPower"))
	assert.Equal(t, "333", get(t, srv.URL+"/CurrentRPM"))
	assert.Equal(t, "1", get(t, srv.URL+"/CanUpload"))
}

func TestUploadReloadsAndSaves(t *testing.T) {
	s, srv := newTestServer(t)
	body := records(8, 2)

	resp, err := http.Post(srv.URL+"/upload", "application/octet-stream", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Result frames.LoadResult `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 2, out.Result.Frames)
	assert.Equal(t, 2, s.Core.Frames.Count())

	saved, err := os.ReadFile(s.Cfg.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, body, saved)
}

func TestUploadMultipartDirect(t *testing.T) {
	s, srv := newTestServer(t)
	resp, err := http.PostForm(srv.URL+"/post", url.Values{"l3": {"true"}})
	require.NoError(t, err)
	resp.Body.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "anim.bin")
	require.NoError(t, err)
	_, err = fw.Write(records(8, 1))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err = http.Post(srv.URL+"/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, s.Core.Frames.Count())

	_, err = os.Stat(s.Cfg.ImagePath)
	assert.ErrorIs(t, err, os.ErrNotExist, "direct uploads are not persisted")
}

func TestUploadOverCapacityTruncates(t *testing.T) {
	s, srv := newTestServer(t)
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/diag"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.diagClients) == 1
	}, time.Second, time.Millisecond)

	capacity := s.Core.Frames.Capacity()
	body := records(8, capacity+3)
	resp, err := http.Post(srv.URL+"/upload", "application/octet-stream", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Result frames.LoadResult `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, capacity, out.Result.Frames)
	assert.True(t, out.Result.Truncated)
	assert.Equal(t, capacity, s.Core.Frames.Count())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var d map[string]any
	require.NoError(t, conn.ReadJSON(&d))
	assert.Equal(t, "LOAD_TRUNCATED", d["code"])

	// Only the frames that fit are kept on disk.
	saved, err := os.ReadFile(s.Cfg.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, body[:capacity*s.Core.Frames.RecordSize()], saved)
}

func TestUploadErrors(t *testing.T) {
	s, srv := newTestServer(t)
	before := s.Core.Frames.Count()

	resp, err := http.Post(srv.URL+"/upload", "application/octet-stream", strings.NewReader(""))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, before, s.Core.Frames.Count())

	b := records(8, 1)
	resp, err = http.Post(srv.URL+"/upload", "application/octet-stream", bytes.NewReader(b[:len(b)-1]))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, 0, s.Core.Frames.Count())
}

func TestHealth(t *testing.T) {
	_, srv := newTestServer(t)
	var h map[string]any
	require.NoError(t, json.Unmarshal([]byte(get(t, srv.URL+"/health")), &h))
	assert.Equal(t, "sim", h["driver"])
	assert.Equal(t, "running", h["clock"])
	assert.EqualValues(t, 3, h["frames"])
	assert.EqualValues(t, 1000, h["period_us"])
}

func TestControlWebsocket(t *testing.T) {
	s, srv := newTestServer(t)
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/control"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"brightness": 12, "blue": -7, "enabled": true}))
	var h map[string]any
	require.NoError(t, conn.ReadJSON(&h))

	o := s.Core.Opts.Snapshot()
	assert.Equal(t, uint8(12), o.Brightness)
	assert.Equal(t, int16(-7), o.BlueAdjust)
	assert.True(t, o.Enabled)
	assert.Contains(t, h, "options")
}

func TestDiagWebsocketReceivesUploadOutcome(t *testing.T) {
	s, srv := newTestServer(t)
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/diag"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.diagClients) == 1
	}, time.Second, time.Millisecond)

	resp, err := http.Post(srv.URL+"/upload", "application/octet-stream", strings.NewReader(""))
	require.NoError(t, err)
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var d map[string]any
	require.NoError(t, conn.ReadJSON(&d))
	assert.Equal(t, "LOAD_EMPTY", d["code"])
	assert.Equal(t, "warning", d["severity"])
}
