package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-holodisplay/internal/app"
	"github.com/coreman2200/funtimes-holodisplay/internal/config"
	diag "github.com/coreman2200/funtimes-holodisplay/internal/diagnostics"
	"github.com/coreman2200/funtimes-holodisplay/internal/frames"
	"github.com/coreman2200/funtimes-holodisplay/internal/motor"
	"github.com/coreman2200/funtimes-holodisplay/internal/options"
)

// State is the control surface: form posts from the web UI and the motor
// controller, frame uploads, health and websocket control/diagnostics.
type State struct {
	mu    sync.RWMutex
	Core  *app.Core
	Motor *motor.Tracker

	ConfigPath    string
	Cfg           *config.Config // persisted with the current options
	CurrentDriver string
	// DirectUpload skips writing uploads to Cfg.ImagePath, so they are lost
	// on restart.
	DirectUpload bool

	startTime   time.Time
	diagClients map[*websocket.Conn]bool
}

func NewState(core *app.Core, m *motor.Tracker, cfg *config.Config, configPath string) *State {
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &State{
		Core:        core,
		Motor:       m,
		Cfg:         cfg,
		ConfigPath:  configPath,
		startTime:   time.Now(),
		diagClients: map[*websocket.Conn]bool{},
	}
}

// HandlePost applies url-encoded fields: option sliders and levers (s2..s6,
// l2 or their plain names), motor power s1, motor lever l1, upload mode l3
// and pulse reports m1.
func (s *State) HandlePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var bad []string
	optsChanged := false
	for key, vals := range r.PostForm {
		if len(vals) == 0 {
			continue
		}
		v := vals[len(vals)-1]
		changed, err := s.applyField(key, v)
		if err != nil {
			log.Warn().Err(err).Str("field", key).Str("value", v).Msg("control field rejected")
			bad = append(bad, key)
			continue
		}
		optsChanged = optsChanged || changed
	}
	if optsChanged {
		s.saveConfig()
	}
	if len(bad) > 0 {
		http.Error(w, "bad fields: "+strings.Join(bad, ","), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "OK")
}

// applyField reports whether a render option changed.
func (s *State) applyField(key, value string) (bool, error) {
	switch {
	case options.Known(key):
		return true, s.Core.Opts.Apply(key, value)
	case key == "s1":
		p, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return false, fmt.Errorf("power: %w", err)
		}
		s.Motor.SetTargetPower(p)
	case key == "l1":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("motor lever: %w", err)
		}
		s.Motor.SetEnabled(on)
	case key == "l3":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("upload lever: %w", err)
		}
		s.mu.Lock()
		s.DirectUpload = on
		s.mu.Unlock()
	case key == "m1":
		us, err := motor.ParseReport(value)
		if err != nil {
			return false, err
		}
		s.Motor.Pulse(us)
	case strings.HasPrefix(key, "c"):
		log.Info().Str("field", key).Str("color", value).Msg("colour input ignored")
	default:
		return false, fmt.Errorf("unknown field %q", key)
	}
	return false, nil
}

func (s *State) HandleTargetPower(w http.ResponseWriter, r *http.Request) {
	writeInt(w, s.Motor.TargetPowerValue())
}

func (s *State) HandleCurrentRPM(w http.ResponseWriter, r *http.Request) {
	writeInt(w, s.Motor.RPM())
}

// HandleCanUpload answers 1 unless a reload is in progress.
func (s *State) HandleCanUpload(w http.ResponseWriter, r *http.Request) {
	if s.Core.Reloading() {
		writeInt(w, 0)
		return
	}
	writeInt(w, 1)
}

func writeInt(w http.ResponseWriter, v int) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, strconv.Itoa(v))
}

// HandleUpload replaces the animation with a binary frame sequence sent as
// the raw body or as the first file of a multipart form.
func (s *State) HandleUpload(w http.ResponseWriter, r *http.Request) {
	var src io.Reader = r.Body
	if mr, err := r.MultipartReader(); err == nil {
		part, err := mr.NextPart()
		if err != nil {
			http.Error(w, "multipart: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer part.Close()
		src = part
	}
	// One byte past capacity is enough for the store to report truncation;
	// the rest of an oversized body is left unread.
	limit := int64(s.Core.Frames.Capacity())*int64(s.Core.Frames.RecordSize()) + 1
	data, err := io.ReadAll(io.LimitReader(src, limit))
	if err != nil {
		http.Error(w, "read upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.Core.ReloadBytes(data)
	d := diag.FromLoad(res, err)
	s.pushDiag(d)

	status := http.StatusOK
	switch {
	case err == nil, errors.Is(err, frames.ErrCapacityExceeded):
		s.persistUpload(data[:res.Bytes])
	case errors.Is(err, frames.ErrEmptySource):
		status = http.StatusBadRequest
	case errors.Is(err, frames.ErrMalformedRecord):
		status = http.StatusUnprocessableEntity
	default:
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"result": res, "diagnostic": d})
}

func (s *State) persistUpload(data []byte) {
	s.mu.RLock()
	direct, path := s.DirectUpload, s.Cfg.ImagePath
	s.mu.RUnlock()
	if direct || path == "" {
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Error().Err(err).Str("path", path).Msg("persist upload")
		return
	}
	log.Info().Str("path", path).Int("bytes", len(data)).Msg("upload saved")
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.health())
}

func (s *State) health() map[string]any {
	c := s.Core
	s.mu.RLock()
	drv := s.CurrentDriver
	s.mu.RUnlock()
	return map[string]any{
		"uptime_s":  time.Since(s.startTime).Seconds(),
		"driver":    drv,
		"clock":     c.Clock.State(),
		"degrees":   c.Clock.Degrees(),
		"frame":     c.Clock.Frame(),
		"frames":    c.Frames.Count(),
		"period_us": c.Clock.Period().Microseconds(),
		"rpm":       s.Motor.RPM(),
		"power":     s.Motor.TargetPowerValue(),
		"options":   c.Opts.Snapshot(),
		"engine":    c.Eng.Stats(),
	}
}

func upgrader() websocket.Upgrader {
	return websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
}

// HandleControlWS accepts JSON objects of option names to values, e.g.
// {"brightness":40,"enabled":true}, and answers each with the health record.
func (s *State) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	up := upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		s.applyControl(msg)
		if err := conn.WriteJSON(s.health()); err != nil {
			return
		}
	}
}

func (s *State) applyControl(msg map[string]any) {
	changed := false
	for k, v := range msg {
		var val string
		switch x := v.(type) {
		case float64:
			val = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			val = strconv.FormatBool(x)
		case string:
			val = x
		default:
			continue
		}
		if k == "period_us" {
			if us, err := strconv.Atoi(val); err == nil {
				s.Core.Clock.SetPeriod(time.Duration(us) * time.Microsecond)
			}
			continue
		}
		c, err := s.applyField(k, val)
		if err != nil {
			s.pushDiag(diag.Diagnostic{
				Severity: diag.Warn, Code: "CONTROL.REJECTED", Summary: "Control value rejected",
				Detail: err.Error(), Evidence: map[string]any{"key": k, "value": val},
			})
			continue
		}
		changed = changed || c
	}
	if changed {
		s.saveConfig()
	}
}

func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	up := upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.diagClients[conn] = true
	s.mu.Unlock()
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.diagClients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *State) pushDiag(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.diagClients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}

// saveConfig writes the current options back into config.yaml.
func (s *State) saveConfig() {
	if s.ConfigPath == "" {
		return
	}
	o := s.Core.Opts.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	level := int(o.Brightness)
	s.Cfg.Brightness = &level
	s.Cfg.OffsetDegrees = int(o.OffsetDegrees)
	s.Cfg.RedAdjust = int(o.RedAdjust)
	s.Cfg.GreenAdjust = int(o.GreenAdjust)
	s.Cfg.BlueAdjust = int(o.BlueAdjust)
	on := o.Enabled
	s.Cfg.Enabled = &on
	if err := config.Save(s.ConfigPath, s.Cfg); err != nil {
		log.Error().Err(err).Str("path", s.ConfigPath).Msg("save config")
	}
}
