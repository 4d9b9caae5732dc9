package ws

import (
	"encoding/binary"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/x448/float16"

	"github.com/coreman2200/oceanfft/internal/config"
	diag "github.com/coreman2200/oceanfft/internal/diagnostics"
	"github.com/coreman2200/oceanfft/internal/ocean"
	"github.com/coreman2200/oceanfft/internal/sim"
	"github.com/coreman2200/oceanfft/internal/texture"
	"github.com/coreman2200/oceanfft/internal/weather"
)

// State serves the preview, diagnostics and control sockets for one
// simulation engine.
type State struct {
	mu         sync.RWMutex
	Engine     *sim.Engine
	Cascade    *ocean.Cascade
	Config     *config.Config
	ConfigPath string

	frameID     uint64
	lastFrameAt time.Time
	stats       [ocean.Cascades]ocean.Stats
	metrics     sim.Metrics
	startTime   time.Time
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool
}

func NewState(e *sim.Engine, cfg *config.Config) *State {
	return &State{
		Engine:      e,
		Cascade:     e.Cascade,
		Config:      cfg,
		startTime:   time.Now(),
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
	}
}

// CascadeFrame is the coarsest height mip of one band, float16 little endian.
type CascadeFrame struct {
	Level   int     `json:"level"`
	W       int     `json:"w"`
	H       int     `json:"h"`
	Heights []byte  `json:"heights"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

type frameMsg struct {
	T        int64          `json:"t"`
	FrameID  uint64         `json:"frame_id"`
	SimT     float64        `json:"sim_t"`
	Cascades []CascadeFrame `json:"cascades"`
}

// PublishFrame broadcasts a finished frame. It runs on the simulation
// goroutine, between steps.
func (s *State) PublishFrame(f sim.Frame) {
	msg := frameMsg{T: time.Now().UnixNano(), FrameID: f.ID, SimT: f.T}
	var stats [ocean.Cascades]ocean.Stats
	for i, surf := range f.Cascade.Surfaces() {
		disp := surf.Displacement()
		l := disp.MipCount() - 1
		w, h := disp.Size(l)
		st := ocean.HeightStats(disp, l)
		stats[i] = ocean.HeightStats(disp, 0)
		msg.Cascades = append(msg.Cascades, CascadeFrame{
			Level: l, W: w, H: h,
			Heights: EncodeHeights(disp, l),
			Min:     st.Min, Max: st.Max,
		})
	}
	b, err := json.Marshal(msg)
	if err != nil {
		log.Debug().Err(err).Msg("encode frame")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameID = f.ID
	s.lastFrameAt = time.Now()
	s.stats = stats
	s.metrics = s.Engine.Last
	for c := range s.clients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}

// EncodeHeights packs the height channel of level l as float16.
func EncodeHeights(t *texture.Texture, l int) []byte {
	lvl := t.Level(l)
	out := make([]byte, 2*len(lvl))
	for i, v := range lvl {
		binary.LittleEndian.PutUint16(out[2*i:], float16.Fromfloat32(v[1]).Bits())
	}
	return out
}

// DecodeHeights is the inverse of EncodeHeights.
func DecodeHeights(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(b[2*i:])).Float32()
	}
	return out
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.sendParams(conn)
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
	go s.drain(conn, s.clients)
}

func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.diagClients[conn] = true
	s.mu.Unlock()
	go s.drain(conn, s.diagClients)
}

// drain reads until the peer goes away, then forgets the connection.
func (s *State) drain(conn *websocket.Conn, set map[*websocket.Conn]bool) {
	defer func() {
		s.mu.Lock()
		delete(set, conn)
		s.mu.Unlock()
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// HandleControlWS applies JSON parameter changes and answers each with the
// resulting parameters.
func (s *State) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
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
		s.sendParams(conn)
	}
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.Cascade.Parameters()
	states := make([]string, 0, ocean.Cascades)
	for _, surf := range s.Cascade.Surfaces() {
		states = append(states, surf.State().String())
	}
	resp := map[string]any{
		"frame_id":      s.frameID,
		"uptime_s":      time.Since(s.startTime).Seconds(),
		"last_frame_ms": time.Since(s.lastFrameAt).Milliseconds(),
		"size":          p.Size,
		"wind":          p.WindSpeed,
		"states":        states,
		"heights":       s.stats,
		"last":          s.metrics,
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// applyControl accepts wind_speed, wind_direction, swell, size, reset and
// weather ("pause" or "resume").
func (s *State) applyControl(msg map[string]any) {
	if v, ok := msg["reset"].(bool); ok && v {
		s.Engine.RequestReset()
	}
	if v, ok := msg["weather"].(string); ok {
		if wp := s.Engine.Weather(); wp != nil {
			wp.With(func(p *weather.Player) {
				switch v {
				case "pause":
					p.Pause()
				case "resume":
					p.Resume()
				}
			})
		}
	}

	p := s.Cascade.Parameters()
	changed := false
	if v, ok := msg["wind_speed"].(float64); ok {
		p.WindSpeed, changed = v, true
	}
	if v, ok := msg["wind_direction"].(float64); ok {
		p.WindDirection, changed = v, true
	}
	if v, ok := msg["swell"].(float64); ok {
		p.Swell, changed = v, true
	}
	if v, ok := msg["size"].(float64); ok {
		p.Size, changed = int(v), true
	}
	if !changed {
		return
	}
	if err := s.Cascade.ChangeParameters(p); err != nil {
		log.Warn().Err(err).Msg("control change rejected")
		s.PushDiag(diag.ConfigRejected("control", err))
		return
	}
	log.Info().Float64("wind_speed", p.WindSpeed).Float64("wind_direction", p.WindDirection).
		Float64("swell", p.Swell).Int("size", p.Size).Msg("parameters changed")
	s.saveConfig(p)
}

func (s *State) saveConfig(p ocean.CascadeParameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Config == nil || s.ConfigPath == "" {
		return
	}
	s.Config.SetCascade(p)
	if err := config.Save(s.ConfigPath, s.Config); err != nil {
		log.Warn().Err(err).Str("path", s.ConfigPath).Msg("config save failed")
	}
}

func (s *State) sendParams(conn *websocket.Conn) {
	b, _ := json.Marshal(s.Cascade.Parameters())
	_ = conn.WriteMessage(websocket.TextMessage, b)
}

// PushDiag forwards d to every diagnostics socket.
func (s *State) PushDiag(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	// one writer per connection: callers run on the sim and control goroutines
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.diagClients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}
