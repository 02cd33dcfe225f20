package detector

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// idleShutdown is how long an unused service process is kept alive.
const idleShutdown = 30 * time.Second

// ProcessModel implements Model using a Python MediaPipe service subprocess.
// Frames are written as a 4-byte big-endian length followed by JPEG bytes;
// the service answers each frame with one JSON line.
type ProcessModel struct {
	kind       Kind
	scriptPath string
	log        zerolog.Logger

	mu        sync.Mutex
	opts      Options
	onResults func(Result)
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	started   bool
	idleTimer *time.Timer
}

// ScriptName returns the service script file for a model kind.
func ScriptName(kind Kind) string {
	return string(kind) + "_service.py"
}

// NewProcessModel creates a model backed by <scriptDir>/<kind>_service.py.
// The Python process is started lazily on the first frame.
func NewProcessModel(kind Kind, scriptDir string, opts Options, log zerolog.Logger) (*ProcessModel, error) {
	scriptPath := findScript(scriptDir, ScriptName(kind))
	if scriptPath == "" {
		return nil, fmt.Errorf("%s: %w", ScriptName(kind), ErrServiceNotFound)
	}

	return &ProcessModel{
		kind:       kind,
		scriptPath: scriptPath,
		opts:       opts,
		log:        log.With().Str("model", string(kind)).Logger(),
	}, nil
}

// Kind returns the model kind.
func (m *ProcessModel) Kind() Kind {
	return m.kind
}

// SetOptions stores new options. A running service is stopped so the next
// frame restarts it with the new options.
func (m *ProcessModel) SetOptions(opts Options) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.opts = opts
	if m.started {
		if err := m.shutdown(); err != nil {
			m.log.Warn().Err(err).Msg("restart after option change")
		}
	}
}

// OnResults registers the result callback.
func (m *ProcessModel) OnResults(cb func(Result)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onResults = cb
}

// Send runs inference on one frame and delivers the result to the callback
// before returning.
func (m *ProcessModel) Send(ctx context.Context, req Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.Image == nil || req.Image.Empty() {
		return fmt.Errorf("%s: empty frame", m.kind)
	}

	m.mu.Lock()
	result, err := m.infer(req)
	cb := m.onResults
	m.mu.Unlock()

	if err != nil {
		return err
	}
	if cb != nil {
		cb(result)
	}
	return nil
}

func (m *ProcessModel) infer(req Request) (Result, error) {
	if err := m.ensureStarted(); err != nil {
		return Result{}, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *req.Image)
	if err != nil {
		return Result{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := m.stdin.Write(length); err != nil {
		m.fail()
		return Result{}, fmt.Errorf("write length: %w", err)
	}
	if _, err := m.stdin.Write(data); err != nil {
		m.fail()
		return Result{}, fmt.Errorf("write data: %w", err)
	}

	line, err := m.stdout.ReadBytes('\n')
	if err != nil {
		m.fail()
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	result, err := parseResponse(m.kind, line)
	if err != nil {
		return Result{}, err
	}
	result.Seq = req.Seq

	m.resetIdleTimer()
	return result, nil
}

// Close shuts down the Python process.
func (m *ProcessModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shutdown()
}

func (m *ProcessModel) ensureStarted() error {
	if m.started {
		return nil
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	optsJSON, err := json.Marshal(m.opts)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	m.cmd = exec.Command(pythonPath, m.scriptPath, "--options", string(optsJSON))

	stdin, err := m.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := m.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	m.cmd.Stderr = os.Stderr

	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("start %s service: %w", m.kind, err)
	}

	m.stdin = stdin
	m.stdout = bufio.NewReader(stdout)
	m.started = true
	m.log.Info().Str("script", m.scriptPath).Msg("model service started")

	return nil
}

// fail tears down a service whose pipe broke so the next frame restarts it.
func (m *ProcessModel) fail() {
	if err := m.shutdown(); err != nil {
		m.log.Warn().Err(err).Msg("service exited")
	}
}

func (m *ProcessModel) shutdown() error {
	if !m.started {
		return nil
	}

	if m.idleTimer != nil {
		m.idleTimer.Stop()
		m.idleTimer = nil
	}

	if m.stdin != nil {
		m.stdin.Close()
	}

	err := m.cmd.Wait()
	m.started = false
	m.cmd = nil
	m.stdin = nil
	m.stdout = nil

	return err
}

func (m *ProcessModel) resetIdleTimer() {
	if m.idleTimer != nil {
		m.idleTimer.Stop()
	}
	m.idleTimer = time.AfterFunc(idleShutdown, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if err := m.shutdown(); err != nil {
			m.log.Debug().Err(err).Msg("idle shutdown")
		}
	})
}

func findScript(scriptDir, name string) string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", name),
		filepath.Join("..", "scripts", name),
		filepath.Join(execDir, "scripts", name),
	}
	if scriptDir != "" {
		candidates = append([]string{filepath.Join(scriptDir, name)}, candidates...)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".airsketch/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonResponse is the union of what the three services print per frame.
type jsonResponse struct {
	Hands []jsonHand   `json:"hands"`
	Faces [][]Landmark `json:"faces"`
	Pose  []Landmark   `json:"pose"`
	Error string       `json:"error"`
}

type jsonHand struct {
	Points     []Landmark `json:"points"`
	Handedness string     `json:"handedness"`
	Score      float64    `json:"score"`
}

func (h jsonHand) toHand() Hand {
	hand := Hand{
		Handedness: h.Handedness,
		Score:      h.Score,
	}
	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		hand.Points[i] = h.Points[i]
	}
	return hand
}

func parseResponse(kind Kind, line []byte) (Result, error) {
	var resp jsonResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return Result{}, fmt.Errorf("parse %s response: %w", kind, err)
	}
	if resp.Error != "" {
		return Result{}, fmt.Errorf("%s service: %s", kind, resp.Error)
	}

	result := Result{Kind: kind}
	switch kind {
	case KindHands:
		if len(resp.Hands) > 0 {
			result.Hands = make([]Hand, len(resp.Hands))
			for i, h := range resp.Hands {
				result.Hands[i] = h.toHand()
			}
		}
	case KindFace:
		// only the first face is used
		if len(resp.Faces) > 0 {
			result.Face = resp.Faces[0]
		}
	case KindPose:
		result.Pose = resp.Pose
	}
	return result, nil
}
