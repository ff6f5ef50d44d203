package ttsengine

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"yt-studio/pkg/logger"
)

// DaemonConfig describes how to reach (and, if absent, start) the local TTS
// engine daemon.
type DaemonConfig struct {
	SocketPath   string
	Command      string
	StartTimeout time.Duration
}

// Daemon is a local TTS engine process reached over a Unix socket, using
// the same health-check-then-frame-JSON split as sttengine.Daemon.
type Daemon struct {
	cfg  DaemonConfig
	mu   sync.Mutex
	cmd  *exec.Cmd
	conn *grpc.ClientConn
}

func NewDaemon(cfg DaemonConfig) *Daemon {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 15 * time.Second
	}
	return &Daemon{cfg: cfg}
}

func (d *Daemon) EnsureRunning(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		if d.ping(ctx) == nil {
			return nil
		}
		_ = d.conn.Close()
		d.conn = nil
	}

	if err := d.startProcess(); err != nil {
		return err
	}

	deadline := time.Now().Add(d.cfg.StartTimeout)
	for time.Now().Before(deadline) {
		if err := d.dial(ctx); err == nil {
			if d.ping(ctx) == nil {
				return nil
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("ttsengine: daemon did not become ready within %s", d.cfg.StartTimeout)
}

func (d *Daemon) startProcess() error {
	if d.cmd != nil && d.cmd.Process != nil {
		return nil
	}
	parts, err := shlex.Split(d.cfg.Command)
	if err != nil || len(parts) == 0 {
		return fmt.Errorf("ttsengine: invalid engine command %q", d.cfg.Command)
	}
	cmd := exec.Command(parts[0], parts[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ttsengine: failed to start engine process: %w", err)
	}
	d.cmd = cmd
	logger.Info("Started TTS engine daemon", "command", d.cfg.Command, "pid", cmd.Process.Pid)
	return nil
}

func (d *Daemon) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	conn, err := grpc.DialContext(dialCtx, "unix:"+d.cfg.SocketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
			var dialer net.Dialer
			return dialer.DialContext(ctx, "unix", strings.TrimPrefix(addr, "unix:"))
		}),
		grpc.WithBlock(),
	)
	if err != nil {
		return err
	}
	d.conn = conn
	return nil
}

func (d *Daemon) ping(ctx context.Context) error {
	if d.conn == nil {
		return fmt.Errorf("ttsengine: not dialed")
	}
	client := grpc_health_v1.NewHealthClient(d.conn)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp, err := client.Check(pingCtx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("ttsengine: daemon reports status %s", resp.Status)
	}
	return nil
}

type synthesizeRequest struct {
	Text      string `json:"text"`
	VoiceID   string `json:"voiceId"`
	Variant   string `json:"variant"`
	RequestID string `json:"requestId"`
}

type synthesizeResponse struct {
	AudioB64 string `json:"audioB64"`
	Error    string `json:"error"`
}

// Synthesize ensures the daemon is reachable, then exchanges one
// length-prefixed JSON request/response pair on a fresh connection.
func (d *Daemon) Synthesize(ctx context.Context, text, voiceID, variant, requestID string) ([]byte, error) {
	if err := d.EnsureRunning(ctx); err != nil {
		return nil, err
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", d.cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("ttsengine: synthesize dial failed: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	reqBody, err := json.Marshal(synthesizeRequest{Text: text, VoiceID: voiceID, Variant: variant, RequestID: requestID})
	if err != nil {
		return nil, err
	}
	if err := writeFrame(conn, reqBody); err != nil {
		return nil, fmt.Errorf("ttsengine: synthesize write failed: %w", err)
	}

	respBody, err := readFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("ttsengine: synthesize read failed: %w", err)
	}
	var resp synthesizeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("ttsengine: malformed synthesize response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("ttsengine: %s", resp.Error)
	}
	return decodeAudio(resp.AudioB64)
}

func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func decodeAudio(b64 string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(b64)
}
