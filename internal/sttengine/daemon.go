package sttengine

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

// DaemonConfig describes how to reach (and, if absent, start) the local STT
// engine daemon.
type DaemonConfig struct {
	SocketPath   string
	Command      string
	StartTimeout time.Duration
}

// Daemon is a gRPC-reachable STT engine running as a local background
// process, addressed over a Unix domain socket. Readiness is established
// via the standard gRPC health-checking protocol; the inference call itself
// is carried over a small framed-JSON request/response on the same socket,
// since the wire schema for a given engine's model output is
// implementation-specific and outside the scope of a generated proto
// service.
type Daemon struct {
	cfg  DaemonConfig
	mu   sync.Mutex
	cmd  *exec.Cmd
	conn *grpc.ClientConn
}

// NewDaemon builds a Daemon adapter. It does not dial or spawn anything
// until EnsureRunning is called.
func NewDaemon(cfg DaemonConfig) *Daemon {
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 15 * time.Second
	}
	return &Daemon{cfg: cfg}
}

// EnsureRunning dials the daemon's gRPC health endpoint, spawning the
// configured process first if nothing answers: ping an existing connection
// first, otherwise start the process and poll until the health check
// reports SERVING or the start timeout elapses.
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
	return fmt.Errorf("sttengine: daemon did not become ready within %s", d.cfg.StartTimeout)
}

func (d *Daemon) startProcess() error {
	if d.cmd != nil && d.cmd.Process != nil {
		return nil
	}
	parts, err := shlex.Split(d.cfg.Command)
	if err != nil || len(parts) == 0 {
		return fmt.Errorf("sttengine: invalid engine command %q", d.cfg.Command)
	}
	cmd := exec.Command(parts[0], parts[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("sttengine: failed to start engine process: %w", err)
	}
	d.cmd = cmd
	logger.Info("Started STT engine daemon", "command", d.cfg.Command, "pid", cmd.Process.Pid)
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
		return fmt.Errorf("sttengine: not dialed")
	}
	client := grpc_health_v1.NewHealthClient(d.conn)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp, err := client.Check(pingCtx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("sttengine: daemon reports status %s", resp.Status)
	}
	return nil
}

type transcribeRequest struct {
	AudioB64     string `json:"audioB64"`
	Engine       string `json:"engine"`
	Model        string `json:"model"`
	LanguageHint string `json:"languageHint"`
	RequestID    string `json:"requestId"`
}

type transcribeResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Transcribe ensures the daemon is reachable, then sends one length-prefixed
// JSON request over a fresh connection to the same socket and reads the
// framed JSON response.
func (d *Daemon) Transcribe(ctx context.Context, audio []byte, engine, model, languageHint, requestID string) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}
	if err := d.EnsureRunning(ctx); err != nil {
		return "", err
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", d.cfg.SocketPath)
	if err != nil {
		return "", fmt.Errorf("sttengine: transcribe dial failed: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	reqBody, err := json.Marshal(transcribeRequest{
		AudioB64:     base64.StdEncoding.EncodeToString(audio),
		Engine:       engine,
		Model:        model,
		LanguageHint: languageHint,
		RequestID:    requestID,
	})
	if err != nil {
		return "", err
	}
	if err := writeFrame(conn, reqBody); err != nil {
		return "", fmt.Errorf("sttengine: transcribe write failed: %w", err)
	}

	respBody, err := readFrame(conn)
	if err != nil {
		return "", fmt.Errorf("sttengine: transcribe read failed: %w", err)
	}

	var resp transcribeResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("sttengine: malformed transcribe response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("sttengine: %s", resp.Error)
	}
	return resp.Text, nil
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
