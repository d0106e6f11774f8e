package gameproc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/decentgg/bridgebot/internal/protocol"
)

const (
	defaultConnectTimeout = 60 * time.Second
	defaultSendDelay      = 100 * time.Millisecond

	quitCommand     = "/quit"
	postJoinCommand = "/limbo"

	stopGrace = 5 * time.Second
	killGrace = 2 * time.Second

	// captureLimit bounds the output capture buffer; older output is
	// discarded once the retained window grows past it. Offsets stay
	// absolute across trims.
	captureLimit = 256 * 1024
)

var (
	// ErrClientMissing means the game client executable does not exist.
	ErrClientMissing = errors.New("game client executable not found")
	// ErrConnectTimeout means the server-joined marker never arrived.
	ErrConnectTimeout = errors.New("timed out waiting for server join")
)

// Handler receives every parsed protocol event. Handlers run on the read
// loop goroutine and must never block on network I/O.
type Handler func(protocol.Event)

// Option configures a Client.
type Option func(*Client)

func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) { c.connectTimeout = d }
}

func WithSendDelay(d time.Duration) Option {
	return func(c *Client) { c.sendDelay = d }
}

// Client owns the supervised game client process and its line-based I/O.
// One dedicated goroutine blocks on output reads; a second drains the
// command queue with a fixed inter-send delay. All writes from any producer
// go through that single serialized path.
type Client struct {
	path           string
	connectTimeout time.Duration
	sendDelay      time.Duration
	logger         *zap.Logger

	cmd   *exec.Cmd
	stdin io.WriteCloser

	writeMu sync.Mutex

	queueMu sync.Mutex
	queue   []string
	wake    chan struct{}

	handlers []Handler

	captureMu   sync.Mutex
	capture     bytes.Buffer
	captureBase int

	joined   chan struct{}
	joinOnce sync.Once
	exited   chan struct{}
	stopping chan struct{}
	stopOnce sync.Once
}

func NewClient(path string, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		path:           path,
		connectTimeout: defaultConnectTimeout,
		sendDelay:      defaultSendDelay,
		logger:         logger,
		wake:           make(chan struct{}, 1),
		joined:         make(chan struct{}),
		exited:         make(chan struct{}),
		stopping:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe registers an event handler. Must be called before Start.
func (c *Client) Subscribe(h Handler) {
	c.handlers = append(c.handlers, h)
}

// Start launches the game client and blocks until the server-joined marker
// is observed in its output, or the connect timeout elapses.
func (c *Client) Start(ctx context.Context) error {
	if _, err := os.Stat(c.path); err != nil {
		return fmt.Errorf("%w: %s", ErrClientMissing, c.path)
	}

	cmd := exec.Command(c.path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return fmt.Errorf("start game client: %w", err)
	}

	c.cmd = cmd
	c.stdin = stdin

	go func() {
		_ = cmd.Wait()
		close(c.exited)
	}()
	go c.readLoop(stdoutPipe)
	go c.drainStderr(stderrPipe)
	go c.writeLoop()

	c.logger.Info("game client started", zap.String("path", c.path))

	select {
	case <-c.joined:
	case <-c.exited:
		return fmt.Errorf("game client exited before joining server")
	case <-time.After(c.connectTimeout):
		c.Stop()
		return ErrConnectTimeout
	case <-ctx.Done():
		c.Stop()
		return ctx.Err()
	}

	// Settle before the first command; joining too eagerly trips the
	// server's connection throttle.
	time.Sleep(time.Duration(3000+rand.Intn(4000)) * time.Millisecond)
	c.Enqueue(postJoinCommand)

	c.logger.Info("game client connected to server")
	return nil
}

// Enqueue puts one command line on the serialized write queue. The wire
// protocol wraps every console command in a /send envelope.
func (c *Client) Enqueue(command string) {
	if !strings.HasPrefix(command, "/send") {
		command = "/send " + command
	}
	c.queueMu.Lock()
	c.queue = append(c.queue, command)
	c.queueMu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Client) dequeue() (string, bool) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if len(c.queue) == 0 {
		return "", false
	}
	cmd := c.queue[0]
	c.queue = c.queue[1:]
	return cmd, true
}

func (c *Client) writeLoop() {
	for {
		cmd, ok := c.dequeue()
		if !ok {
			select {
			case <-c.wake:
				continue
			case <-c.stopping:
				return
			case <-c.exited:
				return
			}
		}
		if err := c.writeLine(cmd); err != nil {
			c.logger.Error("write command failed", zap.String("command", cmd), zap.Error(err))
		}
		time.Sleep(c.sendDelay)
	}
}

func (c *Client) writeLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.stdin == nil {
		return errors.New("client not started")
	}
	_, err := io.WriteString(c.stdin, line+"\n")
	return err
}

func (c *Client) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.logger.Info(line)
		c.appendCapture(line)

		ev := protocol.Parse(line)
		if ev.Kind == protocol.KindServerJoined {
			c.joinOnce.Do(func() { close(c.joined) })
		}
		if ev.Kind == protocol.KindUnknown {
			continue
		}
		for _, h := range c.handlers {
			h(ev)
		}
	}
	if err := scanner.Err(); err != nil {
		c.logger.Warn("read loop ended", zap.Error(err))
	}
}

func (c *Client) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			c.logger.Warn("game client stderr", zap.String("line", line))
		}
	}
}

func (c *Client) appendCapture(line string) {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	c.capture.WriteString(line)
	c.capture.WriteByte('\n')
	if c.capture.Len() > captureLimit {
		b := c.capture.Bytes()
		drop := len(b) - captureLimit/2
		c.captureBase += drop
		tail := append([]byte(nil), b[drop:]...)
		c.capture.Reset()
		c.capture.Write(tail)
	}
}

// CaptureOffset returns the current absolute byte offset of the output
// capture. Used with CaptureSince for presence polling diffs.
func (c *Client) CaptureOffset() int {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	return c.captureBase + c.capture.Len()
}

// CaptureSince returns the output appended after the given absolute offset.
// Offsets older than the retained window yield the whole window.
func (c *Client) CaptureSince(offset int) string {
	c.captureMu.Lock()
	defer c.captureMu.Unlock()
	rel := offset - c.captureBase
	if rel < 0 {
		rel = 0
	}
	b := c.capture.Bytes()
	if rel >= len(b) {
		return ""
	}
	return string(b[rel:])
}

// Done is closed once the game client process has exited.
func (c *Client) Done() <-chan struct{} { return c.exited }

// Stop shuts the game client down: graceful quit command, then SIGTERM,
// then SIGKILL. Safe to call more than once.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopping)
		if c.cmd == nil || c.cmd.Process == nil {
			return
		}

		// Bypass the queue: the drain loop is already stopping.
		if err := c.writeLine("/send " + quitCommand); err != nil {
			c.logger.Warn("send quit failed", zap.Error(err))
		}

		select {
		case <-c.exited:
			c.logger.Info("game client exited cleanly")
			return
		case <-time.After(stopGrace):
		}

		_ = c.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-c.exited:
			return
		case <-time.After(killGrace):
		}

		_ = c.cmd.Process.Kill()
		<-c.exited
	})
}
