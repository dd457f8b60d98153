package core

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/anmitsu/go-shlex"
	"github.com/gliderlabs/ssh"
	"github.com/josephlewis42/tinyos/core/config"
	"github.com/josephlewis42/tinyos/core/console"
	"github.com/josephlewis42/tinyos/core/kernel"
	"github.com/josephlewis42/tinyos/core/ttylog"
	"go.uber.org/zap"
	gossh "golang.org/x/crypto/ssh"
)

// Server gives every SSH session a machine of its own.
type Server struct {
	configuration *config.Configuration
	logger        *zap.Logger
	record        bool
	sshServer     *ssh.Server
}

// NewServer creates an SSH server, record saves every session to the
// configuration's recordings directory.
func NewServer(configuration *config.Configuration, logger *zap.Logger, record bool) (*Server, error) {
	server := &Server{
		configuration: configuration,
		logger:        logger,
		record:        record,
	}

	server.sshServer = &ssh.Server{
		Addr: fmt.Sprintf(":%d", configuration.SSH.Port),
		Handler: func(s ssh.Session) {
			server.HandleSession(s)
		},
		ServerConfigCallback: func(ctx ssh.Context) *gossh.ServerConfig {
			cfg := &gossh.ServerConfig{}
			if banner := configuration.SSH.Banner; banner != "" {
				cfg.BannerCallback = func(gossh.ConnMetadata) string {
					return banner
				}
			}
			return cfg
		},
	}

	pem, err := configuration.PrivateKeyPem()
	if err != nil {
		return nil, fmt.Errorf("reading host key: %w", err)
	}
	signer, err := gossh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("parsing host key: %w", err)
	}
	server.sshServer.AddHostKey(signer)
	logger.Info("host key", zap.String("fingerprint", gossh.FingerprintSHA256(signer.PublicKey())))

	return server, nil
}

// HandleSession boots a machine on the session and returns when it halts.
func (h *Server) HandleSession(s ssh.Session) {
	ptyInfo, winch, isPTY := s.Pty()

	sessionLogger := h.logger.With(
		zap.String("user", s.User()),
		zap.String("remote_addr", fmt.Sprintf("%s", s.RemoteAddr())))
	sessionLogger.Info("session start", zap.Bool("pty", isPTY), zap.String("command", s.RawCommand()))

	width := int64(ptyInfo.Window.Width)
	go func() {
		for window := range winch {
			atomic.StoreInt64(&width, int64(window.Width))
		}
	}()

	ctx, cancel := context.WithCancel(s.Context())
	defer cancel()

	con, err := console.New(console.Options{
		In:          s,
		Out:         s,
		LineEditing: isPTY,
		Width: func() int {
			return int(atomic.LoadInt64(&width))
		},
		CRLF:  isPTY,
		OnEOF: cancel,
	})
	if err != nil {
		sessionLogger.Error("console", zap.Error(err))
		s.Exit(1)
		return
	}
	defer con.Close()

	bootID := NewBootID()

	var vio kernel.VIO = con
	if h.record {
		name := fmt.Sprintf("%s-%s.cast", time.Now().UTC().Format("20060102T150405Z"), s.User())
		fd, err := h.configuration.CreateRecording(name)
		if err != nil {
			sessionLogger.Error("recording", zap.Error(err))
			s.Exit(1)
			return
		}
		defer fd.Close()
		sessionLogger.Info("recording", zap.String("name", fd.Name()), zap.String("boot_id", bootID))
		header := ttylog.MachineHeader(bootID, ptyInfo.Term, ptyInfo.Window.Width, ptyInfo.Window.Height)
		vio = ttylog.NewRecorder(con, ttylog.NewAsciicastLogSink(fd, header))
	}

	status, err := h.run(ctx, s, bootID, vio, sessionLogger)
	if err != nil {
		sessionLogger.Warn("session failed", zap.Error(err))
		fmt.Fprintf(s.Stderr(), "tinyos: %v\n", err)
	}
	sessionLogger.Info("session end", zap.Int("status", status))
	s.Exit(status)
}

// run boots a machine, or runs the requested command without init.
func (h *Server) run(ctx context.Context, s ssh.Session, bootID string, vio kernel.VIO, logger *zap.Logger) (int, error) {
	machine, err := NewMachine(h.configuration, bootID, vio, logger)
	if err != nil {
		return 1, err
	}
	defer machine.Halt(nil)

	if raw := strings.TrimSpace(s.RawCommand()); raw != "" {
		argv, err := shlex.Split(raw, true)
		if err != nil {
			return 1, err
		}
		if len(argv) == 0 {
			return 1, fmt.Errorf("empty command %q", raw)
		}
		return machine.Run(argv[0], argv, vio)
	}

	if motd := h.configuration.SSH.Motd; motd != "" {
		io.WriteString(vio.Stdout(), strings.TrimRight(motd, "\n")+"\n")
	}

	if err := machine.Boot(ctx); err != nil {
		return 1, err
	}
	return 0, nil
}

func (h *Server) ListenAndServe() error {
	log.Printf("- Starting SSH server on %s\n", h.sshServer.Addr)
	return h.sshServer.ListenAndServe()
}

func (h *Server) Shutdown(ctx context.Context) error {
	return h.sshServer.Shutdown(ctx)
}
