package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/0xADE/ade-linkd/internal/config"
	"github.com/0xADE/ade-linkd/internal/link"
	"github.com/0xADE/ade-linkd/internal/linkbase"
	"github.com/0xADE/ade-linkd/internal/runcount"
	"github.com/0xADE/ade-linkd/parser"
)

// Server handles Unix socket connections and executes link commands
// against the live link base.
type Server struct {
	listener net.Listener
	base     *linkbase.LinkBase
	runs     *runcount.RunCount
	running  bool
	mu       sync.RWMutex
	locale   string
}

// NewServer creates a new server instance
func NewServer(base *linkbase.LinkBase, runs *runcount.RunCount, localeSpec string) (*Server, error) {
	cfg := config.Get()
	socketPath := cfg.UnixSocket()

	// Create directory if needed
	socketDir := filepath.Dir(socketPath)
	if err := os.MkdirAll(socketDir, 0755); err != nil {
		return nil, err
	}

	// Remove existing socket if it exists
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}

	return &Server{
		listener: listener,
		base:     base,
		runs:     runs,
		locale:   localeSpec,
	}, nil
}

// Start starts the server
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.RLock()
			running := s.running
			s.mu.RUnlock()
			if !running {
				return nil
			}
			continue
		}

		go s.handleConnection(conn)
	}
}

// Stop stops the server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return s.listener.Close()
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	log.Printf("[DEBUG] New connection accepted")

	p, err := parser.NewParser(conn)
	if err != nil {
		log.Printf("[ERROR] Failed to create parser: %v", err)
		s.writeError(conn, "parser", "invalid header", err.Error())
		return
	}

	for {
		cmd, err := p.ParseCommand()
		if err == io.EOF {
			log.Printf("[DEBUG] Connection closed by client")
			break
		}
		if err != nil {
			log.Printf("[ERROR] Parse error: %v", err)
			s.writeError(conn, "parser", "parse error", err.Error())
			continue
		}

		log.Printf("[DEBUG] Executing command: %s with %d args", cmd.Name, len(cmd.Args))
		s.executeCommand(conn, cmd)
	}
}

func (s *Server) executeCommand(conn net.Conn, cmd *parser.Command) {
	switch cmd.Name {
	case "list":
		s.handleList(conn)
	case "category":
		s.handleCategory(conn, cmd)
	case "run":
		s.handleRun(conn, cmd)
	case "lang":
		s.handleLang(conn, cmd)
	case "stats":
		s.handleStats(conn)
	default:
		s.writeError(conn, cmd.Name, "unknown command", "Command not recognized")
	}
}

func (s *Server) handleList(conn net.Conn) {
	log.Printf("[DEBUG] Handling list command")

	ids := s.base.Identities()

	attrs := fmt.Sprintf("list-len: %d\n\n", len(ids))
	body := strings.Builder{}
	for _, id := range ids {
		l := s.base.Lookup(id)
		if l == nil {
			continue
		}
		body.WriteString(fmt.Sprintf("%s %s\n", id, l.Name()))
	}

	s.writeResponse(conn, attrs+body.String())
	log.Printf("[DEBUG] List response sent: %d links", len(ids))
}

func (s *Server) handleCategory(conn net.Conn, cmd *parser.Command) {
	log.Printf("[DEBUG] Handling category command")

	if len(cmd.Args) == 0 || cmd.Args[0].Type != parser.TypeString {
		log.Printf("[ERROR] Category command missing tag parameter")
		s.writeError(conn, "category", "missing tag", "category command requires a string tag")
		return
	}

	tag := cmd.Args[0].Str
	links := s.base.Category(tag)

	attrs := fmt.Sprintf("category: %s\nlist-len: %d\n\n", tag, len(links))
	body := strings.Builder{}
	for _, l := range links {
		body.WriteString(fmt.Sprintf("%s %s\n", l.ID(), l.Name()))
	}

	s.writeResponse(conn, attrs+body.String())
	log.Printf("[DEBUG] Category response sent: %d links in %s", len(links), tag)
}

func (s *Server) handleRun(conn net.Conn, cmd *parser.Command) {
	log.Printf("[DEBUG] Handling run command")

	if len(cmd.Args) == 0 || cmd.Args[0].Type != parser.TypeString {
		log.Printf("[ERROR] Run command missing id parameter")
		s.writeError(conn, "run", "missing id", "run command requires a link id parameter")
		return
	}

	id := cmd.Args[0].Str
	l := s.base.Lookup(id)
	if l == nil {
		log.Printf("[ERROR] Link %s not found", id)
		s.writeError(conn, "run", "link not found", "Can't run link, requested id not found.")
		return
	}

	log.Printf("[DEBUG] Found link: %s, kind: %d", l.Name(), l.Kind())

	var execCmd *exec.Cmd
	switch l.Kind() {
	case link.KindApplication:
		cmdline := l.ExpandExec("")
		if l.Terminal() {
			cfg := config.Get()
			term := cfg.Terminal()
			execCmd = exec.Command(term, "-e", cmdline)
			log.Printf("[DEBUG] Executing in terminal: %s -e %s", term, cmdline)
		} else {
			parts := strings.Fields(cmdline)
			if len(parts) == 0 {
				log.Printf("[ERROR] Empty exec command")
				s.writeError(conn, "run", "invalid exec", "Empty exec command")
				return
			}
			execCmd = exec.Command(parts[0], parts[1:]...)
			log.Printf("[DEBUG] Executing: %v", parts)
		}
		if dir := l.Path(); dir != "" {
			execCmd.Dir = dir
		}
	case link.KindURL:
		execCmd = exec.Command("xdg-open", l.URL())
		log.Printf("[DEBUG] Opening URL: %s", l.URL())
	default:
		log.Printf("[ERROR] Link %s is not launchable", id)
		s.writeError(conn, "run", "not launchable", "Directory links cannot be run")
		return
	}

	err := execCmd.Start()
	if err != nil {
		log.Printf("[ERROR] Failed to start command: %v", err)
		s.writeError(conn, "run", "execution failed", err.Error())
		return
	}

	pid := execCmd.Process.Pid
	log.Printf("[DEBUG] Command started successfully with PID: %d", pid)

	var runs uint64
	if s.runs != nil {
		if err := s.runs.Increment(l.SourceFile()); err != nil {
			log.Printf("[ERROR] Failed to count run: %v", err)
		}
		runs = s.runs.Counts([]string{l.SourceFile()})[l.SourceFile()]
	}

	attrs := fmt.Sprintf("cmd: run\nid: %s\nstatus: 0\npid: %d\nruns: %d\n\n", id, pid, runs)
	s.writeResponse(conn, attrs)
	log.Printf("[DEBUG] Run response sent")
}

func (s *Server) handleLang(conn net.Conn, cmd *parser.Command) {
	log.Printf("[DEBUG] Handling lang command")

	// The locale is fixed per link base: all files were localized
	// against it when they were parsed. Changing it would require a
	// rebuild, so a lang request only reports the active locale.
	if len(cmd.Args) > 0 {
		log.Printf("[ERROR] Lang command cannot change the locale")
		s.writeError(conn, "lang", "locale is fixed", "The locale is set at startup; restart the daemon to change it")
		return
	}

	attrs := fmt.Sprintf("cmd: lang\nstatus: 0\nlang: %s\n\n", s.locale)
	s.writeResponse(conn, attrs)
}

func (s *Server) handleStats(conn net.Conn) {
	log.Printf("[DEBUG] Handling stats command")

	tags := s.base.Categories()

	attrs := fmt.Sprintf("links: %d\ncategories: %d\n\n", s.base.Len(), len(tags))
	body := strings.Builder{}
	for _, tag := range tags {
		body.WriteString(fmt.Sprintf("%s %d\n", tag, len(s.base.Category(tag))))
	}

	s.writeResponse(conn, attrs+body.String())
	log.Printf("[DEBUG] Stats response sent")
}

// writeResponse writes a response with TXT01 header
func (s *Server) writeResponse(conn net.Conn, response string) {
	log.Printf("[DEBUG] Writing response (length: %d bytes)", len(response))
	header := []byte("TXT01")
	n, err := conn.Write(header)
	if err != nil {
		log.Printf("[ERROR] Failed to write header: %v", err)
		return
	}
	if n != len(header) {
		log.Printf("[ERROR] Partial header write: %d/%d bytes", n, len(header))
		return
	}

	n, err = conn.Write([]byte(response))
	if err != nil {
		log.Printf("[ERROR] Failed to write response body: %v", err)
		return
	}
	log.Printf("[DEBUG] Response written successfully: %d bytes", n)
}

func (s *Server) writeError(conn net.Conn, cmd, errType, desc string) {
	log.Printf("[ERROR] Writing error response: cmd=%s, type=%s, desc=%s", cmd, errType, desc)
	errorMsg := fmt.Sprintf("error-cmd: %s\nerror: %s\ndesc: %s\n\n", cmd, errType, desc)
	s.writeResponse(conn, errorMsg)
}
