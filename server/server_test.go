package server

import (
	"bytes"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/0xADE/ade-linkd/internal/link"
	"github.com/0xADE/ade-linkd/internal/linkbase"
	"github.com/0xADE/ade-linkd/internal/runcount"
	"github.com/0xADE/ade-linkd/parser"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type staticPaths struct {
	dirs []string
}

func (s *staticPaths) DataDirs() []string {
	return s.dirs
}

func writeLink(dir, name, content string) {
	appsDir := filepath.Join(dir, "applications")
	Expect(os.MkdirAll(appsDir, 0755)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(appsDir, name), []byte(content), 0644)).To(Succeed())
}

func appFile(name, exec, categories string) string {
	return fmt.Sprintf("[Desktop Entry]\nType=Application\nName=%s\nExec=%s\nCategories=%s\n", name, exec, categories)
}

var _ = Describe("Server commands", func() {
	var (
		dir      string
		cacheDir string
		lb       *linkbase.LinkBase
		runs     *runcount.RunCount
		srv      *Server
	)

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "ade-linkd-server-*")
		Expect(err).NotTo(HaveOccurred())
		cacheDir, err = os.MkdirTemp("", "ade-linkd-server-cache-*")
		Expect(err).NotTo(HaveOccurred())

		writeLink(dir, "editor.desktop", appFile("Editor", "/bin/true", "Utility;TextEditor;"))
		writeLink(dir, "browser.desktop", appFile("Browser", "/bin/true", "Network;"))

		lb, err = linkbase.New(&staticPaths{dirs: []string{dir}}, "en_US", link.EnvOpenbox)
		Expect(err).NotTo(HaveOccurred())

		runs, err = runcount.NewRunCountWithCacheDir(cacheDir)
		Expect(err).NotTo(HaveOccurred())

		srv = &Server{base: lb, runs: runs, locale: "en_US"}
	})

	AfterEach(func() {
		runs.Close()
		for lb.RefCount() > 0 {
			lb.Unref()
		}
		os.RemoveAll(dir)
		os.RemoveAll(cacheDir)
	})

	Describe("handleList", func() {
		var response string

		BeforeEach(func() {
			var buf bytes.Buffer
			srv.handleList(&mockConn{writeBuf: &buf})
			response = buf.String()
		})

		It("should report the number of links", func() {
			Expect(response).To(ContainSubstring("list-len: 2"))
		})

		It("should list every link id with its name", func() {
			Expect(response).To(ContainSubstring("editor Editor"))
			Expect(response).To(ContainSubstring("browser Browser"))
		})
	})

	Describe("handleCategory", func() {
		It("should list only links carrying the tag", func() {
			var buf bytes.Buffer
			cmd := &parser.Command{
				Name: "category",
				Args: []parser.Value{{Type: parser.TypeString, Str: "Network"}},
			}
			srv.handleCategory(&mockConn{writeBuf: &buf}, cmd)

			Expect(buf.String()).To(ContainSubstring("category: Network"))
			Expect(buf.String()).To(ContainSubstring("list-len: 1"))
			Expect(buf.String()).To(ContainSubstring("browser Browser"))
			Expect(buf.String()).NotTo(ContainSubstring("editor"))
		})

		It("should report an empty list for an unknown tag", func() {
			var buf bytes.Buffer
			cmd := &parser.Command{
				Name: "category",
				Args: []parser.Value{{Type: parser.TypeString, Str: "Games"}},
			}
			srv.handleCategory(&mockConn{writeBuf: &buf}, cmd)

			Expect(buf.String()).To(ContainSubstring("list-len: 0"))
		})

		It("should reject a missing tag argument", func() {
			var buf bytes.Buffer
			srv.handleCategory(&mockConn{writeBuf: &buf}, &parser.Command{Name: "category"})

			Expect(buf.String()).To(ContainSubstring("error-cmd: category"))
			Expect(buf.String()).To(ContainSubstring("missing tag"))
		})
	})

	Describe("handleRun", func() {
		It("should start the link's executable and count the run", func() {
			var buf bytes.Buffer
			cmd := &parser.Command{
				Name: "run",
				Args: []parser.Value{{Type: parser.TypeString, Str: "editor"}},
			}
			srv.handleRun(&mockConn{writeBuf: &buf}, cmd)

			Expect(buf.String()).To(ContainSubstring("cmd: run"))
			Expect(buf.String()).To(ContainSubstring("status: 0"))
			Expect(buf.String()).To(ContainSubstring("pid:"))
			Expect(buf.String()).To(ContainSubstring("runs: 1"))
		})

		It("should report an error for an unknown id", func() {
			var buf bytes.Buffer
			cmd := &parser.Command{
				Name: "run",
				Args: []parser.Value{{Type: parser.TypeString, Str: "nonexistent"}},
			}
			srv.handleRun(&mockConn{writeBuf: &buf}, cmd)

			Expect(buf.String()).To(ContainSubstring("error-cmd: run"))
			Expect(buf.String()).To(ContainSubstring("link not found"))
		})

		It("should reject a missing id argument", func() {
			var buf bytes.Buffer
			srv.handleRun(&mockConn{writeBuf: &buf}, &parser.Command{Name: "run"})

			Expect(buf.String()).To(ContainSubstring("error-cmd: run"))
			Expect(buf.String()).To(ContainSubstring("missing id"))
		})
	})

	Describe("handleLang", func() {
		It("should report the active locale", func() {
			var buf bytes.Buffer
			srv.handleLang(&mockConn{writeBuf: &buf}, &parser.Command{Name: "lang"})

			Expect(buf.String()).To(ContainSubstring("cmd: lang"))
			Expect(buf.String()).To(ContainSubstring("lang: en_US"))
		})

		It("should refuse a locale change request", func() {
			var buf bytes.Buffer
			cmd := &parser.Command{
				Name: "lang",
				Args: []parser.Value{{Type: parser.TypeString, Str: "de_DE"}},
			}
			srv.handleLang(&mockConn{writeBuf: &buf}, cmd)

			Expect(buf.String()).To(ContainSubstring("error-cmd: lang"))
			Expect(buf.String()).To(ContainSubstring("locale is fixed"))
		})
	})

	Describe("handleStats", func() {
		It("should report link and category counts", func() {
			var buf bytes.Buffer
			srv.handleStats(&mockConn{writeBuf: &buf})

			Expect(buf.String()).To(ContainSubstring("links: 2"))
			Expect(buf.String()).To(ContainSubstring("categories: 3"))
			Expect(buf.String()).To(ContainSubstring("Utility 1"))
			Expect(buf.String()).To(ContainSubstring("Network 1"))
		})
	})

	Describe("executeCommand", func() {
		It("should report unknown commands", func() {
			var buf bytes.Buffer
			srv.executeCommand(&mockConn{writeBuf: &buf}, &parser.Command{Name: "bogus"})

			Expect(buf.String()).To(ContainSubstring("error-cmd: bogus"))
			Expect(buf.String()).To(ContainSubstring("unknown command"))
		})
	})

	Context("when handling a list command over a pipe", func() {
		var (
			clientConn net.Conn
			serverConn net.Conn
			response   string
		)

		BeforeEach(func() {
			clientConn, serverConn = net.Pipe()

			go func() {
				defer serverConn.Close()
				p, err := parser.NewParser(serverConn)
				if err != nil {
					return
				}

				cmd, err := p.ParseCommand()
				if err != nil {
					return
				}
				srv.executeCommand(serverConn, cmd)
			}()

			request := []byte("TXT01list\n")
			_, err := clientConn.Write(request)
			Expect(err).NotTo(HaveOccurred())

			response, err = readFullResponse(clientConn)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			clientConn.Close()
			serverConn.Close()
		})

		It("should answer with the TXT01 framed list", func() {
			Expect(response).To(ContainSubstring("list-len: 2"))
			Expect(response).To(ContainSubstring("editor Editor"))
		})
	})
})

// Helper functions

// readFullResponse reads the complete response from a connection
func readFullResponse(conn net.Conn) (string, error) {
	// Skip TXT01 header
	header := make([]byte, 5)
	n, err := conn.Read(header)
	if err != nil || n != 5 {
		return "", err
	}

	// Read response body
	response := make([]byte, 4096)
	n, err = conn.Read(response)
	if err != nil {
		return "", err
	}

	return string(response[:n]), nil
}

// mockConn implements net.Conn for testing
type mockConn struct {
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
}

func (m *mockConn) Read(b []byte) (n int, err error) {
	if m.readBuf == nil {
		return 0, nil
	}
	return m.readBuf.Read(b)
}

func (m *mockConn) Write(b []byte) (n int, err error) {
	if m.writeBuf == nil {
		return len(b), nil
	}
	return m.writeBuf.Write(b)
}

func (m *mockConn) Close() error {
	return nil
}

func (m *mockConn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *mockConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0}
}

func (m *mockConn) SetDeadline(t time.Time) error {
	return nil
}

func (m *mockConn) SetReadDeadline(t time.Time) error {
	return nil
}

func (m *mockConn) SetWriteDeadline(t time.Time) error {
	return nil
}
