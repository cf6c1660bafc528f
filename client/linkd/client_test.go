package linkd

import (
	"bufio"
	"net"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// scriptedServer reads one command from the connection and answers
// with a canned response.
func scriptedServer(conn net.Conn, response string) {
	go func() {
		reader := bufio.NewReader(conn)
		// Consume lines until the command word arrives
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if line == "list\n" || line == "category\n" || line == "run\n" ||
				line == "lang\n" || line == "stats\n" {
				break
			}
		}
		conn.Write([]byte("TXT01" + response))
	}()
}

func pipeClient(conn net.Conn) *Client {
	return &Client{conn: conn, reader: bufio.NewReader(conn)}
}

var _ = Describe("Client", func() {
	var (
		clientConn net.Conn
		serverConn net.Conn
		c          *Client
	)

	BeforeEach(func() {
		clientConn, serverConn = net.Pipe()
		c = pipeClient(clientConn)
	})

	AfterEach(func() {
		clientConn.Close()
		serverConn.Close()
	})

	Describe("List", func() {
		It("should parse the announced number of body lines", func() {
			scriptedServer(serverConn, "list-len: 2\n\neditor Text Editor\nbrowser Web Browser\n")

			links, err := c.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(links).To(Equal([]Link{
				{ID: "editor", Name: "Text Editor"},
				{ID: "browser", Name: "Web Browser"},
			}))
		})

		It("should handle an empty list", func() {
			scriptedServer(serverConn, "list-len: 0\n\n")

			links, err := c.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(links).To(BeEmpty())
		})
	})

	Describe("Category", func() {
		It("should parse category members", func() {
			scriptedServer(serverConn, "category: Network\nlist-len: 1\n\nbrowser Web Browser\n")

			links, err := c.Category("Network")
			Expect(err).NotTo(HaveOccurred())
			Expect(links).To(HaveLen(1))
			Expect(links[0].ID).To(Equal("browser"))
		})
	})

	Describe("Run", func() {
		It("should succeed on a status response", func() {
			scriptedServer(serverConn, "cmd: run\nid: editor\nstatus: 0\npid: 123\nruns: 4\n\n")

			Expect(c.Run("editor")).To(Succeed())
		})

		It("should surface server errors", func() {
			scriptedServer(serverConn, "error-cmd: run\nerror: link not found\ndesc: no such id\n\n")

			err := c.Run("bogus")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("link not found"))
		})
	})

	Describe("Lang", func() {
		It("should report the daemon locale", func() {
			scriptedServer(serverConn, "cmd: lang\nstatus: 0\nlang: en_US.UTF-8\n\n")

			lang, err := c.Lang()
			Expect(err).NotTo(HaveOccurred())
			Expect(lang).To(Equal("en_US.UTF-8"))
		})
	})

	Describe("Stats", func() {
		It("should parse counts and category lines", func() {
			scriptedServer(serverConn, "links: 3\ncategories: 2\n\nNetwork 1\nUtility 2\n")

			links, stats, err := c.Stats()
			Expect(err).NotTo(HaveOccurred())
			Expect(links).To(Equal(3))
			Expect(stats).To(ConsistOf(
				CategoryStat{Tag: "Network", Count: 1},
				CategoryStat{Tag: "Utility", Count: 2},
			))
		})
	})
})

var _ = Describe("FormatArgument", func() {
	It("should keep explicit string prefixes", func() {
		Expect(FormatArgument(`"hello`)).To(Equal(`"hello`))
	})

	It("should pass boolean literals through", func() {
		Expect(FormatArgument("t")).To(Equal("t"))
		Expect(FormatArgument("f")).To(Equal("f"))
	})

	It("should pass integers through", func() {
		Expect(FormatArgument("42")).To(Equal("42"))
	})

	It("should prefix bare words as strings", func() {
		Expect(FormatArgument("editor")).To(Equal(`"editor`))
	})
})
