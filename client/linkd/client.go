package linkd

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
)

// Link represents a link entry as reported by the daemon
type Link struct {
	ID   string
	Name string
}

// CategoryStat represents one category and its link count
type CategoryStat struct {
	Tag   string
	Count int
}

// Client handles connection to ade-linkd server
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
	socket string
}

const protoVer = "TXT01" // cmdlist protocol, text format, v01

// NewClient creates a new client and connects to the server
func NewClient() (*Client, error) {
	socketPath, err := getSocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get socket path: %w", err)
	}

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to socket %s: %w", socketPath, err)
	}

	// Send header
	if _, err := conn.Write([]byte(protoVer)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send header: %w", err)
	}

	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		socket: socketPath,
	}, nil
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// FormatArgument formats an argument according to its type
func FormatArgument(arg string) string {
	arg = strings.TrimSpace(arg)

	// If starts with ", it's a string (keep prefix)
	if strings.HasPrefix(arg, `"`) {
		return arg
	}

	// Check for boolean literals
	if arg == "t" || arg == "f" {
		return arg
	}

	// Check if it's numeric (all digits)
	if _, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return arg
	}

	// Default: treat as string (add prefix)
	return `"` + arg
}

// SendCommand sends a command to the server
func (c *Client) SendCommand(cmdName string, args []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCommand(cmdName, args)
}

func (c *Client) sendCommand(cmdName string, args []string) error {
	// Send arguments with type detection
	for _, arg := range args {
		formatted := FormatArgument(arg)
		if _, err := fmt.Fprintf(c.conn, "%s\n", formatted); err != nil {
			return fmt.Errorf("failed to send argument: %w", err)
		}
	}

	// Send command
	if _, err := fmt.Fprintf(c.conn, "%s\n", cmdName); err != nil {
		return fmt.Errorf("failed to send command: %w", err)
	}

	return nil
}

// Conn returns the underlying connection
func (c *Client) Conn() net.Conn {
	return c.conn
}

// List retrieves the full link list
func (c *Client) List() ([]Link, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendCommand("list", nil); err != nil {
		return nil, err
	}

	attrs, body, err := c.readResponse()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if errMsg, ok := attrs["error"]; ok {
		return nil, fmt.Errorf("server error: %s", errMsg)
	}

	return parseLinkLines(body), nil
}

// Category retrieves the links carrying a category tag
func (c *Client) Category(tag string) ([]Link, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendCommand("category", []string{tag}); err != nil {
		return nil, err
	}

	attrs, body, err := c.readResponse()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if errMsg, ok := attrs["error"]; ok {
		return nil, fmt.Errorf("server error: %s", errMsg)
	}

	return parseLinkLines(body), nil
}

// Run launches a link by id
func (c *Client) Run(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendCommand("run", []string{id}); err != nil {
		return err
	}

	attrs, _, err := c.readResponse()
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if errMsg, ok := attrs["error"]; ok {
		return fmt.Errorf("server error: %s", errMsg)
	}

	return nil
}

// Lang reports the locale the daemon was started with
func (c *Client) Lang() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendCommand("lang", nil); err != nil {
		return "", err
	}

	attrs, _, err := c.readResponse()
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if errMsg, ok := attrs["error"]; ok {
		return "", fmt.Errorf("server error: %s", errMsg)
	}

	return attrs["lang"], nil
}

// Stats retrieves the link count and per-category counts
func (c *Client) Stats() (int, []CategoryStat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sendCommand("stats", nil); err != nil {
		return 0, nil, err
	}

	attrs, body, err := c.readResponse()
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if errMsg, ok := attrs["error"]; ok {
		return 0, nil, fmt.Errorf("server error: %s", errMsg)
	}

	links, _ := strconv.Atoi(attrs["links"])

	var stats []CategoryStat
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		count, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			continue
		}
		stats = append(stats, CategoryStat{
			Tag:   strings.Join(parts[:len(parts)-1], " "),
			Count: count,
		})
	}

	return links, stats, nil
}

// readResponse reads one framed response. Attribute lines run until a
// blank line; the body length is announced up front, so exactly that
// many lines follow. The connection then stays ready for the next
// command.
func (c *Client) readResponse() (map[string]string, string, error) {
	// Read header
	header := make([]byte, 5)
	if _, err := io.ReadFull(c.reader, header); err != nil {
		return nil, "", fmt.Errorf("failed to read response header: %w", err)
	}

	// Read attrs until the blank separator line
	attrs := make(map[string]string)
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, "", fmt.Errorf("read error: %w", err)
		}
		if line == "\n" {
			break
		}
		parts := strings.SplitN(strings.TrimSpace(line), ":", 2)
		if len(parts) == 2 {
			attrs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	bodyLines := 0
	if v, ok := attrs["list-len"]; ok {
		bodyLines, _ = strconv.Atoi(v)
	} else if v, ok := attrs["categories"]; ok {
		bodyLines, _ = strconv.Atoi(v)
	}

	body := strings.Builder{}
	for i := 0; i < bodyLines; i++ {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			return nil, "", fmt.Errorf("read error: %w", err)
		}
		body.WriteString(line)
	}

	return attrs, body.String(), nil
}

func parseLinkLines(body string) []Link {
	var links []Link
	for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		links = append(links, Link{
			ID:   parts[0],
			Name: strings.Join(parts[1:], " "),
		})
	}
	return links
}
