// Package launch binds the console listener and prints the startup banner.
package launch

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
)

// Listen binds host:port, trying each following port up to maxPort when the
// address is already in use. Other errors are returned immediately.
func Listen(host string, port, maxPort int) (net.Listener, error) {
	if maxPort < port {
		maxPort = port
	}
	var lastErr error
	for p := port; p <= maxPort; p++ {
		ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err == nil {
			return ln, nil
		}
		if !isAddrInUse(err) {
			return nil, fmt.Errorf("listen on %s:%d: %w", host, p, err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no free port in %d-%d: %w", port, maxPort, lastErr)
}

func isAddrInUse(err error) bool {
	if errors.Is(err, syscall.EADDRINUSE) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "address already in use")
}

// Port returns the TCP port ln is bound to.
func Port(ln net.Listener) int {
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")).
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("28")).
			Padding(0, 2)

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Underline(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
)

// Banner describes what the launcher prints once the listener is bound.
type Banner struct {
	Host          string
	Port          int
	RequestedPort int
	Share         bool
}

// URL is the address a browser should open.
func (b Banner) URL() string {
	host := b.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(b.Port))
}

// Render writes the banner to w.
func (b Banner) Render(w io.Writer) {
	var lines []string
	if b.RequestedPort != 0 && b.RequestedPort != b.Port {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("⚠️  Port %d in use, using %d", b.RequestedPort, b.Port)))
	}
	lines = append(lines,
		bannerStyle.Render("🔥 HACXGPT NEURAL INTERFACE"),
		"🌐 "+urlStyle.Render(b.URL()),
	)
	if b.Share {
		lines = append(lines, warnStyle.Render("⚠️  Share mode: listening on all interfaces. Anyone who can reach this host can use the console."))
	}
	_, _ = fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, lines...))
}
