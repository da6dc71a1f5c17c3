// Package console reads connection parameters from an interactive terminal.
package console

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// InvalidEndpointMessage is printed before re-prompting for address and port.
const InvalidEndpointMessage = "Invalid IP or port. Please try again."

// ErrInvalidEndpoint is returned by ParseEndpoint.
var ErrInvalidEndpoint = errors.New("invalid IP or port")

// Prompter asks questions on out and reads answers from in.
type Prompter struct {
	in     *bufio.Reader
	out    io.Writer
	fd     int
	isTerm bool
}

// New creates a Prompter. Secrets are read without echo when in is a terminal.
func New(in io.Reader, out io.Writer) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.isTerm = true
	}
	return p
}

// Line prints label and returns the next input line without its line ending.
// It returns io.EOF once input is exhausted.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Secret is Line with echo disabled on terminals.
func (p *Prompter) Secret(label string) (string, error) {
	if !p.isTerm {
		return p.Line(label)
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return string(b), nil
}

// ParseEndpoint validates an IP address and a port in 0..65535 and joins them.
func ParseEndpoint(address, port string) (string, error) {
	ip := net.ParseIP(strings.TrimSpace(address))
	if ip == nil {
		return "", fmt.Errorf("%w: address %q", ErrInvalidEndpoint, address)
	}
	n, err := strconv.Atoi(strings.TrimSpace(port))
	if err != nil || n < 0 || n > 65535 {
		return "", fmt.Errorf("%w: port %q", ErrInvalidEndpoint, port)
	}
	return net.JoinHostPort(ip.String(), strconv.Itoa(n)), nil
}
