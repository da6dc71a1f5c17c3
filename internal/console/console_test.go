package console

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestPrompter_Line(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("127.0.0.1\r\n8080\nlast"), &out)

	for _, want := range []string{"127.0.0.1", "8080", "last"} {
		got, err := p.Line("> ")
		if err != nil {
			t.Fatalf("Line failed: %v", err)
		}
		if got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
	if _, err := p.Line("> "); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF, got %v", err)
	}
	if out.String() != "> > > > " {
		t.Errorf("Unexpected prompts %q", out.String())
	}
}

func TestPrompter_Secret_NotTerminal(t *testing.T) {
	var out bytes.Buffer
	p := New(strings.NewReader("s3cret\n"), &out)

	got, err := p.Secret("Key: ")
	if err != nil {
		t.Fatalf("Secret failed: %v", err)
	}
	if got != "s3cret" {
		t.Errorf("Expected s3cret, got %q", got)
	}
	if out.String() != "Key: " {
		t.Errorf("Unexpected prompt %q", out.String())
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		address string
		port    string
		want    string
		wantErr bool
	}{
		{"ipv4", "127.0.0.1", "8080", "127.0.0.1:8080", false},
		{"ipv6", "::1", "9000", "[::1]:9000", false},
		{"port zero", "0.0.0.0", "0", "0.0.0.0:0", false},
		{"max port", "10.0.0.1", "65535", "10.0.0.1:65535", false},
		{"surrounding spaces", " 127.0.0.1 ", " 80 ", "127.0.0.1:80", false},
		{"hostname", "localhost", "8080", "", true},
		{"empty address", "", "8080", "", true},
		{"port too large", "127.0.0.1", "65536", "", true},
		{"negative port", "127.0.0.1", "-1", "", true},
		{"non numeric port", "127.0.0.1", "http", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEndpoint(tt.address, tt.port)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEndpoint) {
					t.Errorf("Expected ErrInvalidEndpoint, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
