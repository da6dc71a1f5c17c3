package main

import (
	"fmt"
	"io"

	"github.com/omochice/keychat/internal/console"
)

type inputLine struct {
	text string
	err  error
}

// input serializes stdin between prompts and the chat loop. At most one line
// read is in flight; a read left pending when a session ends answers the next
// prompt.
type input struct {
	prompt  *console.Prompter
	out     io.Writer
	pending chan inputLine
}

func newInput(prompt *console.Prompter, out io.Writer) *input {
	return &input{prompt: prompt, out: out}
}

// next returns the channel of the in-flight read, starting one if needed.
func (in *input) next() <-chan inputLine {
	if in.pending == nil {
		ch := make(chan inputLine, 1)
		go func() {
			text, err := in.prompt.Line("")
			ch <- inputLine{text: text, err: err}
		}()
		in.pending = ch
	}
	return in.pending
}

// consumed marks the in-flight read as used.
func (in *input) consumed() {
	in.pending = nil
}

func (in *input) line(label string) (string, error) {
	if in.pending == nil {
		return in.prompt.Line(label)
	}
	return in.take(label)
}

// secret cannot hide a line that is already being read with echo.
func (in *input) secret(label string) (string, error) {
	if in.pending == nil {
		return in.prompt.Secret(label)
	}
	return in.take(label)
}

func (in *input) take(label string) (string, error) {
	fmt.Fprint(in.out, label)
	r := <-in.pending
	in.consumed()
	return r.text, r.err
}
