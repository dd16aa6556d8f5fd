package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/nc6/cvmfs/pkg/core"
	"github.com/nc6/cvmfs/pkg/core/status"
)

// used to patch over terminal detection during test
var isTerminal = func() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// prompter asks the operator on the terminal
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) core.Confirmer {
	return &prompter{in: bufio.NewReader(in), out: out}
}

// Confirm the question with y or yes. Without a terminal, nobody can answer.
func (p *prompter) Confirm(question string) (bool, error) {
	if !isTerminal() {
		return false, status.ErrConfirmationRequired
	}
	_, _ = fmt.Fprintf(p.out, "%s? [y/N] ", question)
	answer, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
