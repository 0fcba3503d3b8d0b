// Package shell is the interactive console front end.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/stockwise-ai/server/internal/agent/model"
	errx "github.com/stockwise-ai/server/internal/core/error"
)

const (
	welcomeBanner = "Welcome to Stock-Wise AI! Type 'quit' to exit."
	queryPrompt   = "\nEnter your query: "
	answerPrompt  = "Your response: "
	reportRule    = "=================================================="
)

// Converser drives one request through its clarification loop.
type Converser interface {
	Converse(
		ctx context.Context,
		sessionID, text string,
		ask func(ctx context.Context, question string) (string, error),
	) (*model.TurnResult, error)
}

type CLI struct {
	sessions  Converser
	in        *bufio.Scanner
	out       io.Writer
	sessionID string
}

// NewCLI returns a console bound to a fresh session.
func NewCLI(sessions Converser, in io.Reader, out io.Writer) *CLI {
	return &CLI{
		sessions:  sessions,
		in:        bufio.NewScanner(in),
		out:       out,
		sessionID: uuid.NewString(),
	}
}

// SessionID returns the conversation the console writes to.
func (c *CLI) SessionID() string {
	return c.sessionID
}

// Run reads queries until quit/exit/q, end of input or ctx is done.
func (c *CLI) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, welcomeBanner)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, ok := c.readLine(queryPrompt)
		if !ok {
			return c.in.Err()
		}
		if isQuit(line) {
			return nil
		}
		if line == "" {
			continue
		}

		res, err := c.sessions.Converse(ctx, c.sessionID, line, c.ask)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			fmt.Fprintf(c.out, "\nError: %s\n", errx.MessageOf(err))
			continue
		}
		c.print(res)
	}
}

func (c *CLI) ask(_ context.Context, question string) (string, error) {
	fmt.Fprintf(c.out, "\n%s\n", question)
	line, ok := c.readLine(answerPrompt)
	if !ok {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return line, nil
}

func (c *CLI) readLine(prompt string) (string, bool) {
	fmt.Fprint(c.out, prompt)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func (c *CLI) print(res *model.TurnResult) {
	if res.GaveUp || res.Analysis == nil {
		fmt.Fprintf(c.out, "\n%s\n", res.Reply)
		return
	}

	fmt.Fprintln(c.out, "\nQuery Complete!")
	fmt.Fprintf(c.out, "Enhanced Query: %s\n", res.Analysis.EnhancedQuery)
	fmt.Fprintf(c.out, "Operation Type: %s\n", res.Analysis.OperationType)

	if res.Analysis.OperationType == model.OperationAnalysis && !res.Refused {
		if res.FinalReport == "" {
			fmt.Fprintln(c.out, "Analysis report not available.")
			return
		}
		fmt.Fprintln(c.out, "\nAnalysis Report:")
		fmt.Fprintln(c.out, reportRule)
		fmt.Fprintln(c.out, res.FinalReport)
		fmt.Fprintln(c.out, reportRule)
		return
	}
	fmt.Fprintf(c.out, "\n%s\n", res.Reply)
}

func isQuit(s string) bool {
	switch strings.ToLower(s) {
	case "quit", "exit", "q":
		return true
	}
	return false
}
