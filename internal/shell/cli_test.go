package shell

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockwise-ai/server/internal/agent/model"
	errx "github.com/stockwise-ai/server/internal/core/error"
)

type scriptedConverser struct {
	questions []string
	answers   []string
	result    *model.TurnResult
	err       error
}

func (s *scriptedConverser) Converse(
	ctx context.Context,
	_ string, _ string,
	ask func(ctx context.Context, question string) (string, error),
) (*model.TurnResult, error) {
	for _, q := range s.questions {
		a, err := ask(ctx, q)
		if err != nil {
			return nil, err
		}
		s.answers = append(s.answers, a)
	}
	return s.result, s.err
}

func runCLI(t *testing.T, c Converser, input string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, NewCLI(c, strings.NewReader(input), &out).Run(context.Background()))
	return out.String()
}

func TestCLIAsksClarificationsAndPrintsReply(t *testing.T) {
	c := &scriptedConverser{
		questions: []string{"Which tea do you mean?"},
		result: &model.TurnResult{
			Resolved: true,
			Reply:    "Recorded the sale of 2 Premium Tea.",
			Analysis: &model.AnalyzedQuery{
				OperationType: model.OperationSale,
				EnhancedQuery: "Record a sale of 2 Premium Tea (ChickenB)",
			},
		},
	}

	out := runCLI(t, c, "sold 2 tea (ChickenB)\nPremium Tea\nquit\n")

	assert.Equal(t, []string{"Premium Tea"}, c.answers)
	assert.True(t, strings.HasPrefix(out, welcomeBanner))
	assert.Contains(t, out, "Which tea do you mean?\n"+answerPrompt)
	assert.Contains(t, out, "Enhanced Query: Record a sale of 2 Premium Tea (ChickenB)")
	assert.Contains(t, out, "Operation Type: SALE")
	assert.Contains(t, out, "Recorded the sale of 2 Premium Tea.")
}

func TestCLIPrintsAnalysisReport(t *testing.T) {
	c := &scriptedConverser{result: &model.TurnResult{
		Resolved:    true,
		Reply:       "Tea sells best.",
		FinalReport: "Detailed: tea sells best on Mondays.",
		Analysis:    &model.AnalyzedQuery{OperationType: model.OperationAnalysis},
	}}

	out := runCLI(t, c, "analyze sales\nexit\n")

	assert.Contains(t, out, "Analysis Report:\n"+reportRule+"\nDetailed: tea sells best on Mondays.\n"+reportRule)
}

func TestCLIPrintsSafeErrorsAndContinues(t *testing.T) {
	c := &scriptedConverser{err: errx.WrapLLM(errors.New("quota"))}

	out := runCLI(t, c, "how much tea?\nq\n")

	assert.Contains(t, out, "Error: "+errx.ModelErrorMessage)
	assert.NotContains(t, out, "quota")
}

func TestCLIStopsAtEndOfInput(t *testing.T) {
	c := &scriptedConverser{questions: []string{"Which tea?"}}

	out := runCLI(t, c, "sold tea")

	assert.Contains(t, out, "Which tea?")
	assert.NotContains(t, out, "Error:")
}

func TestIsQuit(t *testing.T) {
	for _, s := range []string{"quit", "EXIT", "q"} {
		assert.True(t, isQuit(s), s)
	}
	assert.False(t, isQuit("quite"))
}
