// Package ui provides the interactive surfaces of the scribe daemon. The
// approval view lets the user review gated tool results before the model
// sees them.
package ui

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/gen2brain/beeep"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"
)

// ApprovalView is an interactive gate for gated tool results. It shows the
// candidate list in a terminal UI; the user toggles entries with space and
// confirms with enter. Escape withholds everything.
type ApprovalView struct {
	logger zerolog.Logger
}

// NewApprovalView creates an interactive approval gate.
func NewApprovalView(logger zerolog.Logger) *ApprovalView {
	return &ApprovalView{
		logger: logger.With().Str("component", "approval_view").Logger(),
	}
}

// Review displays the candidates and returns the approved subset. Returning
// an empty slice is a valid outcome: the user reviewed and approved nothing.
func (v *ApprovalView) Review(ctx context.Context, query string, candidates []any) ([]any, error) {
	if len(candidates) == 0 {
		return []any{}, nil
	}

	if err := beeep.Notify("Scribe", fmt.Sprintf("Approval needed for %d results", len(candidates)), ""); err != nil {
		v.logger.Warn().Err(err).Msg("Failed to send approval notification")
	}

	selected := make([]bool, len(candidates))
	for i := range selected {
		selected[i] = true
	}

	app := tview.NewApplication()
	list := tview.NewList().ShowSecondaryText(false)
	list.SetBorder(true)
	list.SetTitle(fmt.Sprintf(" Approve results for %q (space: toggle, enter: confirm, esc: withhold all) ", query))

	redraw := func() {
		current := list.GetCurrentItem()
		list.Clear()
		for i, c := range candidates {
			mark := "[ ]"
			if selected[i] {
				mark = "[x]"
			}
			list.AddItem(fmt.Sprintf("%s %s", mark, candidateLabel(c)), "", 0, nil)
		}
		if current >= 0 && current < len(candidates) {
			list.SetCurrentItem(current)
		}
	}
	redraw()

	confirmed := false
	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEscape:
			app.Stop()
			return nil
		case event.Key() == tcell.KeyEnter:
			confirmed = true
			app.Stop()
			return nil
		case event.Rune() == ' ':
			i := list.GetCurrentItem()
			if i >= 0 && i < len(selected) {
				selected[i] = !selected[i]
			}
			redraw()
			return nil
		}
		return event
	})

	// Cancellation tears the view down with nothing approved.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			app.Stop()
		case <-done:
		}
	}()

	if err := app.SetRoot(list, true).Run(); err != nil {
		return nil, fmt.Errorf("approval view failed: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if !confirmed {
		v.logger.Info().Str("query", query).Int("candidates", len(candidates)).Msg("User withheld all candidates")
		return []any{}, nil
	}

	approved := make([]any, 0, len(candidates))
	for i, c := range candidates {
		if selected[i] {
			approved = append(approved, c)
		}
	}
	v.logger.Info().Str("query", query).Int("approved", len(approved)).Int("candidates", len(candidates)).Msg("User approved candidates")
	return approved, nil
}

// AutoApproveGate approves every candidate without user interaction. Used
// when the daemon runs headless.
type AutoApproveGate struct{}

// Review returns all candidates unchanged.
func (AutoApproveGate) Review(ctx context.Context, query string, candidates []any) ([]any, error) {
	return candidates, nil
}

// candidateLabel renders one candidate as a single list line. Map
// candidates with a "path" field show the path and snippet; everything else
// falls back to compact JSON.
func candidateLabel(c any) string {
	if m, ok := c.(map[string]any); ok {
		if path, ok := m["path"].(string); ok {
			if snippet, ok := m["snippet"].(string); ok && snippet != "" {
				return fmt.Sprintf("%s: %s", path, snippet)
			}
			return path
		}
	}
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%v", c)
	}
	const maxLabel = 120
	s := string(b)
	if len(s) > maxLabel {
		s = s[:maxLabel] + "..."
	}
	return s
}
