package main

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/huh/spinner"
	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/pkg/errors"

	"github.com/alvarorichard/anistrm/internal/orchestrator"
	"github.com/alvarorichard/anistrm/internal/output"
	"github.com/alvarorichard/anistrm/internal/site"
	"github.com/alvarorichard/anistrm/internal/util"
)

// withSpinner runs fn behind a spinner and returns its error.
func withSpinner(title string, fn func() error) error {
	var err error
	ran := false
	spinErr := spinner.New().
		Title(title).
		Type(spinner.Dots).
		Action(func() { ran, err = true, fn() }).
		Run()
	if spinErr != nil && !ran {
		util.Debugf("Spinner unavailable (%v), running %q inline", spinErr, title)
		return fn()
	}
	return err
}

// Interactive pickers, replaced in tests.
var (
	fuzzyFind = func(labels []string) (int, error) {
		return fuzzyfinder.Find(
			labels,
			func(i int) string { return labels[i] },
			fuzzyfinder.WithPromptString("Select anime: "),
		)
	}
	selectMenu = util.SelectMenuItem
)

// pickResult resolves a 1-based pick or asks through the fuzzy finder. A
// terminal the finder cannot drive falls back to a plain select menu.
func pickResult(results []site.SearchResult, pick int) (site.SearchResult, error) {
	if pick > 0 {
		if pick > len(results) {
			return site.SearchResult{}, errors.Errorf("pick %d out of range (1-%d)", pick, len(results))
		}
		return results[pick-1], nil
	}

	labels := make([]string, len(results))
	for i, r := range results {
		labels[i] = fmt.Sprintf("%d. %s", r.Index, r.Title)
	}
	idx, err := fuzzyFind(labels)
	if errors.Is(err, fuzzyfinder.ErrAbort) {
		return site.SearchResult{}, errors.Wrap(err, "selection aborted")
	}
	if err != nil {
		util.Debugf("Fuzzy finder unavailable (%v), using select menu", err)
		idx, _, err = selectMenu("Select anime", labels)
		if err != nil {
			return site.SearchResult{}, errors.Wrap(err, "failed to select anime")
		}
	}
	if idx < 0 || idx >= len(results) {
		return site.SearchResult{}, errors.New("invalid index returned by picker")
	}
	return results[idx], nil
}

// runJob runs one series job and prints its per-episode outcome.
func (c *commandContext) runJob(ctx context.Context, out io.Writer, orch *orchestrator.Orchestrator, job orchestrator.SeriesJob) error {
	res, err := orch.RunSeries(ctx, job)
	if res != nil {
		printSeriesResult(out, res)
	}
	return err
}

func printSeriesResult(out io.Writer, res *orchestrator.SeriesResult) {
	rows := make([][]string, 0, len(res.Episodes))
	captured := 0
	for _, ep := range res.Episodes {
		if ep.Sub.Status == orchestrator.StatusCaptured {
			captured++
		}
		if ep.Dub.Status == orchestrator.StatusCaptured {
			captured++
		}
		rows = append(rows, []string{ep.Code.Display(), string(ep.Sub.Status), string(ep.Dub.Status)})
	}
	if len(rows) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out, util.Title(res.Name))
	_, _ = fmt.Fprintln(out, renderTable([]string{"Episode", "Sub", "Dub"}, rows))
	_, _ = fmt.Fprintln(out, util.Success(fmt.Sprintf("%d new manifests, %d pointer files", captured, countPointers(res))))
}

func countPointers(res *orchestrator.SeriesResult) int {
	n := 0
	for _, a := range res.Pointers {
		if a.Kind == output.KindPointer {
			n++
		}
	}
	return n
}

// publishGit commits and pushes the working tree when enabled.
func (c *commandContext) publishGit(ctx context.Context, message string) error {
	if !c.config.Publish.Git {
		return nil
	}
	committed, err := c.gitPublisher().Publish(ctx, message)
	if err != nil {
		return errors.Wrap(err, "git publish")
	}
	if committed {
		util.Infof("Published working tree: %s", message)
	}
	return nil
}
