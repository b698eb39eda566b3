// Package orchestrator runs the per-episode capture machine: navigate under
// the proxy, capture the sub variant, toggle to dub, capture it, persist both.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/alvarorichard/anistrm/internal/capture"
	"github.com/alvarorichard/anistrm/internal/hls"
	"github.com/alvarorichard/anistrm/internal/naming"
	"github.com/alvarorichard/anistrm/internal/output"
	"github.com/alvarorichard/anistrm/internal/site"
	"github.com/alvarorichard/anistrm/internal/state"
	"github.com/alvarorichard/anistrm/internal/util"
)

// ErrSeriesAborted marks failures that stop the whole series.
var ErrSeriesAborted = errors.New("series aborted")

// SeriesError is a series-level abort. It matches ErrSeriesAborted and
// unwraps to the cause.
type SeriesError struct {
	Code naming.Code
	Err  error
}

func (e *SeriesError) Error() string {
	return fmt.Sprintf("%v at %s: %v", ErrSeriesAborted, e.Code, e.Err)
}

func (e *SeriesError) Unwrap() error { return e.Err }

// Is matches ErrSeriesAborted.
func (e *SeriesError) Is(target error) bool { return target == ErrSeriesAborted }

// Config holds the bounded waits of the machine.
type Config struct {
	ReadyTimeout   time.Duration
	CaptureTimeout time.Duration
}

// Deps are the collaborators of an Orchestrator. Recorder may be nil.
type Deps struct {
	Proxy     ProxyStarter
	Browser   BrowserOpener
	Manifests ManifestProcessor
	Subtitles SubtitleFetcher
	Layout    output.Layout
	Store     *state.Store
	Recorder  Recorder
}

// Orchestrator drives series and episodes through the capture machine.
type Orchestrator struct {
	Deps
	cfg Config
}

// New returns an orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 30 * time.Second
	}
	if cfg.CaptureTimeout <= 0 {
		cfg.CaptureTimeout = 20 * time.Second
	}
	if deps.Store == nil {
		deps.Store = state.NewStore(deps.Layout)
	}
	return &Orchestrator{Deps: deps, cfg: cfg}
}

// EpisodeTask is one iteration of the series loop.
type EpisodeTask struct {
	SeriesName   string // sanitized
	Season       naming.SeasonInfo
	EpisodeIndex int
	SourceURL    string
}

// VariantResult is the outcome of one audio variant.
type VariantResult struct {
	Branch      output.Branch
	Status      Status
	ManifestURL string
	SubtitleURL string
	Artifacts   []output.Artifact
	Err         error
}

// EpisodeResult is the outcome of one episode.
type EpisodeResult struct {
	Task  EpisodeTask
	Code  naming.Code
	Trace []State
	Sub   VariantResult
	Dub   VariantResult
}

// SeriesJob describes one series or season run.
type SeriesJob struct {
	Title      string
	Name       string // sanitized; derived from Title when empty
	Season     naming.SeasonInfo
	LocatorURL string
	Episodes   []site.EpisodeRef
}

// SeriesResult collects the episodes processed before the run ended.
type SeriesResult struct {
	Name     string
	Episodes []EpisodeResult
	Pointers []output.Artifact
}

// RunSeries processes episodes strictly one after another. Proxy failures
// abort the remaining episodes; everything else stays local to a variant.
func (o *Orchestrator) RunSeries(ctx context.Context, job SeriesJob) (*SeriesResult, error) {
	name := job.Name
	if name == "" {
		name = naming.Sanitize(job.Title)
	}
	if name == "" {
		return nil, errors.Errorf("series title %q sanitizes to nothing", job.Title)
	}

	res := &SeriesResult{Name: name}
	util.Info("Processing series", "series", name, "season", job.Season, "episodes", len(job.Episodes))

	var runErr error
	for _, ep := range job.Episodes {
		if err := ctx.Err(); err != nil {
			runErr = &SeriesError{Code: naming.NewCode(job.Season, ep.Number), Err: err}
			break
		}
		task := EpisodeTask{
			SeriesName:   name,
			Season:       job.Season,
			EpisodeIndex: ep.Number,
			SourceURL:    ep.URL,
		}
		epRes, err := o.RunEpisode(ctx, task)
		res.Episodes = append(res.Episodes, epRes)
		if err != nil {
			runErr = err
			break
		}
	}

	if err := o.saveLocator(name, job); err != nil {
		util.Warn("Could not save locator", "series", name, "error", err)
	}

	pointers, err := o.Layout.PublishSeries(name, job.Season)
	if err != nil {
		util.Warn("Could not rebuild pointer files", "series", name, "error", err)
	}
	res.Pointers = pointers

	return res, runErr
}

// saveLocator persists the series URL once the series has content and the
// stored value is missing or different.
func (o *Orchestrator) saveLocator(name string, job SeriesJob) error {
	if job.LocatorURL == "" {
		return nil
	}
	hasContent := false
	for _, branch := range output.Branches() {
		eps, err := o.Store.ExistingEpisodes(branch, name, job.Season)
		if err != nil {
			return err
		}
		if len(eps) > 0 {
			hasContent = true
			break
		}
	}
	if !hasContent {
		return nil
	}

	current, ok, err := o.Store.Locator(name, job.Season)
	if err != nil {
		return err
	}
	if ok && current.RemoteURL == job.LocatorURL {
		return nil
	}
	return o.Store.SaveLocator(state.Locator{
		Title:         job.Title,
		SanitizedName: name,
		RemoteURL:     job.LocatorURL,
	}, job.Season)
}

// RunEpisode takes one episode through the capture machine. The returned
// error is non-nil only for series-level aborts.
func (o *Orchestrator) RunEpisode(ctx context.Context, task EpisodeTask) (res EpisodeResult, err error) {
	code := naming.NewCode(task.Season, task.EpisodeIndex)
	res = EpisodeResult{
		Task: task,
		Code: code,
		Sub:  VariantResult{Branch: output.BranchSub, Status: StatusNotAttempted},
		Dub:  VariantResult{Branch: output.BranchDub, Status: StatusNotAttempted},
	}
	subExists := o.Layout.HasManifest(output.BranchSub, task.SeriesName, task.Season, code)
	dubExists := o.Layout.HasManifest(output.BranchDub, task.SeriesName, task.Season, code)
	if subExists {
		res.Sub.Status = StatusExisting
	}
	if dubExists {
		res.Dub.Status = StatusExisting
	}
	if subExists && dubExists {
		util.Debug("Episode already captured", "series", task.SeriesName, "code", code)
		res.Trace = []State{StateDone}
		return res, nil
	}

	util.Info("Capturing episode", "series", task.SeriesName, "code", code)

	sess, startErr := o.Proxy.Start(ctx)
	if startErr != nil {
		return res, &SeriesError{Code: code, Err: startErr}
	}
	defer func() {
		if stopErr := sess.Stop(); stopErr != nil && err == nil {
			err = &SeriesError{Code: code, Err: stopErr}
		}
	}()

	page, openErr := o.Browser.Open(ctx, sess.Addr())
	if openErr != nil {
		return res, &SeriesError{Code: code, Err: errors.Wrap(openErr, "open browser")}
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			util.Debug("Closing browser session", "error", closeErr)
		}
	}()

	m := &machine{
		o:         o,
		task:      task,
		code:      code,
		corr:      sess.Correlator(),
		page:      page,
		res:       &res,
		subExists: subExists,
		dubExists: dubExists,
	}
	if err := m.run(ctx); err != nil {
		return res, &SeriesError{Code: code, Err: err}
	}
	return res, nil
}

// machine is the state of one RunEpisode call.
type machine struct {
	o         *Orchestrator
	task      EpisodeTask
	code      naming.Code
	corr      *capture.Correlator
	page      BrowserSession
	res       *EpisodeResult
	subExists bool
	dubExists bool

	subCapture capture.Result
	dubCapture capture.Result
}

func (m *machine) run(ctx context.Context) error {
	st := StateNavigateSub
	for {
		m.res.Trace = append(m.res.Trace, st)
		if st == StateDone {
			return nil
		}
		next, err := m.step(ctx, st)
		if err != nil {
			return err
		}
		st = next
	}
}

// step executes st and returns the next state. Errors are fatal for the
// series; variant failures are recorded in the result instead.
func (m *machine) step(ctx context.Context, st State) (State, error) {
	switch st {
	case StateNavigateSub:
		m.discardStale()
		if err := m.page.Navigate(ctx, m.task.SourceURL); err != nil {
			if ctx.Err() != nil {
				return StateDone, ctx.Err()
			}
			util.Warn("Navigation did not complete, capturing anyway", "code", m.code, "error", err)
		}
		if err := m.page.WaitReady(ctx, m.o.cfg.ReadyTimeout); err != nil {
			if ctx.Err() != nil {
				return StateDone, ctx.Err()
			}
			util.Warn("Player not ready, capturing anyway", "code", m.code, "error", err)
		}
		if m.subExists {
			return StateToggleDub, nil
		}
		return StateCaptureSub, nil

	case StateCaptureSub:
		res, err := m.corr.Await(ctx, capture.WantManifest|capture.WantSubtitle, m.o.cfg.CaptureTimeout)
		if err != nil {
			return StateDone, err
		}
		m.subCapture = res
		return StatePersistSub, nil

	case StatePersistSub:
		m.res.Sub = m.persist(ctx, output.BranchSub, m.subCapture)
		m.persistSubtitle(ctx)
		m.o.record(ctx, m.task, m.code, m.res.Sub)
		return StateToggleDub, nil

	case StateToggleDub:
		if m.dubExists {
			return StateDone, nil
		}
		m.discardStale()
		if err := m.page.ToggleDub(ctx); err != nil {
			if ctx.Err() != nil {
				return StateDone, ctx.Err()
			}
			util.Warn("No dub for episode", "series", m.task.SeriesName, "code", m.code, "reason", err)
			m.res.Dub.Status = StatusDubUnavailable
			m.res.Dub.Err = err
			m.o.record(ctx, m.task, m.code, m.res.Dub)
			return StateDone, nil
		}
		return StateCaptureDub, nil

	case StateCaptureDub:
		res, err := m.corr.Await(ctx, capture.WantManifest, m.o.cfg.CaptureTimeout)
		if err != nil {
			return StateDone, err
		}
		m.dubCapture = res
		return StatePersistDub, nil

	case StatePersistDub:
		m.res.Dub = m.persist(ctx, output.BranchDub, m.dubCapture)
		if m.res.Dub.Status == StatusCaptured {
			m.copyDubSubtitle()
		}
		m.o.record(ctx, m.task, m.code, m.res.Dub)
		return StateDone, nil
	}
	return StateDone, errors.Errorf("unknown state %d", st)
}

// discardStale drops records that arrived before the current step so they
// cannot be attributed to the wrong variant.
func (m *machine) discardStale() {
	stale, err := m.corr.Drain()
	if err != nil {
		util.Warn("Could not drain capture log", "error", err)
		return
	}
	if !stale.Empty() {
		util.Debug("Discarded stale capture records", "code", m.code, "manifest", stale.Manifest, "subtitle", stale.Subtitle)
	}
}

func (m *machine) persist(ctx context.Context, branch output.Branch, got capture.Result) VariantResult {
	vr := VariantResult{Branch: branch, ManifestURL: got.Manifest, SubtitleURL: got.Subtitle}
	if got.Manifest == "" {
		util.Warn("No manifest captured", "series", m.task.SeriesName, "code", m.code, "branch", branch)
		vr.Status = StatusNoManifest
		return vr
	}

	data, err := m.o.Manifests.Process(ctx, got.Manifest)
	if err != nil {
		vr.Err = err
		vr.Status = StatusFetchFailed
		if errors.Is(err, hls.ErrNoSegments) {
			vr.Status = StatusNoSegments
		}
		util.Warn("Skipping manifest", "series", m.task.SeriesName, "code", m.code, "branch", branch, "error", err)
		return vr
	}

	art, err := m.o.Layout.WriteManifest(branch, m.task.SeriesName, m.task.Season, m.code, data)
	if err != nil {
		vr.Err = err
		vr.Status = StatusWriteFailed
		util.Error("Could not write manifest", "series", m.task.SeriesName, "code", m.code, "branch", branch, "error", err)
		return vr
	}
	vr.Status = StatusCaptured
	vr.Artifacts = append(vr.Artifacts, art)
	util.Infof("%s %s saved to %s", branch, m.code, art.Path)
	return vr
}

func (m *machine) persistSubtitle(ctx context.Context) {
	url := m.subCapture.Subtitle
	if url == "" {
		return
	}
	data, err := m.o.Subtitles.Fetch(ctx, url)
	if err != nil {
		util.Warn("Skipping subtitle", "code", m.code, "url", url, "error", err)
		return
	}
	art, err := m.o.Layout.WriteSubtitle(output.BranchSub, m.task.SeriesName, m.task.Season, m.code, data)
	if err != nil {
		util.Warn("Could not write subtitle", "code", m.code, "error", err)
		return
	}
	m.res.Sub.Artifacts = append(m.res.Sub.Artifacts, art)
}

// copyDubSubtitle reuses the sub subtitle; the site serves one subtitle
// stream for both audio tracks.
func (m *machine) copyDubSubtitle() {
	art, err := m.o.Layout.CopySubtitle(output.BranchSub, output.BranchDub, m.task.SeriesName, m.task.Season, m.code)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		util.Warn("Could not copy subtitle to dub", "code", m.code, "error", err)
		return
	}
	m.res.Dub.Artifacts = append(m.res.Dub.Artifacts, art)
}

func (o *Orchestrator) record(ctx context.Context, task EpisodeTask, code naming.Code, vr VariantResult) {
	if o.Recorder == nil {
		return
	}
	out := Outcome{
		Series:      task.SeriesName,
		Season:      task.Season.Dir(),
		Code:        string(code),
		Branch:      string(vr.Branch),
		Status:      vr.Status,
		ManifestURL: vr.ManifestURL,
	}
	if vr.Err != nil {
		out.Error = vr.Err.Error()
	}
	if err := o.Recorder.Record(ctx, out); err != nil {
		util.Debug("Could not record outcome", "error", err)
	}
}
