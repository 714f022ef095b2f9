package syncer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bartekus/leafsync/internal/fetcher"
	"github.com/bartekus/leafsync/internal/message"
	"github.com/bartekus/leafsync/internal/syncerr"
)

// ProjectURLPrefix is the only accepted kind of project reference.
const ProjectURLPrefix = "https://www.overleaf.com/read/"

// ErrInvalidProjectURL is wrapped by the precondition error for a rejected URL.
var ErrInvalidProjectURL = errors.New("invalid overleaf URL: need read link")

// Step IDs in execution order.
const (
	StepValidateURL  = "validate:url"
	StepValidateRepo = "validate:repo"
	StepFetch        = "fetch"
	StepExtract      = "extract"
	StepDiff         = "diff"
	StepMessage      = "message"
	StepAdd          = "add"
	StepCommit       = "commit"
	StepPush         = "push"
)

// Tree is the working tree a run writes into.
type Tree interface {
	Extract(ctx context.Context, archivePath string) (int, error)
	Diff(ctx context.Context) (string, error)
	AddAll(ctx context.Context) error
	Commit(ctx context.Context, message string) error
	Push(ctx context.Context) error
}

// HeadReader is implemented by trees that can report the commit HEAD
// points at. The commit step logs it when available.
type HeadReader interface {
	Head() (hash, branch string, err error)
}

// Deps contains the collaborators injected into a Syncer.
type Deps struct {
	Fetcher   fetcher.Fetcher
	OpenTree  func(path string) (Tree, error)
	Generator message.Generator
}

// Options identifies what to sync where.
type Options struct {
	ProjectURL string
	TreePath   string
}

// Syncer runs the fetch, extract, commit and push sequence once.
type Syncer struct {
	opts Options
	deps Deps
	log  zerolog.Logger
}

// New creates a Syncer.
func New(opts Options, deps Deps, log zerolog.Logger) *Syncer {
	return &Syncer{opts: opts, deps: deps, log: log}
}

// run carries the state threaded through the steps of one Run.
type run struct {
	tree    Tree
	archive string
	diff    string
	message string
}

// stop ends a run early without an error.
type stop struct {
	outcome Outcome
	note    string
}

func (s *stop) Error() string { return string(s.outcome) }

type step struct {
	id string
	fn func(ctx context.Context, r *run) error
}

func (s *Syncer) steps() []step {
	return []step{
		{StepValidateURL, s.validateURL},
		{StepValidateRepo, s.validateRepo},
		{StepFetch, s.fetch},
		{StepExtract, s.extract},
		{StepDiff, s.diff},
		{StepMessage, s.generateMessage},
		{StepAdd, s.add},
		{StepCommit, s.commit},
		{StepPush, s.push},
	}
}

// Run executes every step in order and stops at the first failure or
// benign no-op. A nil error means the process should exit 0; the report
// tells which outcome was reached.
func (s *Syncer) Run(ctx context.Context) (*Report, error) {
	s.log.Info().Str("url", s.opts.ProjectURL).Str("git_path", s.opts.TreePath).Msg("started")

	steps := s.steps()
	report := &Report{Steps: make([]StepResult, 0, len(steps))}
	state := &run{}

	for i, st := range steps {
		start := time.Now()
		s.log.Debug().Str("step", st.id).Msg("step started")

		err := st.fn(ctx, state)
		res := StepResult{Step: st.id, Status: StatusPass, Duration: time.Since(start)}

		var halt *stop
		switch {
		case err == nil:
			s.log.Debug().Str("step", st.id).Dur("duration", res.Duration).Msg("step passed")
			report.Steps = append(report.Steps, res)
			continue
		case errors.As(err, &halt):
			res.Note = halt.note
			report.Outcome = halt.outcome
			s.log.Info().Str("step", st.id).Str("outcome", string(halt.outcome)).Msg(halt.note)
		default:
			res.Status = StatusFail
			res.Note = err.Error()
			s.log.Error().Err(err).Str("step", st.id).Str("kind", syncerr.KindOf(err).String()).Msg("step failed")
		}

		report.Steps = append(report.Steps, res)
		for _, rest := range steps[i+1:] {
			report.Steps = append(report.Steps, StepResult{Step: rest.id, Status: StatusSkip})
		}
		report.Archive, report.Message = state.archive, state.message

		if res.Status == StatusFail {
			return report, err
		}
		return report, nil
	}

	report.Outcome = OutcomePushed
	report.Archive, report.Message = state.archive, state.message
	return report, nil
}

func (s *Syncer) validateURL(_ context.Context, _ *run) error {
	if !strings.HasPrefix(s.opts.ProjectURL, ProjectURLPrefix) {
		return syncerr.Precondition("validate project url",
			fmt.Errorf("%w (`%s...`), got %q", ErrInvalidProjectURL, ProjectURLPrefix, s.opts.ProjectURL))
	}
	return nil
}

func (s *Syncer) validateRepo(_ context.Context, r *run) error {
	tree, err := s.deps.OpenTree(s.opts.TreePath)
	if err != nil {
		return err
	}
	r.tree = tree
	return nil
}

func (s *Syncer) fetch(ctx context.Context, r *run) error {
	s.log.Debug().Str("url", s.opts.ProjectURL).Msg("downloading overleaf project")
	archive, err := s.deps.Fetcher.Fetch(ctx, s.opts.ProjectURL)
	if err != nil {
		return fmt.Errorf("failed to download overleaf project: %w", err)
	}
	r.archive = archive
	return nil
}

func (s *Syncer) extract(ctx context.Context, r *run) error {
	s.log.Debug().Str("archive", r.archive).Str("git_path", s.opts.TreePath).Msg("moving downloaded files into working tree")
	n, err := r.tree.Extract(ctx, r.archive)
	if err != nil {
		return fmt.Errorf("failed to unzip downloaded files: %w", err)
	}
	s.log.Debug().Int("files", n).Msg("unzip completed successfully")
	return nil
}

func (s *Syncer) diff(ctx context.Context, r *run) error {
	diff, err := r.tree.Diff(ctx)
	if err != nil {
		return &stop{outcome: OutcomeNoChanges, note: "diff unavailable, exiting"}
	}
	if strings.TrimSpace(diff) == "" {
		return &stop{outcome: OutcomeNoChanges, note: "no changes detected, exiting"}
	}
	s.log.Info().Msg("changes detected, proceeding with git operations")
	r.diff = diff
	return nil
}

func (s *Syncer) generateMessage(ctx context.Context, r *run) error {
	r.message = s.deps.Generator.Generate(ctx, r.diff)
	s.log.Info().Str("commit_message", r.message).Msg("commit message")
	return nil
}

func (s *Syncer) add(ctx context.Context, r *run) error {
	return r.tree.AddAll(ctx)
}

func (s *Syncer) commit(ctx context.Context, r *run) error {
	if err := r.tree.Commit(ctx, r.message); err != nil {
		return &stop{outcome: OutcomeNothingToCommit, note: "nothing committed, skipping push"}
	}
	if h, ok := r.tree.(HeadReader); ok {
		if hash, branch, err := h.Head(); err == nil {
			s.log.Info().Str("commit", hash).Str("branch", branch).Msg("created commit")
		}
	}
	return nil
}

func (s *Syncer) push(ctx context.Context, r *run) error {
	return r.tree.Push(ctx)
}
