package updater

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Maeiro/MMMMM/internal/archive"
	"github.com/Maeiro/MMMMM/internal/config"
	"github.com/Maeiro/MMMMM/internal/downloader"
	"github.com/Maeiro/MMMMM/internal/logging"
	"github.com/Maeiro/MMMMM/internal/progress"
)

// Run updates the mods bundle and then, when enabled, the config bundle.
// A failure in one bundle does not stop the other; unsafe archives and
// local storage failures abort the run and are returned as an error.
// A summary event is always emitted to opts.Sink before Run returns,
// unless the run was skipped for lack of a base URL.
func Run(ctx context.Context, opts Options) (*Result, error) {
	opts = normalizeOptions(opts)
	res := &Result{RunID: uuid.NewString()}
	log := logging.New("update").With("run", res.RunID)

	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		logging.Infoln("No mod URL found; skipping update.")
		res.Skipped = true
		return res, nil
	}
	log.Info("starting update", "base", base, "instance", opts.InstanceDir)

	w := &worker{opts: opts, log: log, diags: &archive.Diagnostics{}}

	var fatal error
	res.Mods = w.run(ctx, w.modsBundle(base))
	if isFatal(res.Mods.Err) {
		fatal = res.Mods.Err
	}

	res.Config = Outcome{State: StateIdle}
	switch {
	case !opts.UpdateConfig:
		res.Config.State = StateDisabled
	case fatal == nil && !res.Mods.Cancelled():
		res.Config = w.run(ctx, w.configBundle(base))
		if isFatal(res.Config.Err) {
			fatal = res.Config.Err
		}
	}
	res.Warnings = w.diags.Lines()

	switch {
	case res.Mods.Cancelled() || res.Config.Cancelled():
		res.Summary = CancelledSummary()
	default:
		res.Summary = BuildSummary(base, res.Mods, res.Config, fatal != nil, res.Warnings)
	}
	opts.Sink.Emit(progress.Done(res.Summary))
	log.Info("update finished", "result", res.Summary.Title, "mods", res.Mods.State, "config", res.Config.State)

	if fatal != nil {
		return res, fmt.Errorf("update aborted: %w", fatal)
	}
	return res, nil
}

func normalizeOptions(opts Options) Options {
	if opts.Layout == nil {
		l := config.NewLayout(opts.InstanceDir, config.ClientConfig{})
		opts.Layout = &l
	}
	if opts.Timeout <= 0 {
		opts.Timeout = downloader.DefaultTimeout
	}
	if opts.Client == nil {
		opts.Client = downloader.NewClient(opts.Timeout)
	}
	if opts.SelfID == "" {
		opts.SelfID = archive.DefaultSelfID
	}
	if opts.Sink == nil {
		opts.Sink = progress.Discard{}
	}
	return opts
}
