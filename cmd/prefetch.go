package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/signloop/signloop/internal/identity"
	"github.com/signloop/signloop/pkg/logger"
	"github.com/signloop/signloop/pkg/looplib"
)

func prefetch(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	cfg := loadRunConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	lg := logger.NewStandardLogger(log.Default())

	fs := afero.NewOsFs()
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		printRuntimeErr(ctx, "prefetch", "data_dir", err)
		return nil
	}
	device := identity.NewResolver(fs, cfg.DataDir, lg).Resolve(cfg.DeviceId)

	client, err := looplib.NewClient(cfg.Endpoint, device, nil, lg)
	if err != nil {
		printRuntimeErr(ctx, "prefetch", "new_client", err)
		return nil
	}

	cctx, cancel := setupShutdownHandler()
	defer cancel()

	fmt.Printf(">> Prefetching content for %s <<\n", device)
	payload, err := client.FetchPayload(cctx)
	if err != nil {
		printRuntimeErr(ctx, "prefetch", "fetch_payload", err)
		return nil
	}
	pl, err := looplib.ResolveActive(payload.Playlists, time.Now())
	if err != nil {
		printRuntimeErr(ctx, "prefetch", "resolve_playlist", err)
		return nil
	}
	playable := looplib.FilterPlayable(pl.Assets, lg)
	if len(playable) == 0 {
		fmt.Printf("signloop: playlist %q has no playable assets\n", pl.Name)
		return nil
	}

	p := mpb.New(mpb.WithWidth(64), mpb.WithRefreshRate(180*time.Millisecond))
	bars := newBarTracker(p)

	router := looplib.NewSchemeRouter(nil, cfg.RateLimit)
	cache, err := looplib.NewAssetCache(fs, cfg.CacheDir, router, bars.handlers(), lg)
	if err != nil {
		printRuntimeErr(ctx, "prefetch", "asset_cache", err)
		return nil
	}
	defer cache.Close()

	locals, err := cache.EnsureAll(cctx, playable)
	p.Wait()
	if err != nil {
		printRuntimeErr(ctx, "prefetch", "download", err)
		return nil
	}

	manifestPath := filepath.Join(cfg.DataDir, "manifest.json")
	if err := looplib.SaveManifest(fs, manifestPath, looplib.NewManifest(device, locals)); err != nil {
		printRuntimeErr(ctx, "prefetch", "save_manifest", err)
		return nil
	}

	size, _ := cache.Size()
	fmt.Printf("\nPrefetched playlist %q: %d of %d assets local, cache %s\n",
		pl.Name, len(locals), len(playable), looplib.ByteSize(size))
	return nil
}

// barTracker maps in-flight downloads to mpb bars, one per asset.
type barTracker struct {
	p    *mpb.Progress
	mu   sync.Mutex
	bars map[string]*mpb.Bar
}

func newBarTracker(p *mpb.Progress) *barTracker {
	return &barTracker{p: p, bars: make(map[string]*mpb.Bar)}
}

func (t *barTracker) handlers() *looplib.CacheHandlers {
	return &looplib.CacheHandlers{
		FetchStartHandler:    t.start,
		FetchProgressHandler: t.progress,
		FetchCompleteHandler: t.complete,
		FetchErrorHandler:    t.fail,
	}
}

func (t *barTracker) start(name, _ string, size int64) {
	barStyle := mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟")

	display := name
	if len(display) > 24 {
		display = display[:21] + "..."
	}
	bar := t.p.New(0,
		barStyle,
		mpb.PrependDecorators(
			decor.Name(display, decor.WC{W: len(display) + 1, C: decor.DindentRight}),
			decor.OnComplete(
				decor.AverageETA(decor.ET_STYLE_GO, decor.WC{W: 4}), "done",
			),
		),
		mpb.AppendDecorators(
			decor.AverageSpeed(decor.SizeB1024(0), "% .2f"),
		),
	)
	if size > 0 {
		bar.SetTotal(size, false)
	}
	bar.EnableTriggerComplete()

	t.mu.Lock()
	t.bars[name] = bar
	t.mu.Unlock()
}

func (t *barTracker) progress(name string, nread int) {
	if bar := t.get(name); bar != nil {
		bar.IncrBy(nread)
	}
}

func (t *barTracker) complete(name string, size int64) {
	if bar := t.get(name); bar != nil {
		bar.SetTotal(size, true)
	}
}

// fail drops the bar so the next attempt of a retried download starts
// a fresh one instead of stacking rows.
func (t *barTracker) fail(name string, _ error) {
	t.mu.Lock()
	bar := t.bars[name]
	delete(t.bars, name)
	t.mu.Unlock()
	if bar != nil {
		bar.Abort(true)
	}
}

func (t *barTracker) get(name string) *mpb.Bar {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bars[name]
}
