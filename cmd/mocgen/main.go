// Command mocgen builds the MOC of a cone, zone or polygon and prints it,
// optionally storing it in redis.
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammed-shakir/healpix-moc/internal/cache/mocstore"
	"github.com/mohammed-shakir/healpix-moc/internal/cache/redisstore"
	"github.com/mohammed-shakir/healpix-moc/internal/core/config"
	"github.com/mohammed-shakir/healpix-moc/internal/logger"
	"github.com/mohammed-shakir/healpix-moc/internal/metrics"
	"github.com/mohammed-shakir/healpix-moc/internal/query"
	"github.com/mohammed-shakir/healpix-moc/pkg/moc"
)

var (
	Version   = "dev"
	Revision  = ""
	BuildDate = ""
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	zl := logger.Build(logger.Config{Level: cfg.LogLevel, Console: cfg.LogConsole, Component: "mocgen"}, os.Stderr)
	slog.SetDefault(logger.NewSlog(&zl))

	err := run(ctx, os.Args[1:], cfg, os.Stdout, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		slog.Error("mocgen failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, cfg config.Config, stdout, stderr io.Writer) (err error) {
	o, err := parseOptions(args, cfg, stderr)
	if err != nil {
		return err
	}

	zl := logger.Build(logger.Config{Level: cfg.LogLevel, Console: cfg.LogConsole, Component: "mocgen"}, stderr)
	ctx = logger.WithQueryID(ctx, "")
	log := logger.FromContext(ctx, &zl)

	prov := metrics.Init(metrics.Config{
		Build:   metrics.BuildInfo{Version: Version, Revision: Revision, BuildDate: BuildDate},
		Runtime: true,
	})
	col := metrics.NewCollectors()
	col.MustRegister(prov)
	if o.Metrics {
		defer func() {
			if werr := prov.WriteText(stderr); werr != nil && err == nil {
				err = werr
			}
		}()
	}

	codec, err := moc.ParseCodec(o.Codec)
	if err != nil {
		return err
	}

	var store *mocstore.Store
	if o.Save != "" || o.Load != "" || o.List || o.Delete != "" {
		if cfg.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required for -save, -load, -list and -delete")
		}
		cli, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = cli.Close() }()
		store = mocstore.New(cli, mocstore.Options{
			Prefix:    cfg.KeyPrefix,
			Codec:     codec,
			TTL:       cfg.MOCTTL,
			OpTimeout: cfg.StoreOpTimeout,
			Metrics:   col,
			Logger:    &zl,
		})
	}

	switch {
	case o.List:
		names, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, n := range names {
			if _, err := fmt.Fprintln(stdout, n); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
		return nil

	case o.Delete != "":
		existed, err := store.Delete(ctx, o.Delete)
		if err != nil {
			return err
		}
		if !existed {
			return fmt.Errorf("%w: %q", mocstore.ErrNotFound, o.Delete)
		}
		log.Info().Str("name", o.Delete).Msg("moc deleted")
		return nil

	case o.Load != "":
		m, err := store.Get(ctx, o.Load)
		if err != nil {
			return err
		}
		return writeMOC(stdout, m, o.Format, codec)
	}

	r, err := o.region()
	if err != nil {
		return err
	}
	eng, err := query.New(cfg, col, &zl)
	if err != nil {
		return err
	}
	depth := uint8(o.Depth)
	if d := cfg.ClampDepth(depth); d != depth {
		log.Warn().Uint8("requested", depth).Uint8("depth", d).Msg("depth clamped to configured bounds")
		depth = d
	}
	m, err := eng.Query(ctx, r, depth)
	if err != nil {
		return err
	}
	if o.Save != "" {
		if err := store.Put(ctx, o.Save, m); err != nil {
			return err
		}
		log.Info().Str("name", o.Save).Str("codec", codec.String()).Msg("moc saved")
	}
	return writeMOC(stdout, m, o.Format, codec)
}

func writeMOC(w io.Writer, m *moc.MOC, format string, codec moc.Codec) error {
	var out []byte
	switch format {
	case "none":
		return nil
	case "ascii":
		out = []byte(m.String() + "\n")
	case "base64", "binary":
		b, err := m.Encode(codec)
		if err != nil {
			return err
		}
		out = b
		if format == "base64" {
			out = []byte(base64.StdEncoding.EncodeToString(b) + "\n")
		}
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
