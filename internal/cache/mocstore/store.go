// Package mocstore persists named MOCs in Redis.
package mocstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/healpix-moc/internal/cache/keys"
	"github.com/mohammed-shakir/healpix-moc/internal/cache/redisstore"
	"github.com/mohammed-shakir/healpix-moc/internal/logger"
	"github.com/mohammed-shakir/healpix-moc/internal/metrics"
	"github.com/mohammed-shakir/healpix-moc/pkg/moc"
)

var (
	ErrNotFound = errors.New("moc not found")
	ErrBadName  = errors.New("invalid moc name")
)

type Options struct {
	Prefix string
	Codec  moc.Codec
	// TTL of stored MOCs, 0 keeps them until deleted.
	TTL time.Duration
	// OpTimeout bounds each store operation, 0 leaves ctx untouched.
	OpTimeout time.Duration
	Metrics   *metrics.Collectors
	Logger    *zerolog.Logger
}

type Store struct {
	cli  *redisstore.Client
	opts Options
}

func New(cli *redisstore.Client, opts Options) *Store {
	if opts.Prefix == "" {
		opts.Prefix = "moc"
	}
	return &Store{cli: cli, opts: opts}
}

// Put stores m under name, replacing any previous MOC of that name.
func (s *Store) Put(ctx context.Context, name string, m *moc.MOC) error {
	return s.PutAll(ctx, map[string]*moc.MOC{name: m})
}

// PutAll stores several MOCs in one pipeline.
func (s *Store) PutAll(ctx context.Context, mocs map[string]*moc.MOC) (err error) {
	ctx, done := s.begin(ctx, "put")
	defer func() { done(resultOf(err)) }()

	kv := make(map[string][]byte, len(mocs))
	for name, m := range mocs {
		if err := checkName(name); err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("put %q: nil moc", name)
		}
		rec, err := encodeRecord(name, m, s.opts.Codec)
		if err != nil {
			return fmt.Errorf("put %q: %w", name, err)
		}
		kv[keys.Named(s.opts.Prefix, name)] = rec
	}
	if len(kv) == 1 {
		for k, v := range kv {
			err = s.cli.Set(ctx, k, v, s.opts.TTL)
		}
	} else {
		err = s.cli.MSetWithTTL(ctx, kv, s.opts.TTL)
	}
	if err != nil {
		return fmt.Errorf("store %d mocs: %w", len(kv), err)
	}
	s.log(ctx).Debug().Int("mocs", len(kv)).Str("codec", s.opts.Codec.String()).Msg("mocs stored")
	return nil
}

// Get loads the MOC stored under name, ErrNotFound if there is none.
func (s *Store) Get(ctx context.Context, name string) (m *moc.MOC, err error) {
	ctx, done := s.begin(ctx, "get")
	defer func() { done(resultOf(err)) }()

	if err := checkName(name); err != nil {
		return nil, err
	}
	raw, found, err := s.cli.Get(ctx, keys.Named(s.opts.Prefix, name))
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", name, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	stored, m, err := decodeRecord(raw)
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", name, err)
	}
	if stored != name {
		// two names sharing a key would need a 64-bit hash collision
		return nil, fmt.Errorf("get %q: key holds %q: %w", name, stored, moc.ErrMalformedEncoding)
	}
	return m, nil
}

// GetMany loads the MOCs of names; missing names are absent from the
// result.
func (s *Store) GetMany(ctx context.Context, names []string) (out map[string]*moc.MOC, err error) {
	ctx, done := s.begin(ctx, "mget")
	defer func() { done(resultOf(err)) }()

	ks := make([]string, len(names))
	for i, name := range names {
		if err := checkName(name); err != nil {
			return nil, err
		}
		ks[i] = keys.Named(s.opts.Prefix, name)
	}
	raw, err := s.cli.MGet(ctx, ks)
	if err != nil {
		return nil, fmt.Errorf("get %d mocs: %w", len(names), err)
	}
	out = make(map[string]*moc.MOC, len(raw))
	for i, name := range names {
		v, ok := raw[ks[i]]
		if !ok {
			continue
		}
		_, m, err := decodeRecord(v)
		if err != nil {
			return nil, fmt.Errorf("get %q: %w", name, err)
		}
		out[name] = m
	}
	return out, nil
}

// Delete removes the MOC stored under name and reports whether it existed.
func (s *Store) Delete(ctx context.Context, name string) (existed bool, err error) {
	ctx, done := s.begin(ctx, "delete")
	defer func() { done(resultOf(err)) }()

	if err := checkName(name); err != nil {
		return false, err
	}
	n, err := s.cli.Del(ctx, keys.Named(s.opts.Prefix, name))
	if err != nil {
		return false, fmt.Errorf("delete %q: %w", name, err)
	}
	return n > 0, nil
}

// List returns the sorted names of the stored MOCs.
func (s *Store) List(ctx context.Context) (names []string, err error) {
	ctx, done := s.begin(ctx, "list")
	defer func() { done(resultOf(err)) }()

	ks, err := s.cli.Keys(ctx, keys.NamedPattern(s.opts.Prefix))
	if err != nil {
		return nil, fmt.Errorf("list mocs: %w", err)
	}
	raw, err := s.cli.MGet(ctx, ks)
	if err != nil {
		return nil, fmt.Errorf("list mocs: %w", err)
	}
	names = make([]string, 0, len(raw))
	for k, v := range raw {
		name, err := recordName(v)
		if err != nil {
			s.log(ctx).Warn().Err(err).Str("key", k).Msg("skipping unreadable record")
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (s *Store) begin(ctx context.Context, op string) (context.Context, func(result string)) {
	ctx = logger.WithComponent(ctx, "mocstore")
	cancel := func() {}
	if s.opts.OpTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.opts.OpTimeout)
	}
	start := time.Now()
	return ctx, func(result string) {
		cancel()
		took := time.Since(start)
		s.opts.Metrics.ObserveStoreOp(op, result, took)
		if result == "error" {
			s.log(ctx).Warn().Str("op", op).Dur("took", took).Msg("store operation failed")
		}
	}
}

func (s *Store) log(ctx context.Context) *zerolog.Logger {
	return logger.FromContext(ctx, s.opts.Logger)
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "miss"
	default:
		return "error"
	}
}

func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrBadName)
	}
	return nil
}

// A record is the name, prefixed by its uvarint length, followed by the
// binary encoding of the MOC.
func encodeRecord(name string, m *moc.MOC, codec moc.Codec) ([]byte, error) {
	enc, err := m.Encode(codec)
	if err != nil {
		return nil, err
	}
	rec := make([]byte, 0, binary.MaxVarintLen64+len(name)+len(enc))
	rec = binary.AppendUvarint(rec, uint64(len(name)))
	rec = append(rec, name...)
	return append(rec, enc...), nil
}

func splitRecord(rec []byte) (name string, rest []byte, err error) {
	n, k := binary.Uvarint(rec)
	if k <= 0 || n > uint64(len(rec)-k) {
		return "", nil, fmt.Errorf("%w: bad record name", moc.ErrMalformedEncoding)
	}
	end := k + int(n)
	return string(rec[k:end]), rec[end:], nil
}

func recordName(rec []byte) (string, error) {
	name, _, err := splitRecord(rec)
	return name, err
}

func decodeRecord(rec []byte) (string, *moc.MOC, error) {
	name, rest, err := splitRecord(rec)
	if err != nil {
		return "", nil, err
	}
	m, err := moc.Decode(rest)
	if err != nil {
		return "", nil, err
	}
	return name, m, nil
}
