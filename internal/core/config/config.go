package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/healpix-moc/pkg/healpix"
	"github.com/mohammed-shakir/healpix-moc/pkg/moc"
)

type Config struct {
	LogLevel   string
	LogConsole bool

	Depth    uint8
	DepthMin uint8
	DepthMax uint8

	QueryWorkers   int
	QueryCacheSize int
	Codec          moc.Codec

	RedisAddr      string
	MOCTTL         time.Duration
	StoreOpTimeout time.Duration
	KeyPrefix      string
}

func FromEnv() Config {
	depth := clampDepth(getint("HEALPIX_DEPTH", 10))
	minDepth := clampDepth(getint("HEALPIX_DEPTH_MIN", int(depth)))
	maxDepth := clampDepth(getint("HEALPIX_DEPTH_MAX", int(depth)))
	if minDepth > maxDepth {
		minDepth, maxDepth = depth, depth
	}
	depth = min(max(depth, minDepth), maxDepth)

	codec, err := moc.ParseCodec(getenv("MOC_CODEC", "none"))
	if err != nil {
		codec = moc.CodecNone
	}

	return Config{
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		Depth:          depth,
		DepthMin:       minDepth,
		DepthMax:       maxDepth,
		QueryWorkers:   max(getint("QUERY_WORKERS", 4), 1),
		QueryCacheSize: max(getint("QUERY_CACHE_SIZE", 1024), 0),
		Codec:          codec,
		RedisAddr:      getenv("REDIS_ADDR", ""),
		MOCTTL:         max(getduration("MOC_TTL", 0), 0),
		StoreOpTimeout: getduration("STORE_OP_TIMEOUT", 250*time.Millisecond),
		KeyPrefix:      getenv("MOC_KEY_PREFIX", "moc"),
	}
}

// ClampDepth bounds a requested query depth to [DepthMin, DepthMax].
func (c Config) ClampDepth(d uint8) uint8 {
	return min(max(d, c.DepthMin), c.DepthMax)
}

func clampDepth(n int) uint8 {
	if n < 0 {
		return 0
	}
	if n > healpix.MaxDepth {
		return healpix.MaxDepth
	}
	return uint8(n)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}
