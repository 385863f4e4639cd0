package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/healpix-moc/internal/core/config"
	"github.com/mohammed-shakir/healpix-moc/pkg/healpix"
	"github.com/mohammed-shakir/healpix-moc/pkg/moc"
)

type options struct {
	Cone    string
	Zone    string
	Polygon string
	Degrees bool
	Depth   uint
	Format  string
	Codec   string
	Save    string
	Load    string
	List    bool
	Delete  string
	Metrics bool
}

// parseOptions reads the flags; env config provides the defaults.
func parseOptions(args []string, cfg config.Config, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("mocgen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.Cone, "cone", "", "cone as lon,lat,radius")
	fs.StringVar(&o.Zone, "zone", "", "zone as lonMin,latMin,lonMax,latMax")
	fs.StringVar(&o.Polygon, "polygon", "", "polygon as lon,lat;lon,lat;... with the interior on the left")
	fs.BoolVar(&o.Degrees, "deg", false, "coordinates and radius are in degrees instead of radians")
	fs.UintVar(&o.Depth, "depth", uint(cfg.Depth), "MOC depth (0..29)")
	fs.StringVar(&o.Format, "format", "ascii", "output format: ascii|base64|binary|none")
	fs.StringVar(&o.Codec, "codec", cfg.Codec.String(), "codec of base64/binary output and stored MOCs: none|zstd|snappy|lz4")
	fs.StringVar(&o.Save, "save", "", "store the MOC in redis under this name")
	fs.StringVar(&o.Load, "load", "", "print the MOC stored in redis under this name")
	fs.BoolVar(&o.List, "list", false, "list the names of the MOCs stored in redis")
	fs.StringVar(&o.Delete, "delete", "", "delete the MOC stored in redis under this name")
	fs.BoolVar(&o.Metrics, "metrics", false, "dump metrics to stderr on exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	regions := 0
	for _, s := range []string{o.Cone, o.Zone, o.Polygon} {
		if s != "" {
			regions++
		}
	}
	actions := regions
	for _, set := range []bool{o.Load != "", o.List, o.Delete != ""} {
		if set {
			actions++
		}
	}
	switch {
	case actions == 0:
		return o, errors.New("one of -cone, -zone, -polygon, -load, -list or -delete is required")
	case actions > 1:
		return o, errors.New("-cone, -zone, -polygon, -load, -list and -delete are exclusive")
	case o.Save != "" && regions == 0:
		return o, errors.New("-save needs a region")
	case o.Depth > healpix.MaxDepth:
		return o, fmt.Errorf("depth %d > %d", o.Depth, healpix.MaxDepth)
	}
	switch o.Format {
	case "ascii", "base64", "binary", "none":
	default:
		return o, fmt.Errorf("unknown format %q", o.Format)
	}
	if _, err := moc.ParseCodec(o.Codec); err != nil {
		return o, err
	}
	return o, nil
}

func (o options) angle(v float64) float64 {
	if o.Degrees {
		return v * math.Pi / 180
	}
	return v
}

// region builds the region named by the flags.
func (o options) region() (healpix.Region, error) {
	switch {
	case o.Cone != "":
		v, err := floats(o.Cone, 3)
		if err != nil {
			return nil, fmt.Errorf("-cone: %w", err)
		}
		return healpix.NewCone(o.angle(v[0]), o.angle(v[1]), o.angle(v[2]))
	case o.Zone != "":
		v, err := floats(o.Zone, 4)
		if err != nil {
			return nil, fmt.Errorf("-zone: %w", err)
		}
		return healpix.NewZone(o.angle(v[0]), o.angle(v[1]), o.angle(v[2]), o.angle(v[3]))
	case o.Polygon != "":
		var vs []healpix.LonLat
		for p := range strings.SplitSeq(o.Polygon, ";") {
			if strings.TrimSpace(p) == "" {
				continue
			}
			v, err := floats(p, 2)
			if err != nil {
				return nil, fmt.Errorf("-polygon vertex %q: %w", p, err)
			}
			vs = append(vs, healpix.LonLat{Lon: o.angle(v[0]), Lat: o.angle(v[1])})
		}
		return healpix.NewPolygon(vs)
	}
	return nil, nil
}

func floats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("want %d comma separated numbers, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
