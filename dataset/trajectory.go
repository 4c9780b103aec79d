package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/crowd/geom"
)

// TrajectoryPoint is one recorded position of a real pedestrian.
type TrajectoryPoint struct {
	T     float64   // seconds
	Frame int       // T divided by the frame interval
	Raw   geom.Vec2 // recorded position
	Norm  geom.Vec2 // position mapped into [-1, 1] by the scene extents
}

type trajectoryRow struct {
	T float64 `csv:"t"`
	X float64 `csv:"x"`
	Z float64 `csv:"z"`
}

// ReadTrajectory parses a ';'-separated t;x;z file with a header row.
func ReadTrajectory(r io.Reader, framerate int, params SceneParams) ([]TrajectoryPoint, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading trajectory header: %w", err)
	}

	var rows []trajectoryRow
	if err := gocsv.UnmarshalCSVWithoutHeaders(columns{cr, 3}, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading trajectory: %w", err)
	}

	interval := 1.0
	if framerate > 0 {
		interval = 1 / float64(framerate)
	}
	out := make([]TrajectoryPoint, len(rows))
	for i, row := range rows {
		out[i] = TrajectoryPoint{
			T:     row.T,
			Frame: int(row.T / interval),
			Raw:   geom.V(row.X, row.Z),
			Norm: geom.V(
				inverseLerp(params.MinWidth, params.MaxWidth, row.X)*2-1,
				inverseLerp(params.MinHeight, params.MaxHeight, row.Z)*2-1,
			),
		}
	}
	return out, nil
}

// columns keeps the first n fields of every record.
type columns struct {
	r *csv.Reader
	n int
}

func (c columns) Read() ([]string, error) {
	rec, err := c.r.Read()
	if len(rec) > c.n {
		rec = rec[:c.n]
	}
	return rec, err
}

func (c columns) ReadAll() ([][]string, error) {
	recs, err := c.r.ReadAll()
	for i := range recs {
		if len(recs[i]) > c.n {
			recs[i] = recs[i][:c.n]
		}
	}
	return recs, err
}

// inverseLerp returns where v sits between a and b, clamped to [0, 1].
func inverseLerp(a, b, v float64) float64 {
	if a == b {
		return 0
	}
	return geom.Clamp01((v - a) / (b - a))
}
