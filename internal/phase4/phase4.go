// Package phase4 implements the checkpoint pass (design §4.7): given
// table 7's f7 stream in ascending order (phase 3's raw, uncompressed
// record stream), it samples every kCheckpoint1Interval-th value into C1,
// samples every kCheckpoint1Interval-th C1 entry into C2, and Rice-codes
// the runs of consecutive f7 deltas between C1 boundaries into fixed-size
// C3 parks.
package phase4

import (
	chiaerrors "github.com/xdustinface/chiapos/errors"
	"github.com/xdustinface/chiapos/internal/bitpack"
	"github.com/xdustinface/chiapos/internal/table"
	"github.com/xdustinface/chiapos/vfs"
)

// Config bundles phase 4's construction parameters.
type Config struct {
	K uint8
}

func (cfg Config) validate() error {
	if cfg.K == 0 || cfg.K > table.KMaxPlotSize {
		return chiaerrors.InvalidValuef("phase4: k=%d outside (0, %d]", cfg.K, table.KMaxPlotSize)
	}
	return nil
}

// Result records where C1, C2, and C3 landed in the output file, and the
// byte offset immediately past the C3 stream (the file's final size).
type Result struct {
	C1Offset  uint64
	C2Offset  uint64
	C3Offset  uint64
	EndOffset uint64
	NumF7     uint64
	NumC1     uint64
}

// Run walks numEntries entrySize-byte Table7Entry records starting at
// table7Offset in out, and writes the resulting C1, C2, and C3 tables
// sequentially into out starting at cursor.
func Run(cfg Config, out vfs.Disk, table7Offset uint64, entrySize uint32, numEntries uint64, cursor uint64) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if numEntries == 0 {
		return nil, chiaerrors.InvalidValuef("phase4: table 7 has no entries")
	}

	c1s := make([]uint64, 0, (numEntries+table.KCheckpoint1Interval-1)/table.KCheckpoint1Interval)
	var c3Parks [][]byte

	var group []uint64
	var prevF7 uint64

	flushGroup := func() error {
		park, err := table.EncodeC3Park(cfg.K, group)
		if err != nil {
			return err
		}
		c3Parks = append(c3Parks, park)
		group = group[:0]
		return nil
	}

	for i := uint64(0); i < numEntries; i++ {
		raw, err := out.Read(table7Offset+i*uint64(entrySize), uint64(entrySize))
		if err != nil {
			return nil, err
		}
		e := table.UnpackTable7Entry(bitpack.Pad(raw), 0, cfg.K)

		if i%table.KCheckpoint1Interval == 0 {
			if i > 0 {
				if err := flushGroup(); err != nil {
					return nil, err
				}
			}
			c1s = append(c1s, e.F7)
			prevF7 = e.F7
			continue
		}
		group = append(group, e.F7-prevF7)
		prevF7 = e.F7
	}
	if err := flushGroup(); err != nil {
		return nil, err
	}

	c2s := make([]uint64, 0, (len(c1s)+table.KCheckpoint1Interval-1)/table.KCheckpoint1Interval)
	for i := 0; i < len(c1s); i += table.KCheckpoint1Interval {
		c2s = append(c2s, c1s[i])
	}

	c1Bytes := table.EncodeC1(cfg.K, c1s)
	c2Bytes := table.EncodeC2(cfg.K, c2s)

	c1Offset := cursor
	if err := out.Write(c1Offset, c1Bytes); err != nil {
		return nil, err
	}
	cursor += uint64(len(c1Bytes))

	c2Offset := cursor
	if err := out.Write(c2Offset, c2Bytes); err != nil {
		return nil, err
	}
	cursor += uint64(len(c2Bytes))

	c3Offset := cursor
	for _, park := range c3Parks {
		if err := out.Write(cursor, park); err != nil {
			return nil, err
		}
		cursor += uint64(len(park))
	}

	return &Result{
		C1Offset:  c1Offset,
		C2Offset:  c2Offset,
		C3Offset:  c3Offset,
		EndOffset: cursor,
		NumF7:     numEntries,
		NumC1:     uint64(len(c1s)),
	}, nil
}
