package table

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
)

// TestParkDataDriven exercises WritePark/ReadPark and EncodeC3Park/
// DecodeC3Park against fixtures the way pebble's own checkpoint_test.go
// drives datadriven.RunTest: each "park" or "c3" command round-trips the
// listed values through the codec and prints what came back out, so the
// fixture file is also the expectation (an encode/decode pair that isn't
// the identity is the failure).
func TestParkDataDriven(t *testing.T) {
	datadriven.RunTest(t, "testdata/park", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "park":
			k := uint8(18)
			tbl := uint8(3)
			if arg, ok := td.Arg("k"); ok {
				v, err := strconv.Atoi(arg.Vals[0])
				if err != nil {
					return err.Error()
				}
				k = uint8(v)
			}
			if arg, ok := td.Arg("t"); ok {
				v, err := strconv.Atoi(arg.Vals[0])
				if err != nil {
					return err.Error()
				}
				tbl = uint8(v)
			}

			var points []*big.Int
			for _, line := range strings.Split(strings.TrimSpace(td.Input), "\n") {
				n := new(big.Int)
				if _, ok := n.SetString(strings.TrimSpace(line), 10); !ok {
					return fmt.Sprintf("bad line point %q", line)
				}
				points = append(points, n)
			}

			park, err := WritePark(k, tbl, points)
			if err != nil {
				return err.Error()
			}
			decoded, err := ReadPark(park, k, tbl, len(points))
			if err != nil {
				return err.Error()
			}
			var b strings.Builder
			for _, p := range decoded {
				fmt.Fprintln(&b, p.String())
			}
			fmt.Fprintf(&b, "park size: %d\n", len(park))
			return b.String()

		case "c3":
			var deltas []uint64
			for _, line := range strings.Split(strings.TrimSpace(td.Input), "\n") {
				v, err := strconv.ParseUint(strings.TrimSpace(line), 10, 64)
				if err != nil {
					return err.Error()
				}
				deltas = append(deltas, v)
			}

			park, err := EncodeC3Park(18, deltas)
			if err != nil {
				return err.Error()
			}
			decoded := DecodeC3Park(park, len(deltas))
			var b strings.Builder
			for _, d := range decoded {
				fmt.Fprintln(&b, d)
			}
			fmt.Fprintf(&b, "c3 park size: %d\n", len(park))
			return b.String()

		default:
			return fmt.Sprintf("unknown command %q", td.Cmd)
		}
	})
}
