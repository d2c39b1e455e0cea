// Command example reads a file of BUFR and CREX messages and dumps them, or
// checks that they survive an encoding round trip.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/sdifrance/gobufr"
	"github.com/sdifrance/gobufr/bufrio"
	"github.com/sdifrance/gobufr/tables"
)

var (
	input     = flag.String("input", "", "Path to the input file, possibly zstd compressed.")
	tableDir  = flag.String("tables", tables.DefaultDir(), "Directory holding the table files.")
	mode      = flag.String("mode", "dump", "One of dump, header or roundtrip.")
	keepGoing = flag.Bool("keep_going", false, "Report messages that fail to decode and continue.")
)

func main() {
	flag.Parse()
	if err := run(context.Background(), os.Stdout); err != nil {
		glog.Exitf("got fatal error: %v", err)
	}
}

func run(ctx context.Context, out io.Writer) error {
	if *input == "" {
		return fmt.Errorf("-input is required")
	}
	f, err := os.Open(*input)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := bufrio.NewReader(f)
	if err != nil {
		return err
	}
	defer r.Close()

	registry := tables.NewRegistry(*tableDir)
	var count, failed, changed int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error scanning %s: %w", *input, err)
		}
		count++
		n, err := process(out, msg, registry)
		if err != nil {
			if !*keepGoing {
				return fmt.Errorf("message @ offset %d: %w", msg.Offset, err)
			}
			glog.Errorf("message @ offset %d: %v", msg.Offset, err)
			failed++
			continue
		}
		if n > 0 {
			changed++
		}
	}
	glog.Infof("%d messages, %d failed, %d changed by a round trip", count, failed, changed)
	if changed > 0 {
		return fmt.Errorf("%d messages changed by a round trip", changed)
	}
	return nil
}

// process handles one message as -mode says. It returns the number of round
// trip differences.
func process(out io.Writer, msg *bufrio.Message, l tables.Loader) (int, error) {
	switch *mode {
	case "header":
		b, err := gobufr.DecodeHeader(msg.Data)
		if err != nil {
			return 0, err
		}
		fmt.Fprintf(out, "# message @ offset %d, %d bytes\n", msg.Offset, len(msg.Data))
		b.Dump(out)
		return 0, nil
	case "dump":
		b, err := gobufr.Decode(msg.Data, l)
		if err != nil {
			return 0, err
		}
		fmt.Fprintf(out, "# message @ offset %d, %d bytes\n", msg.Offset, len(msg.Data))
		b.Dump(out)
		return 0, nil
	case "roundtrip":
		n, err := gobufr.RoundTrip(msg.Data, l)
		if err != nil {
			return 0, err
		}
		fmt.Fprintf(out, "%s message @ offset %d: %d differences\n", msg.Type, msg.Offset, n)
		return n, nil
	}
	return 0, fmt.Errorf("unknown -mode %q", *mode)
}
