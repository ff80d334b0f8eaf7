// Command sginfo prints the decode report for GOCAD SGrid headers and can
// export the decoded grids as legacy VTK.
//
//	sginfo model.sg
//	sginfo -bucket file:///data/models -prefix sa/ -out file:///tmp/vtk
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/go-logr/stdr"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"golang.org/x/sync/errgroup"

	gocadsg "github.com/RichardScottOZ/GOCAD-SG-Grid-Reader"
	"github.com/RichardScottOZ/GOCAD-SG-Grid-Reader/sg"
)

var (
	configPath = flag.String("config", "", "JSON options file")
	bucketURL  = flag.String("bucket", "", "bucket URL holding headers; arguments become keys")
	prefix     = flag.String("prefix", "", "list every .sg header under this prefix of -bucket")
	outURL     = flag.String("out", "", "bucket URL to write <grid>.vtk files into")
	showStats  = flag.Bool("stats", false, "print value statistics for usable properties")
	parallel   = flag.Int("parallel", 2, "grids processed concurrently in batch mode")
	verbosity  = flag.Int("v", 0, "log verbosity")
)

func main() {
	flag.Parse()
	stdr.SetVerbosity(*verbosity)
	logger := stdr.New(log.New(os.Stderr, "sginfo ", log.LstdFlags))

	opts := gocadsg.DefaultOptions()
	if *configPath != "" {
		var err error
		if opts, err = gocadsg.LoadOptions(*configPath); err != nil {
			log.Fatalf("Failed to load options: %v", err)
		}
	}
	opts.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var out *blob.Bucket
	if *outURL != "" {
		var err error
		if out, err = blob.OpenBucket(ctx, *outURL); err != nil {
			log.Fatalf("Failed to open output bucket: %v", err)
		}
		defer out.Close()
	}

	if *bucketURL == "" {
		if flag.NArg() == 0 {
			fmt.Fprintln(os.Stderr, "usage: sginfo [flags] <header.sg>...")
			flag.PrintDefaults()
			os.Exit(2)
		}
		failed := false
		for _, path := range flag.Args() {
			if err := runLocal(ctx, path, opts, out); err != nil {
				logger.Error(err, "grid failed", "path", path)
				failed = true
			}
		}
		if failed {
			os.Exit(1)
		}
		return
	}

	bucket, err := blob.OpenBucket(ctx, *bucketURL)
	if err != nil {
		log.Fatalf("Failed to open bucket: %v", err)
	}
	defer bucket.Close()

	keys := flag.Args()
	if *prefix != "" || len(keys) == 0 {
		if keys, err = gocadsg.ListHeaders(ctx, bucket, *prefix); err != nil {
			log.Fatalf("Failed to list headers: %v", err)
		}
	}
	if len(keys) == 0 {
		log.Printf("No .sg headers found under %q", *prefix)
		return
	}

	// One grid per worker; reports are buffered so output stays in key order.
	reports := make([]bytes.Buffer, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(*parallel, 1))
	for i, key := range keys {
		g.Go(func() error {
			r, err := gocadsg.NewReaderFromBucket(gctx, bucket, key, opts)
			if err != nil {
				logger.Error(err, "skipping grid", "key", key)
				return nil
			}
			defer r.Close()
			return process(gctx, r, &reports[i], out)
		})
	}
	err = g.Wait()
	for i := range reports {
		os.Stdout.Write(reports[i].Bytes())
	}
	if err != nil {
		log.Fatalf("Batch aborted: %v", err)
	}
}

func runLocal(ctx context.Context, path string, opts gocadsg.Options, out *blob.Bucket) error {
	r, err := gocadsg.Open(ctx, path, opts)
	if err != nil {
		return err
	}
	defer r.Close()

	var buf bytes.Buffer
	err = process(ctx, r, &buf, out)
	os.Stdout.Write(buf.Bytes())
	return err
}

func process(ctx context.Context, r *gocadsg.Reader, w *bytes.Buffer, out *blob.Bucket) error {
	grid, err := r.ReadGrid(ctx)
	if err != nil {
		return err
	}
	if err := grid.WriteSummary(w); err != nil {
		return err
	}
	if *showStats {
		for _, name := range grid.Usable() {
			s, err := grid.Stats(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "  %s: valid=%d/%d mean=%g std=%g median=%g p25=%g p75=%g\n",
				name, s.Valid, s.Count, s.Mean, s.StdDev, s.Median, s.P25, s.P75)
		}
	}
	w.WriteString("\n")

	if out == nil {
		return nil
	}
	key := gocadsg.ExportKey(r.Key(), "vtk")
	exp := &sg.VTKExporter{Bucket: out, Key: key}
	if err := exp.Export(ctx, grid); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s\n\n", key)
	return nil
}
