package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/allocgo/allocation"
	"github.com/YuminosukeSato/allocgo/pkg/errors"
	"github.com/YuminosukeSato/allocgo/pkg/log"
)

// maxLineBytes bounds a single request line.
const maxLineBytes = 1 << 20

type serveOptions struct {
	watch       bool
	debounce    time.Duration
	metricsAddr string
}

func (c *cli) newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer JSON-lines prediction requests on stdin",
		Long: `serve reads one JSON record per line from stdin and writes one JSON line
per request to stdout: the allocation, or {"error": "..."} when the record is
rejected. With --watch the artifact is reloaded when its file changes; a
failed reload keeps the previous model.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("watch") {
				c.cfg.Watch = opts.watch
			}
			if flags.Changed("watch-debounce") {
				c.cfg.WatchDebounce = opts.debounce
			}
			if err := c.requireArtifact(); err != nil {
				return err
			}
			return c.serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), opts.metricsAddr)
		},
	}
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "reload the artifact when it changes")
	cmd.Flags().DurationVar(&opts.debounce, "watch-debounce", allocation.DefaultDebounce, "delay before reloading a changed artifact")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address")
	return cmd
}

func (c *cli) serve(ctx context.Context, in io.Reader, out io.Writer, metricsAddr string) error {
	logger := log.GetLoggerWithName("cli")
	reg := prometheus.NewRegistry()

	registry := allocation.NewRegistry(
		allocation.WithMetrics(allocation.NewMetricsWithRegistry(reg)),
		allocation.WithLoadOptions(c.loadOptions()...),
	)
	if _, err := registry.LoadFile(c.cfg.ArtifactPath); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	if c.cfg.Watch {
		w, err := allocation.NewWatcher(c.cfg.ArtifactPath, registry, c.cfg.WatchDebounce)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Start(ctx); err != nil {
				logger.Error("artifact watcher stopped", err)
			}
		}()
	}

	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", err)
			}
		}()
		go func() {
			defer wg.Done()
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", "metrics.addr", metricsAddr)
	}

	return serveLines(ctx, registry, in, out, logger)
}

type lineError struct {
	Error string `json:"error"`
}

// serveLines answers every non-blank line of in until EOF or ctx is done.
func serveLines(ctx context.Context, registry *allocation.Registry, in io.Reader, out io.Writer, logger log.Logger) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			select {
			case lines <- bytes.Clone(line):
			case <-ctx.Done():
				readErr <- nil
				return
			}
		}
		readErr <- sc.Err()
	}()

	bw := bufio.NewWriter(out)
	var served, failed int

	for {
		select {
		case <-ctx.Done():
			logger.Info("serve interrupted", log.PredsKey, served, log.FailuresKey, failed)
			return bw.Flush()

		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return errors.Wrap(err, "read requests")
				}
				logger.Info("input closed", log.PredsKey, served, log.FailuresKey, failed)
				return bw.Flush()
			}

			resp, err := answer(registry, line)
			if err != nil {
				failed++
				logger.Debug("request rejected", log.ErrAttrKey, err.Error())
			} else {
				served++
			}

			if _, err := bw.Write(append(resp, '\n')); err != nil {
				return errors.Wrap(err, "write response")
			}
			if err := bw.Flush(); err != nil {
				return errors.Wrap(err, "write response")
			}
		}
	}
}

// answer encodes the response to one request line. A request that cannot be
// decoded, predicted or encoded yields an error object instead.
func answer(registry *allocation.Registry, line []byte) ([]byte, error) {
	record, err := decodeRecord(bytes.NewReader(line))
	if err == nil {
		var res allocation.Result
		if res, err = registry.Predict(record); err == nil {
			var out []byte
			if out, err = json.Marshal(res); err == nil {
				return out, nil
			}
			err = errors.Wrap(err, "encode response")
		}
	}
	out, merr := json.Marshal(lineError{Error: err.Error()})
	if merr != nil {
		return nil, errors.Wrap(merr, "encode error response")
	}
	return out, err
}
