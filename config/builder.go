package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jpalmerr/batchflow"
	"github.com/jpalmerr/batchflow/internal/sink"
	"github.com/jpalmerr/batchflow/internal/source"
)

// stdout is where the stdout sink writes; tests replace it.
var stdout io.Writer = os.Stdout

// Job is a runnable job built from a [Config].
type Job struct {
	Name       string
	Mode       batchflow.Mode
	Batch      batchflow.Config
	StatusPort int

	fetch      batchflow.FetchFunc[json.RawMessage]
	fetchIndex batchflow.IndexFetchFunc[json.RawMessage]
	sink       sink.Sink
	client     *source.Client
}

// BuildJob wires the source and sink described by cfg.
//
// A file source is read in full here. Output files are created here too, so
// call [Job.Close] even if the job is never run.
func BuildJob(cfg *Config) (*Job, error) {
	mode, err := batchflow.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}

	job := &Job{
		Name:       cfg.Name,
		Mode:       mode,
		Batch:      batchflow.Config{Size: cfg.Batch.Size, Concurrency: cfg.Batch.Concurrency},
		StatusPort: cfg.StatusPort,
	}

	if cfg.Source.Type == SourceHTTP || cfg.Sink.Type == SinkHTTP {
		job.client = source.NewClient(cfg.Source.MaxBodySize, cfg.Batch.Concurrency)
	}

	if err := job.buildSource(cfg.Source); err != nil {
		job.client.Close()
		return nil, fmt.Errorf("source: %w", err)
	}
	if err := job.buildSink(cfg.Sink); err != nil {
		job.client.Close()
		return nil, fmt.Errorf("sink: %w", err)
	}

	return job, nil
}

func (j *Job) buildSource(sc SourceConfig) error {
	switch sc.Type {
	case SourceHTTP:
		src, err := source.NewHTTPSource(j.client, source.HTTPConfig{
			URL:     sc.URL,
			Method:  sc.Method,
			Headers: sc.Headers,
			Timeout: sc.Timeout.Duration(),
			Items:   sc.Items,
		})
		if err != nil {
			return err
		}
		j.fetch = src.FetchOffset
		j.fetchIndex = src.FetchIndex

	case SourceFile:
		items, err := source.ReadFile(sc.Path, source.Format(sc.Format))
		if err != nil {
			return err
		}
		j.fetch = batchflow.FromSlice(items)
		j.fetchIndex = batchflow.FromSliceIndexed(items, sc.PageSize)

	default:
		return fmt.Errorf("unknown type %q", sc.Type)
	}
	return nil
}

func (j *Job) buildSink(sc SinkConfig) error {
	switch sc.Type {
	case SinkStdout, "":
		j.sink = sink.NewWriterSink(stdout)

	case SinkFile:
		s, err := sink.OpenFile(sc.Path)
		if err != nil {
			return err
		}
		j.sink = s

	case SinkHTTP:
		s, err := sink.NewHTTPSink(j.client, sink.HTTPConfig{
			URL:     sc.URL,
			Method:  sc.Method,
			Headers: sc.Headers,
			Timeout: sc.Timeout.Duration(),
		})
		if err != nil {
			return err
		}
		j.sink = s

	default:
		return fmt.Errorf("unknown type %q", sc.Type)
	}
	return nil
}

// Run processes the job's source into its sink. The job name is applied
// with [batchflow.WithName] before opts, so opts may override it.
func (j *Job) Run(ctx context.Context, opts ...batchflow.Option) error {
	if j.sink == nil {
		return errors.New("job has no sink")
	}

	runOpts := make([]batchflow.Option, 0, len(opts)+1)
	if j.Name != "" {
		runOpts = append(runOpts, batchflow.WithName(j.Name))
	}
	runOpts = append(runOpts, opts...)

	if j.Mode == batchflow.ModeIndex {
		return batchflow.ProcessIndexed(ctx, j.fetchIndex, j.Batch, j.sink.Write, runOpts...)
	}
	return batchflow.Process(ctx, j.fetch, j.Batch, j.sink.Write, runOpts...)
}

// Close releases the sink and idle HTTP connections.
func (j *Job) Close() error {
	j.client.Close()
	if j.sink == nil {
		return nil
	}
	return j.sink.Close()
}
