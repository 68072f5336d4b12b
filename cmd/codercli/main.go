// codercli is a small command-line driver over internal/coder: it runs one
// encode or decode Job against a file (or one Job per file when -in lists
// several) and writes the result, or serves the admin endpoints instead.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/telraneng/chunkcoder/internal/admin"
	"github.com/telraneng/chunkcoder/internal/bufs"
	"github.com/telraneng/chunkcoder/internal/cipheradapter"
	"github.com/telraneng/chunkcoder/internal/coder"
	"github.com/telraneng/chunkcoder/internal/config"
	"github.com/telraneng/chunkcoder/internal/debug"
	"github.com/telraneng/chunkcoder/internal/digest"
	"github.com/telraneng/chunkcoder/internal/hardware"
	"github.com/telraneng/chunkcoder/internal/metrics"
	"github.com/telraneng/chunkcoder/internal/pool"
	"github.com/telraneng/chunkcoder/internal/telemetry"
)

func main() {
	var (
		direction      = flag.String("direction", "encode", "encode or decode")
		inPath         = flag.String("in", "", "input file(s): raw chunk bytes (encode) or a coder JSON result (decode); comma-separated for batch mode")
		outPath        = flag.String("out", "", "output file (single job) or directory (batch mode)")
		configPath     = flag.String("config", "", "path to a registry config YAML file (internal/config)")
		dataFrags      = flag.Int("data-frags", 4, "number of data fragments")
		parityFrags    = flag.Int("parity-frags", 2, "number of parity fragments")
		parityType     = flag.String("parity-type", "isa-c1", "isa-c1, isa-rs, or cm256 (empty disables erasure coding)")
		digestType     = flag.String("digest-type", "sha256", "chunk digest algorithm (empty disables it)")
		fragDigestType = flag.String("frag-digest-type", "", "per-fragment digest algorithm (empty disables it)")
		compressType   = flag.String("compress-type", "", "zlib, snappy, or empty")
		cipherType     = flag.String("cipher-type", "", "cipher_type name, or empty to skip encryption")
		cipherKeyB64   = flag.String("cipher-key", "", "base64 cipher key; required for decode when encryption was used")
		adminAddr      = flag.String("admin-addr", "", "if set, serve /metrics and /health(/ready/live/hardware) on this address instead of running a job")
		size           = flag.Int("size", 0, "original chunk size in bytes; required for -direction=decode, since the wire result doesn't carry it")
		verbose        = flag.Bool("verbose", false, "enable debug logging")
		concurrency    = flag.Int("concurrency", 0, "max concurrent jobs in batch mode (multiple -in paths); 0 means runtime.NumCPU()")
		traceExporter  = flag.String("trace-exporter", telemetry.ExporterNone, "none, stdout, otlp, or jaeger")
		traceEndpoint  = flag.String("trace-endpoint", "", "collector endpoint for -trace-exporter=otlp|jaeger")
	)
	flag.Parse()

	logger := logrus.New()
	if *verbose {
		debug.SetEnabled(true)
	} else {
		debug.InitFromLogLevel("info")
	}
	if debug.Enabled() {
		logger.SetLevel(logrus.DebugLevel)
	}

	if *adminAddr != "" {
		serveAdmin(*adminAddr, logger)
		return
	}

	ctx := context.Background()
	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Exporter:       *traceExporter,
		ServiceName:    "codercli",
		OTLPEndpoint:   *traceEndpoint,
		JaegerEndpoint: *traceEndpoint,
	})
	if err != nil {
		log.Fatalf("setting up tracing: %v", err)
	}
	defer tp.Shutdown(ctx)

	var registryCfg config.RegistryConfig
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		registryCfg = cfg.Registry
	}

	digests := digest.NewRegistry(registryCfg.Digests)
	ciphers := cipheradapter.NewRegistry(registryCfg.Ciphers)
	bufPool := bufs.NewPool()

	cc := coder.Config{
		DataFrags:      *dataFrags,
		ParityFrags:    *parityFrags,
		ParityType:     *parityType,
		DigestType:     *digestType,
		FragDigestType: *fragDigestType,
		CompressType:   *compressType,
		CipherType:     *cipherType,
	}
	if err := cc.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var cipherKey []byte
	if *cipherKeyB64 != "" {
		k, err := base64.StdEncoding.DecodeString(*cipherKeyB64)
		if err != nil {
			log.Fatalf("decoding -cipher-key: %v", err)
		}
		cipherKey = k
	}

	inPaths := strings.Split(*inPath, ",")

	switch *direction {
	case "encode":
		if len(inPaths) > 1 {
			runBatchEncode(ctx, cc, inPaths, *outPath, *concurrency, bufPool, digests, ciphers, logger)
			return
		}
		runEncode(ctx, cc, *inPath, *outPath, bufPool, digests, ciphers, logger)
	case "decode":
		if *size <= 0 {
			log.Fatal("-size is required and must be > 0 for -direction=decode")
		}
		if len(inPaths) > 1 {
			runBatchDecode(ctx, cc, inPaths, *outPath, *size, cipherKey, *concurrency, bufPool, digests, ciphers, logger)
			return
		}
		runDecode(ctx, cc, *inPath, *outPath, *size, cipherKey, bufPool, digests, ciphers, logger)
	default:
		log.Fatalf("unknown -direction %q, want encode or decode", *direction)
	}
}

// jobSpan wraps a single Job.Run() in a span named by stage (e.g.
// "coder.encode") — one span per job, not per internal pipeline stage,
// since the stages run synchronously inside Run with no suspension points
// to straddle.
func jobSpan(ctx context.Context, stage string, j *coder.Job) {
	_, span := telemetry.Tracer("chunkcoder/codercli").Start(ctx, stage)
	defer span.End()
	j.Run()
}

func runEncode(ctx context.Context, cc coder.Config, inPath, outPath string, bufPool *bufs.Pool, digests *digest.Registry, ciphers *cipheradapter.Registry, logger *logrus.Logger) {
	raw, err := os.ReadFile(inPath)
	if err != nil {
		log.Fatalf("reading -in: %v", err)
	}

	cc.Direction = coder.Encode
	cc.Size = len(raw)
	j := &coder.Job{
		Cfg:     cc,
		Data:    bufs.FromOwned(raw, bufPool),
		Pool:    bufPool,
		Digests: digests,
		Ciphers: ciphers,
		Log:     logger,
	}
	jobSpan(ctx, "coder.encode", j)

	if j.Errors.HasErrors() {
		fmt.Fprintln(os.Stderr, "encode failed:")
		for _, s := range j.Errors.Strings() {
			fmt.Fprintln(os.Stderr, "  "+s)
		}
		os.Exit(1)
	}

	out, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		log.Fatalf("marshaling result: %v", err)
	}
	if err := writeOutput(outPath, out); err != nil {
		log.Fatalf("writing -out: %v", err)
	}
}

func runDecode(ctx context.Context, cc coder.Config, inPath, outPath string, size int, cipherKey []byte, bufPool *bufs.Pool, digests *digest.Registry, ciphers *cipheradapter.Registry, logger *logrus.Logger) {
	raw, err := os.ReadFile(inPath)
	if err != nil {
		log.Fatalf("reading -in: %v", err)
	}

	var wire coder.WireResult
	if err := json.Unmarshal(raw, &wire); err != nil {
		log.Fatalf("parsing -in as a coder JSON result: %v", err)
	}

	frags, err := wireFragmentsToJobInput(wire)
	if err != nil {
		log.Fatalf("decoding fragments: %v", err)
	}

	chunkDigest, err := base64DecodeOrNil(wire.Digest)
	if err != nil {
		log.Fatalf("decoding digest: %v", err)
	}
	authTag, err := base64DecodeOrNil(wire.CipherAuthTag)
	if err != nil {
		log.Fatalf("decoding cipher_auth_tag: %v", err)
	}
	if cipherKey == nil {
		cipherKey, err = base64DecodeOrNil(wire.CipherKey)
		if err != nil {
			log.Fatalf("decoding cipher_key: %v", err)
		}
	}

	cc.Direction = coder.Decode
	cc.Size = size
	j := &coder.Job{
		Cfg:           cc,
		Frags:         frags,
		Digest:        chunkDigest,
		CipherKey:     cipherKey,
		CipherAuthTag: authTag,
		CompressSize:  wire.CompressSize,
		Pool:          bufPool,
		Digests:       digests,
		Ciphers:       ciphers,
		Log:           logger,
	}
	jobSpan(ctx, "coder.decode", j)

	if j.Errors.HasErrors() {
		fmt.Fprintln(os.Stderr, "decode failed:")
		for _, s := range j.Errors.Strings() {
			fmt.Fprintln(os.Stderr, "  "+s)
		}
		os.Exit(1)
	}

	if err := writeOutput(outPath, j.OutData.Merge()); err != nil {
		log.Fatalf("writing -out: %v", err)
	}
}

// runBatchEncode dispatches one encode Job per path in inPaths across
// internal/pool, bounded by concurrency: a worker pool runs many jobs
// concurrently, each job isolated from the others. outDir must be a
// directory; each result is written as <base>.coder.json alongside its
// job's index-ordered completion.
func runBatchEncode(ctx context.Context, cc coder.Config, inPaths []string, outDir string, concurrency int, bufPool *bufs.Pool, digests *digest.Registry, ciphers *cipheradapter.Registry, logger *logrus.Logger) {
	if outDir == "" {
		log.Fatal("-out must name a directory when -in lists more than one path")
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		log.Fatalf("creating -out directory: %v", err)
	}

	tasks := make([]pool.Task, len(inPaths))
	for i, p := range inPaths {
		p := p
		tasks[i] = func(taskCtx context.Context) (interface{}, error) {
			raw, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", p, err)
			}
			jc := cc
			jc.Direction = coder.Encode
			jc.Size = len(raw)
			j := &coder.Job{
				Cfg:     jc,
				Data:    bufs.FromOwned(raw, bufPool),
				Pool:    bufPool,
				Digests: digests,
				Ciphers: ciphers,
				Log:     logger,
			}
			jobSpan(taskCtx, "coder.encode", j)
			if j.Errors.HasErrors() {
				return nil, fmt.Errorf("%s: %v", p, j.Errors.Strings())
			}
			return j, nil
		}
	}

	results := pool.New(concurrency, logger).Run(ctx, tasks)
	failed := 0
	for i, r := range results {
		dest := filepath.Join(outDir, filepath.Base(inPaths[i])+".coder.json")
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "job %d failed: %v\n", i, r.Err)
			failed++
			continue
		}
		out, err := json.MarshalIndent(r.Value.(*coder.Job), "", "  ")
		if err != nil {
			log.Fatalf("marshaling job %d result: %v", i, err)
		}
		if err := os.WriteFile(dest, out, 0644); err != nil {
			log.Fatalf("writing %s: %v", dest, err)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// runBatchDecode is runBatchEncode's decode counterpart: one decode Job per
// -in path, writing <base>.out alongside each.
func runBatchDecode(ctx context.Context, cc coder.Config, inPaths []string, outDir string, size int, cipherKey []byte, concurrency int, bufPool *bufs.Pool, digests *digest.Registry, ciphers *cipheradapter.Registry, logger *logrus.Logger) {
	if outDir == "" {
		log.Fatal("-out must name a directory when -in lists more than one path")
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		log.Fatalf("creating -out directory: %v", err)
	}

	tasks := make([]pool.Task, len(inPaths))
	for i, p := range inPaths {
		p := p
		tasks[i] = func(taskCtx context.Context) (interface{}, error) {
			raw, err := os.ReadFile(p)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", p, err)
			}
			var wire coder.WireResult
			if err := json.Unmarshal(raw, &wire); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", p, err)
			}
			frags, err := wireFragmentsToJobInput(wire)
			if err != nil {
				return nil, fmt.Errorf("%s: decoding fragments: %w", p, err)
			}
			chunkDigest, err := base64DecodeOrNil(wire.Digest)
			if err != nil {
				return nil, fmt.Errorf("%s: decoding digest: %w", p, err)
			}
			authTag, err := base64DecodeOrNil(wire.CipherAuthTag)
			if err != nil {
				return nil, fmt.Errorf("%s: decoding cipher_auth_tag: %w", p, err)
			}
			key := cipherKey
			if key == nil {
				key, err = base64DecodeOrNil(wire.CipherKey)
				if err != nil {
					return nil, fmt.Errorf("%s: decoding cipher_key: %w", p, err)
				}
			}

			jc := cc
			jc.Direction = coder.Decode
			jc.Size = size
			j := &coder.Job{
				Cfg:           jc,
				Frags:         frags,
				Digest:        chunkDigest,
				CipherKey:     key,
				CipherAuthTag: authTag,
				CompressSize:  wire.CompressSize,
				Pool:          bufPool,
				Digests:       digests,
				Ciphers:       ciphers,
				Log:           logger,
			}
			jobSpan(taskCtx, "coder.decode", j)
			if j.Errors.HasErrors() {
				return nil, fmt.Errorf("%s: %v", p, j.Errors.Strings())
			}
			return j.OutData.Merge(), nil
		}
	}

	results := pool.New(concurrency, logger).Run(ctx, tasks)
	failed := 0
	for i, r := range results {
		dest := filepath.Join(outDir, filepath.Base(inPaths[i])+".out")
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "job %d failed: %v\n", i, r.Err)
			failed++
			continue
		}
		if err := os.WriteFile(dest, r.Value.([]byte), 0644); err != nil {
			log.Fatalf("writing %s: %v", dest, err)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// wireFragmentsToJobInput rebuilds coder.Fragment values from a WireResult.
// The original chunk size is not part of the wire contract and must come
// from out-of-band metadata, hence the CLI's separate -size flag.
func wireFragmentsToJobInput(wire coder.WireResult) ([]coder.Fragment, error) {
	frags := make([]coder.Fragment, 0, len(wire.Frags))
	for _, wf := range wire.Frags {
		block, err := base64DecodeOrNil(wf.Block)
		if err != nil {
			return nil, err
		}
		digestBytes, err := base64DecodeOrNil(wf.Digest)
		if err != nil {
			return nil, err
		}
		role := coder.RoleData
		switch wf.Role {
		case "parity":
			role = coder.RoleParity
		case "lrc":
			role = coder.RoleLRC
		}
		frags = append(frags, coder.Fragment{
			Role:   role,
			Index:  wf.Index,
			Block:  bufs.FromOwned(block, nil),
			Digest: digestBytes,
		})
	}
	return frags, nil
}

func base64DecodeOrNil(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func serveAdmin(addr string, logger *logrus.Logger) {
	m := metrics.NewMetrics()

	h := admin.NewHandler(nil, nil).WithHardwareConfig(hardware.Config{EnableAESNI: true, EnableARMv8AES: true})
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down admin server")
		cancel()
	}()

	m.StartSystemMetricsCollector(ctx, 15*time.Second)
	logger.WithField("addr", addr).Info("serving admin endpoints")
	if err := admin.Serve(ctx, addr, h, logger); err != nil {
		log.Fatalf("admin server: %v", err)
	}
}
