/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Zuplu/emailcheck"
	"github.com/Zuplu/emailcheck/cache"
	"github.com/Zuplu/emailcheck/internal/socketmap"
	"github.com/Zuplu/emailcheck/internal/utils/log"
	"github.com/Zuplu/emailcheck/internal/utils/netstring"

	valid "github.com/asaskevich/govalidator/v11"
	"github.com/neilotoole/jsoncolor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DEFAULT_LISTEN_ADDRESS = "127.0.0.1:8643"

var Version = "undefined"

type cliFlags struct {
	config    string
	check     string
	domain    string
	normalize string
	serve     bool
	listen    string
	metrics   string
	query     string
	purge     bool
	version   bool
}

func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := new(cliFlags)
	fs := flag.NewFlagSet("emailcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.config, "config", "", "Path to the YAML configuration (built-in defaults if empty)")
	fs.StringVar(&f.check, "check", "", "Check an email address and print a JSON report")
	fs.StringVar(&f.domain, "domain", "", "Run the domain policy for a domain")
	fs.StringVar(&f.normalize, "normalize", "", "Print the normalized form of an email address")
	fs.BoolVar(&f.serve, "serve", false, "Run the Postfix socketmap daemon")
	fs.StringVar(&f.listen, "listen", DEFAULT_LISTEN_ADDRESS, "Daemon address, host:port or unix:/path")
	fs.StringVar(&f.metrics, "metrics", "", "Serve Prometheus metrics on this address while the daemon runs")
	fs.StringVar(&f.query, "query", "", "Ask a running daemon to check an email address")
	fs.BoolVar(&f.purge, "purge", false, "Clear the cache (of the running daemon, if reachable)")
	fs.BoolVar(&f.version, "version", false, "Print the version and exit")
	return f, fs.Parse(args)
}

func printVersion(w io.Writer) {
	curYear, _, _ := time.Now().Date()
	fmt.Fprintf(w, "emailcheck (c) 2024-%d Zuplu — %s\nThis program is licensed under the MIT License.\n", curYear, Version)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if f.version {
		printVersion(stdout)
		return 0
	}

	settings, err := emailcheck.LoadConfig(f.config)
	if err != nil {
		log.Errorf("Error loading config: %v", err)
		return 1
	}
	engine, err := emailcheck.New(settings)
	if err != nil {
		log.Errorf("Invalid configuration: %v", err)
		return 1
	}
	defer engine.Close()
	emailcheck.Use(engine)

	switch {
	case f.query != "":
		return cliQuery(f.listen, f.query, stdout)
	case f.purge:
		return cliPurge(f.listen, engine, stdout)
	case f.serve:
		return serve(engine, f.listen, f.metrics)
	}

	restoreCache(engine)
	defer persistCache(engine)

	ctx := context.Background()
	switch {
	case f.check != "":
		report := engine.Report(ctx, f.check)
		if err := writeJSON(stdout, report); err != nil {
			log.Errorf("Could not write report: %v", err)
			return 1
		}
		if !report.Valid {
			return 3
		}
	case f.domain != "":
		if !valid.IsDNSName(f.domain) {
			log.Errorf("Invalid domain: %q", f.domain)
			return 1
		}
		ok, step := engine.DomainValidator().Decide(ctx, f.domain, engine.Options())
		result := map[string]any{"domain": f.domain, "valid": ok, "step": step}
		if err := writeJSON(stdout, result); err != nil {
			log.Errorf("Could not write report: %v", err)
			return 1
		}
		if !ok {
			return 3
		}
	case f.normalize != "":
		fmt.Fprintln(stdout, engine.Normalize(f.normalize))
	default:
		printVersion(stderr)
		fmt.Fprintln(stderr, "Usage: emailcheck [-config file] -check <email> | -domain <domain> | -normalize <email> | -serve | -query <email> | -purge")
		return 2
	}
	return 0
}

// writeJSON colors the output when it goes to a terminal.
func writeJSON(w io.Writer, v any) error {
	if f, ok := w.(*os.File); ok {
		if o, err := f.Stat(); err == nil && o.Mode()&os.ModeCharDevice != 0 {
			enc := jsoncolor.NewEncoder(f)
			enc.SetIndent("", "  ")
			enc.SetColors(jsoncolor.DefaultColors())
			return enc.Encode(v)
		}
	}
	return json.NewEncoder(w).Encode(v)
}

func memoryCache(engine *emailcheck.Engine) (*cache.MemoryCache, string) {
	file := engine.Settings().Cache.File
	mem, ok := engine.Cache().(*cache.MemoryCache)
	if !ok || file == "" {
		return nil, ""
	}
	return mem, file
}

func restoreCache(engine *emailcheck.Engine) {
	if mem, file := memoryCache(engine); mem != nil {
		if err := mem.LoadFile(file); err != nil {
			log.Warnf("Could not load cache from %q: %v", file, err)
		}
	}
}

func persistCache(engine *emailcheck.Engine) {
	if mem, file := memoryCache(engine); mem != nil {
		if err := mem.SaveFile(file); err != nil {
			log.Warnf("Could not save cache to %q: %v", file, err)
		}
	}
}

func serve(engine *emailcheck.Engine, address, metricsAddress string) int {
	printVersion(os.Stderr)
	restoreCache(engine)
	defer persistCache(engine)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metricsAddress != "" {
		reg := prometheus.NewRegistry()
		if err := emailcheck.RegisterMetrics(reg); err != nil {
			log.Errorf("Could not register metrics: %v", err)
			return 1
		}
		go serveMetrics(ctx, metricsAddress, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	l, err := socketmap.Listen(address)
	if err != nil {
		log.Errorf("Error starting socketmap server: %v", err)
		return 1
	}
	if err := socketmap.New(emailcheck.Default).Serve(ctx, l); err != nil {
		log.Errorf("Socketmap server stopped: %v", err)
		return 1
	}
	log.Info("Shutting down")
	return 0
}

func cliQuery(address, email string, stdout io.Writer) int {
	conn, err := socketmap.Dial(address)
	if err != nil {
		log.Errorf("Could not connect to socketmap instance. Is emailcheck -serve running? (%v)", err)
		return 1
	}
	defer conn.Close()
	conn.Write(netstring.Marshal("JSON " + email))
	raw, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		log.Errorf("Could not query %q. (%v)", email, err)
		return 1
	}
	var report emailcheck.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		log.Errorf("Could not query %q. (%v)", email, err)
		return 1
	}
	if err := writeJSON(stdout, report); err != nil {
		log.Errorf("Could not write report: %v", err)
		return 1
	}
	if !report.Valid {
		return 3
	}
	return 0
}

// cliPurge asks a running daemon first and falls back to the configured
// cache when none is reachable.
func cliPurge(address string, engine *emailcheck.Engine, stdout io.Writer) int {
	if conn, err := socketmap.Dial(address); err == nil {
		defer conn.Close()
		conn.Write(netstring.Marshal("PURGE"))
		io.Copy(stdout, conn)
		return 0
	}
	engine.ClearCache(context.Background())
	if mem, file := memoryCache(engine); mem != nil {
		if err := mem.SaveFile(file); err != nil {
			log.Errorf("Could not save cache to %q: %v", file, err)
			return 1
		}
	}
	fmt.Fprintln(stdout, "Cache purged.")
	return 0
}
