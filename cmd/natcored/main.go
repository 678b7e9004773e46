// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Command natcored runs the stateful NAT64 translator daemon: it binds
// two NFQUEUE hooks (one per address family), drives every ingress
// packet through the core translation pipeline, writes translated
// packets out a raw link-layer socket, serves the administrative
// protocol on a Unix socket and exports Prometheus metrics over HTTP.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nat64.dev/core/internal/config"
	"nat64.dev/core/internal/hook"
	"nat64.dev/core/internal/linklayer"
	"nat64.dev/core/internal/logging"
	"nat64.dev/core/internal/metrics"
	"nat64.dev/core/internal/nat64/admin"
	"nat64.dev/core/internal/nat64/bib"
	"nat64.dev/core/internal/nat64/core"
	"nat64.dev/core/internal/nat64/filter"
	"nat64.dev/core/internal/nat64/frag"
	"nat64.dev/core/internal/nat64/pktstore"
	"nat64.dev/core/internal/nat64/pool4"
	"nat64.dev/core/internal/nat64/pool6"
	"nat64.dev/core/internal/nat64/transport"
	"nat64.dev/core/internal/nat64/translate"
)

func main() {
	configPath := flag.String("config", "/etc/natcored/natcored.hcl", "Path to HCL config file")
	iface := flag.String("iface", "eth0", "Interface to emit translated packets on")
	nextHopMAC := flag.String("next-hop-mac", "", "Link-layer address to send translated packets toward")
	v6Queue := flag.Uint("v6-queue", 64, "NFQUEUE number bound to the IPv6 ingress chain")
	v4Queue := flag.Uint("v4-queue", 65, "NFQUEUE number bound to the IPv4 ingress chain")
	metricsAddr := flag.String("metrics-addr", ":9464", "Address to serve /metrics on")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	if err := logging.SetLevel(*logLevel); err != nil {
		fatalf("invalid log level %q: %v", *logLevel, err)
	}
	log := logging.New("natcored")

	file, err := config.Load(*configPath)
	if err != nil {
		fatalf("loading config: %v", err)
	}
	store := config.NewStore(file.Config)

	tables := bib.NewManager()
	p4 := pool4.New(file.Config.Pool4Addresses()...)
	p6 := pool6.New(file.Config.Pool6Prefixes()...)
	pkts := pktstore.New(file.Config.Queue.MaxStoredPackets)

	c := core.New(tables, p4, p6, pkts, logging.New("core"))
	c.Translate = translate.Pipeline{Cfg: file.Config.ToTranslateConfig()}
	c.Frag = frag.Config{MinIPv6MTU: file.Config.Translation.MinIPv6MTU}

	collector := metrics.New()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	adminSrv := admin.NewServer(tables, p4, p6, store, logging.New("admin"))

	var nhMAC net.HardwareAddr
	if *nextHopMAC != "" {
		nhMAC, err = net.ParseMAC(*nextHopMAC)
		if err != nil {
			fatalf("invalid -next-hop-mac: %v", err)
		}
	}
	writer, err := linklayer.NewWriter(*iface, nhMAC)
	if err != nil {
		fatalf("opening link-layer writer: %v", err)
	}
	defer writer.Close()

	v6, err := hook.NewNFQueue(uint16(*v6Queue), 4096, logging.New("hook.v6"))
	if err != nil {
		fatalf("opening v6 NFQUEUE: %v", err)
	}
	defer v6.Close()
	v4, err := hook.NewNFQueue(uint16(*v4Queue), 4096, logging.New("hook.v4"))
	if err != nil {
		fatalf("opening v4 NFQUEUE: %v", err)
	}
	defer v4.Close()

	srv := &http.Server{Addr: *metricsAddr, Handler: collector.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := adminSrv.ListenAndServe(ctx, file.Config.AdminSocket); err != nil {
			log.Errorf("admin server: %v", err)
		}
	}()

	go runQueue(ctx, log, v6, transport.FamilyV6, c, store, writer, collector)
	go runQueue(ctx, log, v4, transport.FamilyV4, c, store, writer, collector)

	startExpirers(ctx, store, tables, collector, logging.New("expire"))
	go runPktstoreReaper(ctx, pkts, c, writer, collector, logging.New("pktstore"))
	go runGaugeUpdater(ctx, tables, pkts, collector)

	log.Infof("natcored started: iface=%s v6-queue=%d v4-queue=%d", *iface, *v6Queue, *v4Queue)
	<-ctx.Done()
	log.Infof("shutting down")
}

// runQueue drains one NFQUEUE, running every packet through the core
// pipeline and emitting any resulting packets via writer.
func runQueue(ctx context.Context, log *logging.Logger, q *hook.NFQueue, family transport.Family, c *core.Core, store *config.Store, writer *linklayer.Writer, collector *metrics.Collector) {
	handler := func(pkt []byte) (hook.Verdict, error) {
		h := store.Load()
		policy := h.Config().ToPolicy()
		h.Release()

		result := c.ProcessPacket(pkt, family, policy, time.Now())
		for _, out := range result.Outbound {
			var werr error
			if out.Family == transport.FamilyV4 {
				werr = writer.WriteV4(out.Packet)
			} else {
				werr = writer.WriteV6(out.Packet)
			}
			if werr != nil {
				log.Warnf("egress write failed: %v", werr)
			} else {
				collector.ObserveTranslated(out.Family.String())
			}
		}
		if result.Verdict.Reason != "" {
			collector.ObserveDropped(result.Verdict.Reason)
		}
		switch result.Verdict.Kind.String() {
		case "accept":
			return hook.VerdictAccept, nil
		case "stolen":
			return hook.VerdictStolen, nil
		default:
			return hook.VerdictDrop, nil
		}
	}
	if err := q.Run(ctx, handler); err != nil && ctx.Err() == nil {
		log.Errorf("queue run: %v", err)
	}
}

// startExpirers launches one goroutine for each of the four expirer classes
// sessions are placed on (spec.md §4.4): ClassUDP, ClassICMP, ClassTCPEst
// and ClassTCPTrans; ClassTCPSyn gets none, since no session is ever put on
// it. UDP and ICMP sessions only ever expire outright, while TCP's two classes
// drive tcpfsm.Transition through filter.TCPDecider's bounded keepalive
// probe retry. Each class's timeout and retry bound are re-read from store
// on every decision, so a GENERAL UPDATE takes effect without restarting
// these goroutines.
func startExpirers(ctx context.Context, store *config.Store, tables *bib.Manager, collector *metrics.Collector, log *logging.Logger) {
	onProbe := func(s *bib.Session) { collector.ObserveTCPProbe() }
	onUnreachable := func(s *bib.Session) {
		log.Debugf("tcp session %s expired in V4_INIT with no matching v6 SYN", s.V6Pair)
	}
	tcpDecide := func(s *bib.Session, now time.Time) bib.Decision {
		retries := loadPolicy(store).TCPProbeRetries
		return filter.TCPDecider(retries, onProbe, onUnreachable)(s, now)
	}

	go bib.RunClassExpirer(ctx, tables.Table(transport.L4UDP), bib.ClassUDP,
		func() time.Duration { return loadPolicy(store).UDPTimeout }, filter.SimpleDecider())
	go bib.RunClassExpirer(ctx, tables.Table(transport.L4ICMP), bib.ClassICMP,
		func() time.Duration { return loadPolicy(store).ICMPTimeout }, filter.SimpleDecider())
	go bib.RunClassExpirer(ctx, tables.Table(transport.L4TCP), bib.ClassTCPEst,
		func() time.Duration { return loadPolicy(store).TCPEstTimeout }, tcpDecide)
	go bib.RunClassExpirer(ctx, tables.Table(transport.L4TCP), bib.ClassTCPTrans,
		func() time.Duration { return loadPolicy(store).TCPTransTimeout }, tcpDecide)
}

func loadPolicy(store *config.Store) filter.Policy {
	h := store.Load()
	defer h.Release()
	return h.Config().ToPolicy()
}

// runPktstoreReaper walks the simultaneous-open packet store on
// bib.MinTimerSleep's cadence, turning every entry that timed out with no
// matching v6 SYN into a self-raised ICMPv4 Destination Unreachable
// (spec.md §4.5).
func runPktstoreReaper(ctx context.Context, pkts *pktstore.Store, c *core.Core, writer *linklayer.Writer, collector *metrics.Collector, log *logging.Logger) {
	ticker := time.NewTicker(bib.MinTimerSleep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, e := range pkts.Expire(time.Now()) {
			out := c.NotifyHostUnreachable(e)
			if len(out.Packet) == 0 {
				continue
			}
			if err := writer.WriteV4(out.Packet); err != nil {
				log.Warnf("writing simultaneous-open unreachable failed: %v", err)
				continue
			}
			collector.ObserveDropped("simultaneous-open timeout")
		}
	}
}

// runGaugeUpdater periodically republishes the BIB/session/packet-store
// occupancy gauges spec.md's COUNT administrative operation also exposes,
// so a scrape sees the same numbers without hitting the admin socket.
func runGaugeUpdater(ctx context.Context, tables *bib.Manager, pkts *pktstore.Store, collector *metrics.Collector) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for _, proto := range []transport.L4Protocol{transport.L4TCP, transport.L4UDP, transport.L4ICMP} {
			t := tables.Table(proto)
			collector.SetBIBEntries(proto.String(), t.CountBIB())
			collector.SetSessionEntries(proto.String(), t.CountSessions())
		}
		collector.SetStoredPackets(pkts.Len())
	}
}

func fatalf(format string, args ...any) {
	log := logging.New("natcored")
	log.Errorf(format, args...)
	os.Exit(1)
}
