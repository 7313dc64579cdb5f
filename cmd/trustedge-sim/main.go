// trustedge-sim runs both sides of the trust boundary in one process: a
// scripted non-secure client depositing requests into the shared mailbox
// queue, and the secure runtime draining, dispatching and replying. It is
// the integration harness for the mailbox protocol and the connection
// lifecycle.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/calyptra/trustedge/internal/config"
	"github.com/calyptra/trustedge/secure/bootdata"
	"github.com/calyptra/trustedge/secure/mailbox"
	"github.com/calyptra/trustedge/secure/platform"
	"github.com/calyptra/trustedge/secure/psa"
	"github.com/calyptra/trustedge/secure/spm"
)

const (
	sidEcho    = 0x4000_0100 // stateful echo service
	sidDigest  = 0x4000_0101 // stateless one-shot service
	nsClientID = -0x10

	attestPartition int32 = 3
)

func main() {
	configPath := flag.String("config", "", "platform manifest (TOML); built-in demo manifest when empty")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("manifest rejected")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && !*debug {
		log = log.Level(lvl)
	}

	if err := platform.ValidateLayout(); err != nil {
		log.Fatal().Err(err).Msg("shared region layout invalid")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("simulation failed")
	}
}

// loadConfig falls back to a demo manifest exercising both service kinds.
func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg := config.Default()
	cfg.Services = []*spm.Service{
		{SID: sidEcho, Name: "echo", Version: 2, Policy: spm.VersionRelaxed, NSClients: true},
		{SID: sidDigest, Name: "digest", Version: 1, Stateless: true, NSClients: true},
	}
	cfg.BootPolicy = []bootdata.PolicyEntry{
		{PartitionID: attestPartition, Major: bootdata.MajorIAS},
	}
	return cfg, nil
}

func run(cfg config.Config, log zerolog.Logger) error {
	// Shared area as one buffer: the boot-data window is raw TLV bytes, the
	// mailbox structures live as typed records on top.
	shared := make([]byte, platform.RegionSize)
	bootWindow, err := platform.BootDataWindow(shared)
	if err != nil {
		return err
	}
	var b bootdata.Builder
	b.Add(bootdata.TLVType(bootdata.MajorIAS, 1), []byte{0xde, 0xad, 0xbe, 0xef})
	b.Add(bootdata.TLVType(bootdata.MajorMBS, 1), []byte{0x01, 0x02})
	b.WriteTo(bootWindow)

	boot := bootdata.NewRegion(bootWindow)
	boot.Validate()

	backend := spm.NewQueueBackend(map[uint32]spm.ServiceHandler{
		sidEcho:   echoHandler,
		sidDigest: digestHandler,
	})
	core := spm.New(spm.NewRegistry(cfg.Services), spm.NewPool(cfg.PoolSize), backend, log)

	nsq := &mailbox.NSQueue{}
	link := mailbox.NewLocalLink(nsq, nil)
	translator := platform.NSClientWindow{
		OwnerMagic: mailbox.ClientIDOwnerMagic,
		Min:        cfg.NSClientIDMin,
		Max:        cfg.NSClientIDMax,
	}

	engine := mailbox.NewEngine(link, core, translator, log)
	if err := engine.Init(core); err != nil {
		return err
	}

	ns := &nsClient{queue: nsq, spm: core, log: log.With().Str("component", "ns-client").Logger()}

	// Framework and service version queries complete synchronously.
	fw := ns.roundTrip(0, mailbox.Message{Type: mailbox.CallFrameworkVersion, ClientID: nsClientID})
	ns.log.Info().Int32("version", int32(fw)).Msg("framework version")

	ver := ns.roundTrip(0, mailbox.Message{
		Type: mailbox.CallVersion, ClientID: nsClientID,
		Version: mailbox.VersionParams{SID: sidEcho},
	})
	ns.log.Info().Int32("version", int32(ver)).Msg("echo service version")

	// Stateful session: connect defers to the backend, the reply carries
	// the new handle.
	connectReply := ns.roundTripDeferred(1, mailbox.Message{
		Type: mailbox.CallConnect, ClientID: nsClientID,
		Connect: mailbox.ConnectParams{SID: sidEcho, Version: 1},
	}, backend)
	if connectReply < 0 {
		return fmt.Errorf("connect refused: %d", connectReply)
	}
	handle := psa.Handle(connectReply)
	ns.log.Info().Int32("handle", int32(handle)).Msg("session open")

	// One call with vectors both ways.
	out := make([]byte, 16)
	outVecs := []psa.OutVec{{Base: out, Len: uint32(len(out))}}
	callReply := ns.roundTripDeferred(2, mailbox.Message{
		Type: mailbox.CallInvoke, ClientID: nsClientID,
		Invoke: mailbox.InvokeParams{
			Handle:  handle,
			IPCType: psa.IPCCall,
			InVecs:  []psa.InVec{{Base: []byte("trustedge"), Len: 9}},
			InLen:   1,
			OutVecs: outVecs,
			OutLen:  1,
		},
	}, backend)
	ns.log.Info().Int32("status", int32(callReply)).
		Str("echo", string(out[:outVecs[0].Len])).Msg("echo call done")

	// One-shot call on the stateless service through its static handle.
	digestSvc, _ := core.Registry().Lookup(sidDigest)
	digestReply := ns.roundTripDeferred(3, mailbox.Message{
		Type: mailbox.CallInvoke, ClientID: nsClientID,
		Invoke: mailbox.InvokeParams{
			Handle: psa.StaticHandle(digestSvc.StaticIndex()), IPCType: psa.IPCCall,
			InVecs: []psa.InVec{{Base: []byte("measure me"), Len: 10}},
			InLen:  1,
		},
	}, backend)
	ns.log.Info().Int32("status", int32(digestReply)).Msg("digest call done")

	// Close completes through the null-handle reply convention.
	closeReply := ns.roundTripDeferred(0, mailbox.Message{
		Type: mailbox.CallClose, ClientID: nsClientID,
		Close: mailbox.CloseParams{Handle: handle},
	}, backend)
	ns.log.Info().Int32("status", int32(closeReply)).Msg("session closed")

	// Boot-data query on behalf of the attestation partition.
	buf := make([]byte, 64)
	if st := boot.Get(bootdata.MajorIAS, buf, attestPartition, bootdata.NewAccessPolicy(cfg.BootPolicy)); st != psa.Success {
		return fmt.Errorf("boot data query failed: %d", st)
	}
	ns.log.Info().Msg("boot data served")

	log.Info().Int("connections_in_use", core.Pool().InUse()).Msg("simulation complete")
	return nil
}

// nsClient is the scripted non-secure side. It owns the pending word and
// the slot payloads and only ever reads the replied word and reply areas.
type nsClient struct {
	queue *mailbox.NSQueue
	spm   *spm.SPM
	log   zerolog.Logger
}

// roundTrip deposits a message expected to complete synchronously within
// one drain pass and returns its reply word.
func (c *nsClient) roundTrip(slot uint8, msg mailbox.Message) psa.Status {
	c.queue.Slots[slot].Msg = msg
	c.queue.Status.MarkPending(slot)
	c.spm.HandlePending()
	if !c.queue.Status.TakeReplied().Has(slot) {
		c.log.Error().Uint8("slot", slot).Msg("no synchronous reply")
		return psa.ErrGenericError
	}
	return c.queue.Slots[slot].Reply.ReturnVal
}

// roundTripDeferred deposits a message, drains, then pumps the backend
// until the deferred reply lands.
func (c *nsClient) roundTripDeferred(slot uint8, msg mailbox.Message, backend *spm.QueueBackend) psa.Status {
	c.queue.Slots[slot].Msg = msg
	c.queue.Status.MarkPending(slot)
	c.spm.HandlePending()
	for !c.queue.Status.Replied().Has(slot) {
		if backend.Pump(c.spm) == 0 {
			c.log.Error().Uint8("slot", slot).Msg("reply never arrived")
			return psa.ErrGenericError
		}
	}
	c.queue.Status.TakeReplied()
	return c.queue.Slots[slot].Reply.ReturnVal
}

// echoHandler copies the first input vector into the first output vector.
func echoHandler(conn *spm.Connection) psa.Status {
	if len(conn.Msg.InVecs) == 0 || len(conn.Msg.OutVecs) == 0 {
		return psa.ErrInvalidArgument
	}
	in := conn.Msg.InVecs[0]
	out := &conn.Msg.OutVecs[0]
	n := copy(out.Base[:min(len(out.Base), int(out.Len))], in.Base[:in.Len])
	out.Len = uint32(n)
	return psa.Success
}

// digestHandler folds the input into one byte, standing in for a real
// measurement service.
func digestHandler(conn *spm.Connection) psa.Status {
	if len(conn.Msg.InVecs) == 0 {
		return psa.ErrInvalidArgument
	}
	var acc byte
	in := conn.Msg.InVecs[0]
	for _, b := range in.Base[:in.Len] {
		acc ^= b
	}
	// The folded byte rides back in the positive reply range.
	return psa.Status(acc)
}
