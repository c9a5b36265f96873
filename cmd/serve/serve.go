// Package serve implements cachemgrd's serve subcommand: it reads
// configuration from flags/env, builds the reference in-memory backend
// and a cache.Server, and runs the event loop until terminated.
// Grounded on dKV's cmd/serve/root.go, generalized from dKV's sharded
// store config to this core's single-backend Config.
package serve

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	cmdutil "github.com/objcache/cachemgr/cmd/util"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/objcache/cachemgr/cache"
	"github.com/objcache/cachemgr/cache/memcache"
	"github.com/objcache/cachemgr/metrics"
	"github.com/objcache/cachemgr/protocol"
	"github.com/objcache/cachemgr/protocol/codec"
)

const defaultMaxObjectSize = 256 * 1024 * 1024

// Cmd is the "serve" cobra command, added to the root command in cmd/root.go.
var Cmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the cachemgrd cache-manager server",
	Long:    "Start the cachemgrd external cache-manager server core. Configuration can be set via flags or CACHEMGRD_<FLAG> environment variables.",
	PreRunE: processConfig,
	RunE:    run,
}

var cfg cache.Config

func init() {
	cobra.OnInitialize(cmdutil.InitConfig)

	Cmd.PersistentFlags().String("locator", "unix=/var/run/cachemgrd.sock",
		cmdutil.WrapString("Endpoint to listen on, as unix=<path> or tcp=<host>:<port>"))
	Cmd.PersistentFlags().Uint64("max-object-size", defaultMaxObjectSize,
		cmdutil.WrapString("Largest attachment accepted on a single StoreReq/ReadReq, in bytes"))
	Cmd.PersistentFlags().Int("num-workers", 1,
		cmdutil.WrapString("Stored in the server config only; not passed to the backend, and the event loop itself is always single-threaded"))
	Cmd.PersistentFlags().String("capabilities", "refcount,shrink,info,list,all-hashes,detach",
		cmdutil.WrapString("Comma-separated capabilities to advertise in the handshake"))
	Cmd.PersistentFlags().String("codec", "binary",
		cmdutil.WrapString("Wire codec to use: binary, gob, or json"))
	Cmd.PersistentFlags().String("metrics-addr", "",
		cmdutil.WrapString("Address for the debug HTTP server (/metrics, pprof). Empty disables it"))
	Cmd.PersistentFlags().String("log-level", "info",
		cmdutil.WrapString("Log verbosity: debug, info, warn, or error"))
	Cmd.PersistentFlags().String("name", "cachemgrd",
		cmdutil.WrapString("Name advertised in the handshake reply"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	caps, err := parseCapabilities(viper.GetString("capabilities"))
	if err != nil {
		return err
	}
	c, ok := codec.ByName(viper.GetString("codec"))
	if !ok {
		return fmt.Errorf("invalid codec %q (want binary, gob, or json)", viper.GetString("codec"))
	}
	level, err := cache.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}

	cfg = cache.Config{
		Name:            viper.GetString("name"),
		ProtocolVersion: 1,
		MaxObjectSize:   viper.GetUint64("max-object-size"),
		Capabilities:    caps,
		NumWorkers:      viper.GetInt("num-workers"),
		Locator:         viper.GetString("locator"),
		Codec:           c,
		Log:             cache.NewLogger("cachemgrd", level, os.Stderr),
	}
	return nil
}

var capabilityNames = map[string]protocol.Capability{
	"refcount":   protocol.CapRefcount,
	"shrink":     protocol.CapShrink,
	"info":       protocol.CapInfo,
	"list":       protocol.CapList,
	"all-hashes": protocol.CapAllHashes,
	"detach":     protocol.CapDetach,
}

func parseCapabilities(list string) (protocol.CapabilitySet, error) {
	var caps protocol.CapabilitySet
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		bit, ok := capabilityNames[name]
		if !ok {
			return 0, fmt.Errorf("unknown capability %q", name)
		}
		caps = caps.With(bit)
	}
	return caps, nil
}

func run(_ *cobra.Command, _ []string) error {
	backend := memcache.NewMemory()
	defer backend.Close()

	registry := metrics.NewRegistry()
	latencies := metrics.NewLatencies()
	cfg.Metrics = registry
	cfg.Latencies = latencies

	srv, err := cache.NewServer(cfg, backend)
	if err != nil {
		return err
	}

	var debug *metrics.DebugServer
	if addr := viper.GetString("metrics-addr"); addr != "" {
		debug = metrics.NewDebugServer(addr, registry, srv.Stats().Snapshot)
		go func() {
			if err := debug.Serve(); err != nil {
				cfg.Log.Errorf("debug server: %v", err)
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for s := range sig {
			switch s {
			case syscall.SIGHUP:
				cfg.Log.Infof("received SIGHUP, asking clients to detach")
				if err := srv.AskToDetach(); err != nil {
					cfg.Log.Errorf("AskToDetach: %v", err)
				}
			default:
				cfg.Log.Infof("received %v, terminating", s)
				if err := srv.Terminate(); err != nil {
					cfg.Log.Errorf("Terminate: %v", err)
				}
				return
			}
		}
	}()

	err = srv.Serve()
	if debug != nil {
		debug.Close()
	}
	return err
}
