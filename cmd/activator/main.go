// Command activator runs the DoubleZero off-chain reconciliation loop: it
// polls the serviceability program for pending entities and submits the
// instructions that advance them, on a fixed interval plus a periodic
// access-pass sweep.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/malbeclabs/doublezero-sub006/activator"
	"github.com/malbeclabs/doublezero-sub006/program"
	"github.com/malbeclabs/doublezero-sub006/sdk/ledger"
	"github.com/malbeclabs/doublezero-sub006/sdk/serviceability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		slog.Error("activator exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := activator.LoadConfig()
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	signer, err := loadSigner(cfg.SignerKeypairPath)
	if err != nil {
		return err
	}

	rpcClient := solanarpc.New(cfg.RPCEndpoint)
	adapter := ledger.NewAdapter(log, rpcClient, cfg.ProgramID, signer)

	reg := prometheus.NewRegistry()
	metrics := activator.NewMetrics(reg)

	reconciler := activator.NewReconciler(log, adapter, cfg.ProgramID, signer.PublicKey(), clockwork.NewRealClock(), metrics)
	prog := program.New(adapter, cfg.ProgramID)
	reconciler.Activate = newActivateFunc(prog, signer.PublicKey())
	reconciler.CheckAccessPass = func(ctx context.Context, userAddr, accessPassAddr solana.PublicKey, epoch, grace uint64) error {
		return prog.CheckUserAccessPass(ctx, signer.PublicKey(), userAddr, accessPassAddr, epoch, grace)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go serveMetrics(log, cfg.MetricsAddr, reg)

	log.Info("activator starting", "program", cfg.ProgramID.String(), "rpc", cfg.RPCEndpoint)
	return reconciler.Run(ctx, cfg.PollInterval, cfg.AccessPassInterval)
}

func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: slogLevel}))
}

func loadSigner(path string) (solana.PrivateKey, error) {
	if path == "" {
		return solana.NewWallet().PrivateKey, nil
	}
	return solana.PrivateKeyFromSolanaKeygenFile(path)
}

func serveMetrics(log *slog.Logger, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	log.Info("serving metrics", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("metrics server stopped", "error", err)
	}
}

// newActivateFunc binds computed reconciler actions to the actual
// program handlers. Link and user activation additionally need their
// resource-extension allocator accounts, which this closure loads fresh
// on every call since the reconciler itself is allocator-agnostic.
//
// Against a live validator, Program's handlers must be fronted by
// instruction builders submitted through Adapter.Submit rather than
// calling p.Store.Put directly (see DESIGN.md, "Known limitation" under
// sdk/ledger/adapter.go) —
// this wiring is shown against the in-memory Store used for local runs
// and tests.
func newActivateFunc(p *program.Program, signer solana.PublicKey) func(ctx context.Context, action activator.Action) error {
	return func(ctx context.Context, action activator.Action) error {
		switch action.Kind {
		case activator.ActionActivateDevice:
			return p.ActivateDevice(ctx, signer, action.Addr)
		case activator.ActionActivateLink:
			tunnelIDsAddr, err := serviceability.LinkTunnelIDBlockPDA(p.Program)
			if err != nil {
				return err
			}
			tunnelIDs, err := p.LoadIDAllocator(ctx, tunnelIDsAddr.Pubkey)
			if err != nil {
				return err
			}
			blockAddr, err := serviceability.DeviceTunnelBlockExtensionPDA(p.Program, solana.PublicKey(action.Link.SideA))
			if err != nil {
				return err
			}
			tunnelBlock, err := p.LoadIPBlockAllocator(ctx, blockAddr.Pubkey)
			if err != nil {
				return err
			}
			if err := p.ActivateLink(ctx, signer, action.Addr, tunnelIDs, tunnelBlock); err != nil {
				return err
			}
			if err := p.PersistResourceExtension(ctx, tunnelIDsAddr.Pubkey, tunnelIDs, nil, serviceability.ResourceTunnelIDs, p.Program, 0, tunnelIDsAddr.Bump); err != nil {
				return err
			}
			return p.PersistResourceExtension(ctx, blockAddr.Pubkey, nil, tunnelBlock, serviceability.ResourceDeviceTunnelBlock, solana.PublicKey(action.Link.SideA), 0, blockAddr.Bump)
		case activator.ActionActivateUser:
			blockAddr, err := serviceability.UserTunnelBlockExtensionPDA(p.Program, solana.PublicKey(action.User.Device))
			if err != nil {
				return err
			}
			dzIPs, err := p.LoadIPBlockAllocator(ctx, blockAddr.Pubkey)
			if err != nil {
				return err
			}
			tunnelIDsAddr, err := serviceability.LinkTunnelIDBlockPDA(p.Program)
			if err != nil {
				return err
			}
			tunnelIDs, err := p.LoadIDAllocator(ctx, tunnelIDsAddr.Pubkey)
			if err != nil {
				return err
			}
			return p.ActivateUserOnChainAllocation(ctx, signer, action.Addr, tunnelIDs, dzIPs)
		case activator.ActionCloseLink:
			tunnelIDsAddr, err := serviceability.LinkTunnelIDBlockPDA(p.Program)
			if err != nil {
				return err
			}
			tunnelIDs, err := p.LoadIDAllocator(ctx, tunnelIDsAddr.Pubkey)
			if err != nil {
				return err
			}
			blockAddr, err := serviceability.DeviceTunnelBlockExtensionPDA(p.Program, solana.PublicKey(action.Link.SideA))
			if err != nil {
				return err
			}
			tunnelBlock, err := p.LoadIPBlockAllocator(ctx, blockAddr.Pubkey)
			if err != nil {
				return err
			}
			if err := p.CloseAccountLink(ctx, signer, action.Addr, action.Receiver, tunnelIDs, tunnelBlock); err != nil {
				return err
			}
			if err := p.PersistResourceExtension(ctx, tunnelIDsAddr.Pubkey, tunnelIDs, nil, serviceability.ResourceTunnelIDs, p.Program, 0, tunnelIDsAddr.Bump); err != nil {
				return err
			}
			return p.PersistResourceExtension(ctx, blockAddr.Pubkey, nil, tunnelBlock, serviceability.ResourceDeviceTunnelBlock, solana.PublicKey(action.Link.SideA), 0, blockAddr.Bump)
		case activator.ActionCloseUser:
			return p.CloseAccountUser(ctx, signer, action.Addr, action.Receiver)
		case activator.ActionCloseDevice:
			return p.CloseAccountDevice(ctx, signer, action.Addr, action.Receiver)
		case activator.ActionUnlinkInterface:
			return p.UnlinkDeviceInterface(ctx, signer, action.Addr, action.InterfaceName)
		default:
			return nil
		}
	}
}
