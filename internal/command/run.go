package command

import (
	"context"
	"errors"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kyl3c/claude-code-claw/internal/agent"
	"github.com/kyl3c/claude-code-claw/internal/chat"
	"github.com/kyl3c/claude-code-claw/internal/config"
	"github.com/kyl3c/claude-code-claw/internal/dispatch"
	"github.com/kyl3c/claude-code-claw/internal/guard"
	"github.com/kyl3c/claude-code-claw/internal/heartbeat"
	"github.com/kyl3c/claude-code-claw/internal/logging"
	"github.com/kyl3c/claude-code-claw/internal/sched"
	"github.com/kyl3c/claude-code-claw/internal/session"
	"github.com/kyl3c/claude-code-claw/internal/transcript"
	"github.com/kyl3c/claude-code-claw/internal/workspace"
)

func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the relay daemon",
		Long: `Run the relay daemon until interrupted.

Required environment:
  CLAW_GATEWAY_URL    websocket URL of the chat gateway
  CLAW_SUBSCRIPTION   subscription / queue identity to attach to
  CLAW_CREDENTIALS    path to a file holding the gateway token

Optional:
  CLAW_MODEL              claude model identifier
  CLAW_WORKSPACE          document directory (default ~/.claw)
  CLAW_INVOKE_TIMEOUT     claude invocation timeout (default 5m)
  CLAW_HEARTBEAT_CHAT     conversation for heartbeat check-ins (unset disables)
  CLAW_HEARTBEAT_INTERVAL tick interval (default 30m)
  CLAW_HEARTBEAT_HOURS    active window, e.g. 8-22 (default 8-22)
  CLAW_HEARTBEAT_TZ       window timezone (default UTC)
  CLAW_LOG_DIR            log directory (default stderr)
  CLAW_LOG_LEVEL          debug, info, warn, or error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}
}

func runDaemon(parent context.Context) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}

	logging.Init(logging.Config{LogDir: cfg.LogDir, Level: cfg.LogLevel})
	defer logging.Shutdown()
	log := logging.Logger()

	token, err := cfg.ReadCredential()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ws, err := workspace.Open(cfg.Workspace)
	if err != nil {
		return err
	}
	defer ws.Close()

	sessions, err := session.Open(filepath.Join(cfg.Workspace, "sessions.json"))
	if err != nil {
		return err
	}
	schedules, err := sched.OpenStore(filepath.Join(cfg.Workspace, "schedule.json"))
	if err != nil {
		return err
	}

	cli, err := agent.NewCLI(cfg.Workspace, cfg.Model, cfg.InvokeTimeout)
	if err != nil {
		return err
	}
	bridge := agent.NewBridge(cli, sessions)

	gateway, err := chat.Dial(ctx, cfg.GatewayURL, cfg.Subscription, token)
	if err != nil {
		return err
	}
	defer gateway.Close()

	sender := chat.NewSender(gateway)
	g := guard.New()

	var hb *heartbeat.Controller
	if cfg.Heartbeat != nil {
		pruner, err := transcript.NewPruner(cfg.Workspace, "")
		if err != nil {
			return err
		}
		hb = heartbeat.New(cfg.Heartbeat, bridge, ws, pruner, sender, g)
	}

	// A typed nil would survive the interface conversion and look non-nil
	// to the dispatcher.
	var status dispatch.Statuser
	if hb != nil {
		status = hb
	}
	dispatcher := dispatch.New(bridge, schedules, ws, status, sender, g)

	log.Info("claw running",
		"workspace", cfg.Workspace,
		"gateway", cfg.GatewayURL,
		"heartbeat", cfg.Heartbeat != nil,
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return dispatcher.Run(ctx, gateway.Events()) })
	group.Go(func() error { return sched.New(schedules, bridge, sender, g).Run(ctx) })
	if hb != nil {
		group.Go(func() error { return hb.Run(ctx) })
	}

	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		log.Info("claw stopped")
		return nil
	}
	return err
}
