package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dormstack/dormops_client/apiclient"
	"github.com/dormstack/dormops_client/config"
	"github.com/dormstack/dormops_client/fixtureserver"
	"github.com/dormstack/dormops_client/models"
	"github.com/dormstack/dormops_client/utils"
)

const defaultFixturePort = "8085"

// engine bundles the wired reconciliation stack for one process.
type engine struct {
	logger   *logrus.Logger
	client   *apiclient.Client
	cache    *models.DraftCache
	store    *models.SessionStore
	recorder *models.Recorder
	poller   *models.SessionPoller
}

func main() {
	root := &cobra.Command{
		Use:   "dormops",
		Short: "Dormitory fridge inspection client",
	}

	root.AddCommand(runCmd())
	root.AddCommand(slotsCmd())
	root.AddCommand(startCmd())
	root.AddCommand(actCmd())
	root.AddCommand(undoCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(showCmd())
	root.AddCommand(submitCmd())
	root.AddCommand(cancelCmd())
	root.AddCommand(schedulesCmd())
	root.AddCommand(reallocationCmd())
	root.AddCommand(purgeDraftsCmd())
	root.AddCommand(fixtureServerCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// actorContext carries the kiosk operator's identity from env into the
// request context, the same fields production reads from the auth token.
func actorContext() context.Context {
	ctx := context.Background()
	if token := os.Getenv("DORMOPS_TOKEN"); token != "" {
		ctx = utils.SetTokenInContext(ctx, token)
	}
	if actorId := os.Getenv("DORMOPS_ACTOR_ID"); actorId != "" {
		ctx = utils.SetActorIdInContext(ctx, actorId)
	}
	if actorName := os.Getenv("DORMOPS_ACTOR_NAME"); actorName != "" {
		ctx = utils.SetActorNameInContext(ctx, actorName)
	}
	roles := []string{utils.RoleFloorManager}
	if raw := os.Getenv("DORMOPS_ACTOR_ROLES"); raw != "" {
		roles = strings.Split(raw, ",")
	}
	ctx = utils.SetActorRolesInContext(ctx, roles)
	for _, role := range roles {
		if strings.TrimSpace(role) == utils.RoleAdmin {
			ctx = utils.SetIsAdminInContext(ctx, true)
		}
	}
	if raw := os.Getenv("DORMOPS_FLOOR_NO"); raw != "" {
		if floor, err := strconv.Atoi(raw); err == nil {
			ctx = utils.SetFloorNoInContext(ctx, floor)
		}
	}
	return utils.SetCorrelationIdInContext(ctx, uuid.NewString())
}

// buildEngine connects local storage and wires the reconciliation stack.
// Redis is optional: when it cannot be reached the engine runs primary-only
// and skips the legacy draft migration path.
func buildEngine() (*engine, error) {
	logger := config.GetLogger()

	config.ConnectDraftStoreWithRetry()
	db := config.GetDB()
	if db == nil {
		return nil, fmt.Errorf("draft store unavailable at %s", config.DraftDBPath())
	}
	if err := models.MigrateTable(); err != nil {
		return nil, fmt.Errorf("migrate draft store: %w", err)
	}

	var secondary models.DraftStore
	if config.ConnectRedisWithRetry(3) {
		secondary = &models.RedisDraftStore{Client: config.GetRedisDB(), TTL: models.DraftRetention}
	} else {
		logger.Warn("redis unavailable, running primary-only (no legacy draft migration)")
	}

	cache := models.NewDraftCache(&models.GormDraftStore{DB: db}, secondary, logger)
	store := models.NewSessionStore(cache, logger)
	client := apiclient.New()
	return &engine{
		logger:   logger,
		client:   client,
		cache:    cache,
		store:    store,
		recorder: models.NewRecorder(client, store, logger),
		poller:   models.NewSessionPoller(client, store, logger),
	}, nil
}

// resumeActive binds the engine to the server's active session, hydrating
// local drafts. Returns false when no session is in progress.
func (e *engine) resumeActive(ctx context.Context) (bool, error) {
	session, err := e.client.FetchActiveSession(ctx)
	if err != nil {
		return false, err
	}
	if session == nil {
		return false, nil
	}
	if err := e.recorder.OpenSession(ctx, session); err != nil {
		return false, err
	}
	return true, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Resume the active session and keep it reconciled until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			ctx := actorContext()

			sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stopSignals()

			// Startup housekeeping: drop drafts past retention.
			go func() {
				stats, err := eng.cache.PurgeStale(ctx, models.DraftRetention)
				if err != nil {
					config.LogError(eng.logger, "main.go", "run", "purge", nil, err)
					return
				}
				eng.logger.WithFields(logrus.Fields{"scanned": stats.Scanned, "purged": stats.Purged}).Info("draft purge pass done")
			}()

			resumed, err := eng.resumeActive(ctx)
			if err != nil {
				return err
			}
			if !resumed {
				eng.logger.Info("no active session; waiting for one to start elsewhere")
			}

			eng.poller.Run(sigCtx)
			return nil
		},
	}
}

func slotsCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List fridge compartments",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.New()
			slots, err := client.ListSlots(actorContext(), activeOnly)
			if err != nil {
				return err
			}
			for _, slot := range slots {
				state := string(slot.ResourceStatus)
				if slot.Locked {
					state += " LOCKED"
				}
				capacity := "-"
				if slot.Capacity != nil {
					occupied := 0
					if slot.OccupiedCount != nil {
						occupied = *slot.OccupiedCount
					}
					capacity = fmt.Sprintf("%d/%d", occupied, *slot.Capacity)
				}
				fmt.Printf("%-12s %2d%-2s floor %d  %-18s %s\n", slot.SlotId, slot.SlotIndex, slot.SlotLetter, slot.FloorNo, state, capacity)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active compartments")
	return cmd
}

func startCmd() *cobra.Command {
	var slotId, scheduleId string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an inspection session on a compartment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if slotId == "" {
				return fmt.Errorf("--slot is required")
			}
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			ctx := actorContext()

			slots, err := eng.client.ListSlots(ctx, false)
			if err != nil {
				return err
			}
			var slot *models.Slot
			for i := range slots {
				if slots[i].SlotId == slotId {
					slot = &slots[i]
					break
				}
			}
			if slot == nil {
				return fmt.Errorf("unknown slot %s", slotId)
			}

			session, err := eng.recorder.StartSession(ctx, *slot, scheduleId)
			if err != nil {
				return err
			}
			fmt.Printf("session %s started on slot %s (%d items)\n", session.SessionId, session.SlotId, len(session.Items))
			return nil
		},
	}
	cmd.Flags().StringVar(&slotId, "slot", "", "compartment id")
	cmd.Flags().StringVar(&scheduleId, "schedule", "", "planned schedule id to link")
	return cmd
}

func actCmd() *cobra.Command {
	var itemId, action, note string
	cmd := &cobra.Command{
		Use:   "act",
		Short: "Record an action against an item of the active session",
		RunE: func(cmd *cobra.Command, args []string) error {
			actionType := models.ActionType(action)
			if !actionType.Valid() {
				return fmt.Errorf("unknown action %q (expected one of %v)", action, models.AllActionTypes())
			}
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			ctx := actorContext()
			resumed, err := eng.resumeActive(ctx)
			if err != nil {
				return err
			}
			if !resumed {
				return fmt.Errorf("no active session")
			}

			var item *models.InspectionItem
			session := eng.store.Session()
			for i := range session.Items {
				if session.Items[i].UnitId == itemId {
					item = &session.Items[i]
					break
				}
			}
			if item == nil {
				return fmt.Errorf("item %s is not part of the active session", itemId)
			}

			entry, err := eng.recorder.SubmitAction(ctx, actionType, item, note)
			if err != nil {
				if entry != nil {
					// Confirmed remotely, draft write failed. The next
					// reconciliation restores it as a synthetic row.
					fmt.Printf("action recorded (entry %s), local draft not saved: %v\n", entry.Id, err)
					return nil
				}
				return err
			}
			fmt.Printf("recorded %s on %s (entry %s)\n", actionType, itemId, entry.Id)
			return nil
		},
	}
	cmd.Flags().StringVar(&itemId, "item", "", "unit id")
	cmd.Flags().StringVar(&action, "action", "", "action type")
	cmd.Flags().StringVar(&note, "note", "", "optional note")
	return cmd
}

func undoCmd() *cobra.Command {
	var entryId string
	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Revert a recorded action by draft entry id",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			ctx := actorContext()
			resumed, err := eng.resumeActive(ctx)
			if err != nil {
				return err
			}
			if !resumed {
				return fmt.Errorf("no active session")
			}
			for _, entry := range eng.store.Entries() {
				if entry.Id == entryId {
					if err := eng.recorder.UndoAction(ctx, entry); err != nil {
						return err
					}
					fmt.Printf("entry %s reverted\n", entryId)
					return nil
				}
			}
			return fmt.Errorf("no draft entry %s on the active session", entryId)
		},
	}
	cmd.Flags().StringVar(&entryId, "entry", "", "draft entry id")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active session, its rollup, and local draft entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			ctx := actorContext()
			resumed, err := eng.resumeActive(ctx)
			if err != nil {
				return err
			}
			if !resumed {
				fmt.Println("no active session")
				return nil
			}
			if _, err := eng.store.Reconcile(ctx); err != nil {
				config.LogError(eng.logger, "main.go", "status", "reconcile", nil, err)
			}

			session := eng.store.Session()
			metrics := session.Metrics()
			fmt.Printf("session %s on slot %s (floor %d), started %s\n",
				session.SessionId, session.SlotId, session.FloorNo, session.StartedAt.Local().Format(time.RFC822))
			fmt.Printf("pass %d  warn %d  disposed %d (registered %d, unregistered %d)  total %d\n",
				metrics.PassCount, metrics.WarnCount, metrics.DisposalCount,
				metrics.RegisteredDisposalCount, metrics.UnregisteredDisposalCount, metrics.TotalActions)
			fmt.Printf("items remaining: %d\n", eng.store.RemainingItemCount())
			for _, entry := range eng.store.Entries() {
				origin := " "
				if entry.Origin == models.DraftOriginSync {
					origin = "~"
				}
				fmt.Printf("  %s %-22s %-24s %s\n", origin, entry.ActionType, entry.Id,
					time.UnixMilli(entry.Time).Local().Format(time.Kitchen))
			}
			return nil
		},
	}
}

func showCmd() *cobra.Command {
	var sessionId string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a past session read-only by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionId == "" {
				return fmt.Errorf("--session is required")
			}
			client := apiclient.New()
			session, err := client.FetchSession(actorContext(), sessionId)
			if err != nil {
				return err
			}
			metrics := session.Metrics()
			fmt.Printf("session %s on slot %s (floor %d): %s\n", session.SessionId, session.SlotId, session.FloorNo, session.Status)
			if session.EndedAt != nil {
				fmt.Printf("ended %s\n", session.EndedAt.Local().Format(time.RFC822))
			}
			fmt.Printf("pass %d  warn %d  disposed %d  total %d\n",
				metrics.PassCount, metrics.WarnCount, metrics.DisposalCount, metrics.TotalActions)
			if session.Notes != nil {
				fmt.Printf("notes: %s\n", *session.Notes)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionId, "session", "", "session id")
	return cmd
}

func submitCmd() *cobra.Command {
	var notes string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Finalize the active session",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			ctx := actorContext()
			resumed, err := eng.resumeActive(ctx)
			if err != nil {
				return err
			}
			if !resumed {
				return fmt.Errorf("no active session")
			}
			session, err := eng.recorder.SubmitSession(ctx, notes)
			if err != nil {
				return err
			}
			fmt.Printf("session %s submitted\n", session.SessionId)
			return nil
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "closing notes")
	return cmd
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Discard the active session",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			ctx := actorContext()
			resumed, err := eng.resumeActive(ctx)
			if err != nil {
				return err
			}
			if !resumed {
				return fmt.Errorf("no active session")
			}
			sessionId := eng.store.Session().SessionId
			if err := eng.recorder.CancelSession(ctx); err != nil {
				return err
			}
			fmt.Printf("session %s canceled\n", sessionId)
			return nil
		},
	}
}

func schedulesCmd() *cobra.Command {
	var next bool
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "List planned inspections",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.New()
			ctx := actorContext()
			if next {
				schedule, err := client.NextSchedule(ctx)
				if err != nil {
					return err
				}
				if schedule == nil {
					fmt.Println("no planned inspections")
					return nil
				}
				printSchedule(*schedule)
				return nil
			}
			schedules, err := client.ListSchedules(ctx, "", 0)
			if err != nil {
				return err
			}
			for _, schedule := range schedules {
				printSchedule(schedule)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&next, "next", false, "only the soonest planned inspection")
	return cmd
}

func printSchedule(schedule models.InspectionSchedule) {
	title := ""
	if schedule.Title != nil {
		title = *schedule.Title
	}
	fmt.Printf("%-12s %-20s %-10s %s\n", schedule.ScheduleId,
		schedule.ScheduledAt.Local().Format(time.RFC822), schedule.Status, title)
}

func reallocationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reallocation",
		Short: "Admin room-to-compartment reallocation",
	}

	var floor int
	preview := &cobra.Command{
		Use:   "preview",
		Short: "Preview the reallocation plan for a floor",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.New()
			plan, err := client.PreviewReallocation(actorContext(), floor)
			if err != nil {
				return err
			}
			for _, assignment := range plan.Assignments {
				fmt.Printf("%-12s <- %s\n", assignment.CompartmentId, strings.Join(assignment.RoomIds, ", "))
				for _, warning := range plan.Warnings[assignment.CompartmentId] {
					fmt.Printf("             warning: %s\n", warning)
				}
			}
			return nil
		},
	}
	preview.Flags().IntVar(&floor, "floor", 0, "floor number")

	var applyFloor int
	apply := &cobra.Command{
		Use:   "apply",
		Short: "Apply the previewed plan, one compartment at a time",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := config.GetLogger()
			client := apiclient.New()
			ctx := actorContext()
			previewed, err := client.PreviewReallocation(ctx, applyFloor)
			if err != nil {
				return err
			}
			plan := models.ReallocationPlan{Floor: applyFloor, Assignments: previewed.Assignments}
			result, err := models.ApplyReallocationPlan(ctx, client, plan, logger)
			if err != nil {
				return err
			}
			fmt.Printf("applied %d compartments, %d room assignments\n", result.AffectedCompartments, result.CreatedAssignments)
			for compartmentId, applyErr := range result.Failed {
				fmt.Printf("  failed %s: %v\n", compartmentId, applyErr)
			}
			if len(result.Failed) > 0 {
				return fmt.Errorf("%d compartments failed", len(result.Failed))
			}
			return nil
		},
	}
	apply.Flags().IntVar(&applyFloor, "floor", 0, "floor number")

	cmd.AddCommand(preview)
	cmd.AddCommand(apply)
	return cmd
}

func purgeDraftsCmd() *cobra.Command {
	var retentionHours int
	cmd := &cobra.Command{
		Use:   "purge-drafts",
		Short: "Delete stale or corrupt local drafts",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			stats, err := eng.cache.PurgeStale(context.Background(), time.Duration(retentionHours)*time.Hour)
			if err != nil {
				return err
			}
			fmt.Printf("scanned %d, purged %d (stale %d, corrupt %d)\n", stats.Scanned, stats.Purged, stats.Stale, stats.Corrupt)
			return nil
		},
	}
	cmd.Flags().IntVar(&retentionHours, "retention-hours", int(models.DraftRetention.Hours()), "draft retention window")
	return cmd
}

func fixtureServerCmd() *cobra.Command {
	var port, seedPath string
	cmd := &cobra.Command{
		Use:   "fixture-server",
		Short: "Run the in-memory backend stand-in",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := fixtureserver.LoadSeed(seedPath)
			if err != nil {
				return err
			}
			logger := config.GetLogger()
			gin.SetMode(gin.ReleaseMode)
			server := fixtureserver.New(seed, logger)
			logger.WithField("port", port).Info("fixture server listening")
			return server.Router().Run(":" + port)
		},
	}
	cmd.Flags().StringVar(&port, "port", defaultFixturePort, "listen port")
	cmd.Flags().StringVar(&seedPath, "seed", os.Getenv("DORMOPS_FIXTURE_SEED"), "YAML seed file")
	return cmd
}
