package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"

	"github.com/wiktac/node-agent/internal/allowlist"
	"github.com/wiktac/node-agent/internal/classify"
	"github.com/wiktac/node-agent/internal/dockerproxy"
	"github.com/wiktac/node-agent/internal/log"
	"github.com/wiktac/node-agent/internal/state"
	"github.com/wiktac/node-agent/internal/telemetry"
)

// Alert and action texts written into the state document. Downstream
// dashboards match on these strings, so they are fixed.
const (
	failsafeAlertMsg = "MiningCore present but allowlist not set. Failsafe posture active."
	tickFailedMsg    = "Agent tick failed."
)

// tickOutcome collects everything one tick wants to write into the state
// document. intel stays nil when the container listing failed so the
// previous snapshot is preserved.
type tickOutcome struct {
	intel      *state.Intel
	actions    []state.Action
	alerts     []state.Alert
	containers int
	restarts   int
	err        error
}

// runOnce executes a single tick: inspect, act, persist.
func (w *Watchdog) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.tickTimeout())
	defer cancel()

	tickID := uuid.New().String()
	ctx = log.ContextWithTickID(ctx, tickID)

	tracer := telemetry.Tracer("wiktac.agent")
	ctx, span := tracer.Start(ctx, "agent.tick")
	defer span.End()

	logger := log.WithContext(ctx, w.logger)
	logger.Debug().Str("event", "agent.tick_start").Msg("tick started")

	start := time.Now()
	out := w.inspect(ctx, logger)
	w.persist(out, logger)
	duration := time.Since(start)

	now := time.Now()
	w.lastTick.Store(now.Unix())
	lastTickGauge.Set(float64(now.Unix()))
	tickDuration.Observe(duration.Seconds())
	if out.intel != nil {
		containersSeen.Set(float64(out.containers))
	}

	span.SetAttributes(telemetry.TickAttributes(tickID, w.armed, out.containers, out.restarts)...)

	if out.err != nil {
		ticksTotal.WithLabelValues("error").Inc()
		span.RecordError(out.err)
		span.SetStatus(codes.Error, out.err.Error())
		logger.Error().
			Err(out.err).
			Str("event", "agent.tick_failed").
			Dur("duration", duration).
			Msg("tick failed")
		return
	}

	w.lastSuccess.Store(now.Unix())
	ticksTotal.WithLabelValues("success").Inc()
	span.SetStatus(codes.Ok, "")
	logger.Debug().
		Str("event", "agent.tick_complete").
		Int("containers", out.containers).
		Int("restarts", out.restarts).
		Dur("duration", duration).
		Msg("tick complete")
}

// inspect lists containers, snapshots intel and, when armed, restarts
// crashed role containers. Restart order follows classify.Roles. A restart
// failure aborts the remaining roles; everything done up to that point is
// kept in the outcome.
func (w *Watchdog) inspect(ctx context.Context, logger zerolog.Logger) tickOutcome {
	var out tickOutcome

	payouts := allowlist.Load(w.allowlistPath)

	containers, err := w.proxy.Containers(ctx)
	if err != nil {
		out.err = fmt.Errorf("list containers: %w", err)
		return out
	}
	out.containers = len(containers)

	roles := classify.Classify(containers)
	out.intel = &state.Intel{
		Containers: snapshotContainers(containers),
		Roles:      snapshotRoles(roles),
	}
	for _, role := range classify.Roles {
		if _, ok := roles[role]; ok {
			rolePresent.WithLabelValues(string(role)).Set(1)
		} else {
			rolePresent.WithLabelValues(string(role)).Set(0)
		}
	}

	if !w.armed {
		return out
	}

	for _, role := range classify.Roles {
		c, ok := roles[role]
		if !ok || !classify.IsDown(c.State) {
			continue
		}

		if role == classify.RoleMiningCore && w.failsafeStopMining && !payouts.HasAny() {
			logger.Warn().
				Str("event", "agent.failsafe").
				Str(log.FieldRole, string(role)).
				Str(log.FieldContainerID, c.ID).
				Msg("failsafe engaged, refusing miningcore restart")
			out.alerts = append(out.alerts, state.Alert{
				TS:    time.Now().Unix(),
				Level: state.LevelCritical,
				Msg:   failsafeAlertMsg,
				Meta:  map[string]any{"role": string(role)},
			})
			failsafeTotal.Inc()
			continue
		}

		if err := w.proxy.Restart(ctx, c.ID); err != nil {
			out.err = fmt.Errorf("restart %s: %w", role, err)
			return out
		}
		logger.Info().
			Str("event", "agent.restart").
			Str(log.FieldRole, string(role)).
			Str(log.FieldContainerID, c.ID).
			Str(log.FieldContainerName, c.Name()).
			Msg("restarted crashed container")
		out.actions = append(out.actions, state.Action{
			TS:      time.Now().Unix(),
			Kind:    state.ActionRestart,
			Details: map[string]any{"role": string(role), "id": c.ID},
		})
		out.restarts++
		restartsTotal.WithLabelValues(string(role)).Inc()
	}

	return out
}

// persist applies the tick outcome to the state document. The state is
// written on every tick, failed ones included. last_run only advances on a
// fully successful tick.
func (w *Watchdog) persist(out tickOutcome, logger zerolog.Logger) {
	err := w.store.Mutate(func(doc *state.Document) {
		if out.intel != nil {
			doc.Intel = *out.intel
		}
		for _, a := range out.actions {
			doc.PushAction(a)
		}
		for _, a := range out.alerts {
			doc.PushAlert(a)
		}
		if out.err != nil {
			doc.AppendAlert(state.LevelError, tickFailedMsg, map[string]any{"error": out.err.Error()})
			return
		}
		doc.SetLastRun(time.Now().Unix())
	})
	if err != nil {
		logger.Error().
			Err(err).
			Str("event", "agent.state_write_failed").
			Msg("could not persist state")
	}
}

// snapshotContainers converts the proxy listing into the intel snapshot.
func snapshotContainers(containers []dockerproxy.Container) []state.ContainerInfo {
	out := make([]state.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		out = append(out, state.ContainerInfo{
			ID:     c.ID,
			Names:  c.Names,
			Image:  c.Image,
			State:  c.State,
			Status: c.Status,
		})
	}
	return out
}

// snapshotRoles converts the classification into the intel role map. Every
// known role gets an entry; roles without a container keep null fields.
func snapshotRoles(roles map[classify.Role]dockerproxy.Container) map[string]state.RoleInfo {
	out := make(map[string]state.RoleInfo, len(classify.Roles))
	for _, role := range classify.Roles {
		c, ok := roles[role]
		if !ok {
			out[string(role)] = state.RoleInfo{}
			continue
		}
		out[string(role)] = state.RoleInfo{
			ID:   optString(c.ID),
			Name: optString(c.Name()),
		}
	}
	return out
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
