package executor

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-habit-mail/internal/domain"
	"github.com/tbourn/go-habit-mail/internal/intent"
	"github.com/tbourn/go-habit-mail/internal/repo"
)

// affirm runs the user's newest unresolved suggestion and resolves it. A
// suggestion whose type cannot be executed is expired so it is never matched
// again.
func (e *Executor) affirm(ctx context.Context, req Request) []Result {
	p, err := repo.LatestOpenPending(ctx, e.DB, req.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return []Result{{Action: intent.TypeAffirm, Success: false, Detail: "No pending action to confirm"}}
	}
	if err != nil {
		return []Result{storeFailure(intent.TypeAffirm, "pending action", err)}
	}

	var inner []Result
	switch v := decodePending(p).(type) {
	case *intent.AddHabit:
		inner = e.addHabits(ctx, req.UserID, v)
	case *intent.RemoveHabit:
		inner = e.removeHabits(ctx, req.UserID, v)
	default:
		log.Warn().Str("component", "executor").Str("pending.id", p.ID).Str("action_type", p.ActionType).Msg("expiring unknown pending action")
		if err := repo.ResolvePending(ctx, e.DB, p.ID, domain.ResolvedExpired, e.Now()); err != nil {
			log.Error().Str("component", "executor").Err(err).Msg("expire pending action")
		}
		return []Result{{Action: intent.TypeAffirm, Success: false, Detail: "That suggestion can no longer be applied"}}
	}

	if err := repo.ResolvePending(ctx, e.DB, p.ID, domain.ResolvedAffirmed, e.Now()); err != nil {
		log.Error().Str("component", "executor").Err(err).Msg("resolve pending action")
	}
	out := make([]Result, 0, len(inner))
	for _, r := range inner {
		out = append(out, Result{Action: intent.TypeAffirm, Success: r.Success, Detail: "Confirmed: " + r.Detail})
	}
	if len(out) == 0 {
		out = append(out, Result{Action: intent.TypeAffirm, Success: true, Detail: "Confirmed"})
	}
	return out
}

// decodePending returns the stored intent when it matches the row's action
// type, or nil.
func decodePending(p *domain.PendingAction) intent.Intent {
	in, err := intent.Decode(json.RawMessage(p.ActionData))
	if err != nil || string(in.Type()) != p.ActionType {
		return nil
	}
	return in
}

// decline resolves the newest suggestion as declined. It succeeds whether or
// not one was open.
func (e *Executor) decline(ctx context.Context, req Request) Result {
	p, err := repo.LatestOpenPending(ctx, e.DB, req.UserID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return Result{Action: intent.TypeDecline, Success: true, Detail: "User said no"}
	case err != nil:
		log.Error().Str("component", "executor").Err(err).Msg("lookup pending action")
		return Result{Action: intent.TypeDecline, Success: true, Detail: "User said no"}
	}
	if err := repo.ResolvePending(ctx, e.DB, p.ID, domain.ResolvedDeclined, e.Now()); err != nil {
		log.Error().Str("component", "executor").Err(err).Msg("decline pending action")
	}
	return Result{Action: intent.TypeDecline, Success: true, Detail: "Declined suggestion: " + p.ActionType}
}
