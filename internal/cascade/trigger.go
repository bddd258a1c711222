package cascade

import (
	"log/slog"
	"math"

	"github.com/Domusgpt/vib3code-0-sub002/internal/param"
)

// TriggerParameterCascade fires every rule registered for trigger, in
// declaration order, merging the resulting deltas into live state.
//
// The call applies synchronously: its effect is visible to the very
// next DeriveSection call, before any Step runs. It does not notify
// listeners or advance the revision; the next effective Step does.
//
// Unknown triggers are silent no-ops. Rules whose scope cannot be
// resolved from the context are skipped, never widened.
func (s *Store) TriggerParameterCascade(trigger string, ctx param.CascadeContext) {
	trigger = param.NormalizeID(trigger)
	ctx.SectionID = param.NormalizeID(ctx.SectionID)
	ctx.LayerType = param.NormalizeID(ctx.LayerType)

	s.mu.Lock()
	defer s.mu.Unlock()

	rules, ok := s.rules[trigger]
	if !ok {
		s.logger.Debug("trigger has no rules", slog.String("trigger", trigger))
		return
	}

	source := ctx.Source()
	for _, rule := range rules {
		scope, ok := rule.ResolveScope(ctx)
		if !ok {
			s.logger.Debug("rule skipped, context lacks addressing",
				slog.String("trigger", trigger),
				slog.String("mode", string(rule.Mode)),
				slog.String("parameter", string(rule.Parameter)))
			continue
		}

		value := s.eval.Apply(source, rule.Relationship)
		if math.Abs(value) < pruneEpsilon && !s.deltas.has(scope, rule.Parameter) {
			// Too small to survive the next prune and nothing to merge
			// into; writing it would only burn budget.
			continue
		}

		if !s.deltas.has(scope, rule.Parameter) && s.budget.NeedsEviction(s.deltas.len()) {
			victim, evicted := s.deltas.evictSmallest()
			if evicted {
				s.logger.Warn("delta budget exceeded, evicting smallest",
					slog.String("token", s.token),
					slog.String("scope", victim.Scope.String()),
					slog.String("parameter", string(victim.Parameter)),
					slog.Float64("value", victim.Value),
					slog.Int64("evictions", s.budget.RecordEviction()))
			}
		}

		created := s.deltas.merge(scope, rule.Parameter, value, trigger)
		s.logger.Debug("cascade delta applied",
			slog.String("trigger", trigger),
			slog.String("scope", scope.String()),
			slog.String("parameter", string(rule.Parameter)),
			slog.Float64("value", value),
			slog.Bool("created", created))
	}
}
