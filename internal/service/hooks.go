package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"price-predicates/internal/alerting"
	"price-predicates/internal/predicate"
)

// NewInvalidationHook returns a transition hook that notifies when a predicate
// stops holding. Delivery failures are logged only.
func NewInvalidationHook(notifier alerting.Notifier, channels []string, logger zerolog.Logger) predicate.TransitionHook {
	log := logger.With().Str("component", "invalidation_hook").Logger()
	return func(ctx context.Context, rec predicate.Record, v predicate.Validation) {
		note := alerting.Notification{
			PredicateID:   rec.ID,
			ChainID:       rec.ChainID,
			OracleAddress: rec.OracleAddress,
			OwnerAddress:  rec.OwnerAddress,
			Threshold:     v.ThresholdPrice,
			CurrentPrice:  v.CurrentPrice,
			DeviationPct:  v.Deviation,
			TolerancePct:  v.Tolerance,
			Status:        string(v.Status),
			ObservedAt:    time.UnixMilli(v.Timestamp).UTC(),
			Channels:      channels,
		}
		if err := notifier.Notify(ctx, note); err != nil {
			log.Error().Err(err).Str("predicate_id", rec.ID).Msg("failed to dispatch invalidation alert")
		}
	}
}
