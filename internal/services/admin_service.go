package services

import (
	"fmt"

	"github.com/ruralpay/escrow/internal/config"
	"github.com/ruralpay/escrow/internal/models"
	"github.com/ruralpay/escrow/internal/pricing"
	"go.uber.org/zap"
)

// SetParam upserts a typed engine parameter.
func (e *Engine) SetParam(caller, key string, value any, description string) error {
	if err := e.requireOperator(caller); err != nil {
		e.reject("set_param", caller, err)
		return err
	}
	if err := e.params.SetParam(key, value, description); err != nil {
		e.reject("set_param", caller, err)
		return err
	}
	e.logger.Info("Parameter set", zap.String("key", key), zap.Any("value", value))
	return nil
}

// Params lists every parameter.
func (e *Engine) Params() []config.Param {
	return e.params.List()
}

// PublishPrice starts a new reference price round. Open offers keep the
// price they were created with.
func (e *Engine) PublishPrice(caller string, s pricing.Snapshot) error {
	if err := e.requireOperator(caller); err != nil {
		e.reject("publish_price", caller, err)
		return err
	}
	if e.publisher == nil {
		err := fmt.Errorf("%w: reference price feed is read only", models.ErrInvalidState)
		e.reject("publish_price", caller, err)
		return err
	}
	if err := e.publisher.Publish(s); err != nil {
		e.reject("publish_price", caller, err)
		return err
	}
	e.logger.Info("Reference price published", zap.Uint64("round_id", s.RoundID), zap.String("seeds_per_usd", s.SeedsPerUSD.String()))
	return nil
}

// Reset clears every table. Parameters and the price feed are kept.
func (e *Engine) Reset(caller string) error {
	if err := e.requireOperator(caller); err != nil {
		e.reject("reset", caller, err)
		return err
	}
	e.store.Reset()
	e.logger.Warn("All escrow tables cleared", zap.String("operator", caller))
	return nil
}
