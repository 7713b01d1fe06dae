// Package signer drives a constructed operation through the card and out to
// the network.
package signer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vultisig/coinengine/internal/chain"
	"github.com/vultisig/coinengine/internal/metrics"
	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
)

// Result is what the card returns: concatenated 64-byte r||s signatures, one
// per payload, and the time it signed. The caller persists SignedAt.
type Result struct {
	Signature []byte
	SignedAt  time.Time
}

type Signer interface {
	Sign(ctx context.Context, pin string, payloads [][]byte) (Result, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, c types.Chain, payload []byte) (string, error)
}

// Router dispatches broadcasts to a per-chain Broadcaster.
type Router map[types.Chain]Broadcaster

func (r Router) Broadcast(ctx context.Context, c types.Chain, payload []byte) (string, error) {
	b, ok := r[c]
	if !ok {
		return "", fmt.Errorf("no broadcaster for %s", c)
	}
	return b.Broadcast(ctx, c, payload)
}

type Sent struct {
	OperationID uuid.UUID
	TxID        string
	Signed      []byte
	SignedAt    time.Time
}

type Service struct {
	signer      Signer
	broadcaster Broadcaster
	metrics     *metrics.SendMetrics
	logger      logrus.FieldLogger
}

// NewService creates a Service. broadcaster may be nil, in which case the
// signed payload is returned without being sent.
func NewService(signer Signer, broadcaster Broadcaster, m *metrics.SendMetrics, logger logrus.FieldLogger) *Service {
	if m == nil {
		m = metrics.NewSendMetrics()
	}
	return &Service{
		signer:      signer,
		broadcaster: broadcaster,
		metrics:     m,
		logger:      logger.WithField("pkg", "signer.Service"),
	}
}

// Prepare constructs the unsigned transaction for req.
func (s *Service) Prepare(c types.Chain, method types.SigningMethod, builder types.Builder, req types.SendRequest) (*chain.Operation, error) {
	op, err := chain.NewOperation(c, method, builder, req)
	s.metrics.RecordBuild(c.String(), err == nil)
	if err != nil {
		s.logger.WithError(err).WithField("chain", c.String()).Error("failed to construct transaction")
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"chain":        c.String(),
		"operation_id": op.ID.String(),
	}).Info("transaction constructed")
	return op, nil
}

// SignAndBroadcast signs op on the card and broadcasts it. Cancellation is
// honored up to the signer call; once signatures are back, assembly runs to
// completion. A broadcast error still returns the signed payload.
func (s *Service) SignAndBroadcast(ctx context.Context, op *chain.Operation, pin string) (Sent, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"chain":        op.Chain.String(),
		"operation_id": op.ID.String(),
	})

	payloads, err := op.Payloads()
	if err != nil {
		return Sent{}, fmt.Errorf("failed to get payloads: %w", err)
	}
	if err = ctx.Err(); err != nil {
		op.Fail(err)
		return Sent{}, fmt.Errorf("cancelled before signing: %w", err)
	}

	start := time.Now()
	res, err := s.signer.Sign(ctx, pin, payloads)
	s.metrics.RecordSign(op.Chain.String(), op.Method.String(), err == nil, time.Since(start))
	if err != nil {
		op.Fail(err)
		logger.WithError(err).Error("signer failed")
		return Sent{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	signed, err := op.Complete(res.Signature)
	if err != nil {
		s.metrics.RecordAssembleFailure(op.Chain.String(), failureReason(err))
		logger.WithError(err).Error("failed to assemble signed transaction")
		return Sent{}, err
	}
	sent := Sent{
		OperationID: op.ID,
		Signed:      signed,
		SignedAt:    res.SignedAt,
	}
	logger.WithField("payloads", len(payloads)).Info("transaction signed")

	if s.broadcaster == nil {
		return sent, nil
	}
	txID, err := s.broadcaster.Broadcast(ctx, op.Chain, signed)
	s.metrics.RecordBroadcast(op.Chain.String(), err == nil)
	if err != nil {
		logger.WithError(err).Error("failed to broadcast transaction")
		return sent, fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	sent.TxID = txID
	logger.WithField("tx_id", txID).Info("transaction broadcast")
	return sent, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, txerr.ErrRecoveryIDNotFound):
		return metrics.ReasonRecoveryID
	case errors.Is(err, txerr.ErrSignatureMismatch):
		return metrics.ReasonSignature
	case errors.Is(err, txerr.ErrInvalidSignatureLength):
		return metrics.ReasonSignatureLength
	case errors.Is(err, txerr.ErrInvalidState):
		return metrics.ReasonState
	default:
		return metrics.ReasonOther
	}
}
