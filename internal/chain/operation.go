package chain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vultisig/coinengine/internal/sig"
	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
)

type Status int

const (
	StatusConstructed Status = iota
	StatusDigestsReady
	StatusSigned
	StatusSerialized
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusConstructed:
		return "constructed"
	case StatusDigestsReady:
		return "digests_ready"
	case StatusSigned:
		return "signed"
	case StatusSerialized:
		return "serialized"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Operation is one send attempt. It moves Constructed -> DigestsReady ->
// Signed -> Serialized; any error moves it to Failed, and nothing leaves
// Serialized or Failed.
type Operation struct {
	ID     uuid.UUID
	Chain  types.Chain
	Method types.SigningMethod

	status   Status
	unsigned types.Unsigned
	payloads [][]byte
	signed   []byte
	err      error
}

// NewOperation constructs the unsigned transaction for req.
func NewOperation(c types.Chain, method types.SigningMethod, builder types.Builder, req types.SendRequest) (*Operation, error) {
	unsigned, err := builder.Construct(req)
	if err != nil {
		return nil, fmt.Errorf("failed to construct %s transaction: %w", c, err)
	}
	return &Operation{
		ID:       uuid.New(),
		Chain:    c,
		Method:   method,
		status:   StatusConstructed,
		unsigned: unsigned,
	}, nil
}

func (o *Operation) Status() Status {
	return o.status
}

// Err is the error that failed the operation, if any.
func (o *Operation) Err() error {
	return o.err
}

func (o *Operation) Unsigned() types.Unsigned {
	return o.unsigned
}

func (o *Operation) fail(err error) error {
	o.status = StatusFailed
	o.err = err
	o.unsigned = nil
	o.payloads = nil
	return err
}

// Fail aborts the operation from outside, e.g. when the signer errors.
func (o *Operation) Fail(err error) {
	if o.status == StatusSerialized || o.status == StatusFailed {
		return
	}
	if err == nil {
		err = errors.New("aborted")
	}
	_ = o.fail(err)
}

// Payloads returns what the card signs: digests for SignHash, or raw bodies
// for SignRaw on transactions that support it.
func (o *Operation) Payloads() ([][]byte, error) {
	switch o.status {
	case StatusConstructed:
	case StatusDigestsReady:
		return o.payloads, nil
	default:
		return nil, fmt.Errorf("%w: payloads requested in %s", txerr.ErrInvalidState, o.status)
	}

	var payloads [][]byte
	switch o.Method {
	case types.SignHash:
		payloads = o.unsigned.DigestsToSign()
	case types.SignRaw:
		rp, ok := o.unsigned.(types.RawPayloader)
		if !ok {
			return nil, o.fail(fmt.Errorf("%w: %s needs digest signing", txerr.ErrUnsupportedSigningMethod, o.Chain))
		}
		var err error
		if payloads, err = rp.RawPayloads(); err != nil {
			return nil, o.fail(fmt.Errorf("failed to get raw payloads: %w", err))
		}
	default:
		return nil, o.fail(fmt.Errorf("%w: %s", txerr.ErrUnsupportedSigningMethod, o.Method))
	}
	if len(payloads) == 0 {
		return nil, o.fail(txerr.Invariant("at least one payload to sign", map[string]int64{"payloads": 0}))
	}

	o.payloads = payloads
	o.status = StatusDigestsReady
	return payloads, nil
}

// Complete assembles the signed payload from the card's concatenated
// signatures. It succeeds at most once.
func (o *Operation) Complete(raw []byte) ([]byte, error) {
	if o.status != StatusDigestsReady {
		return nil, fmt.Errorf("%w: complete in %s", txerr.ErrInvalidState, o.status)
	}
	if want := sig.RawSize * len(o.payloads); len(raw) != want {
		return nil, o.fail(fmt.Errorf("%w: got %d bytes for %d payloads", txerr.ErrInvalidSignatureLength, len(raw), len(o.payloads)))
	}
	o.status = StatusSigned

	signed, err := o.unsigned.AssembleSigned(raw)
	if err != nil {
		return nil, o.fail(fmt.Errorf("failed to assemble signed transaction: %w", err))
	}
	o.signed = signed
	o.status = StatusSerialized
	o.unsigned = nil
	return signed, nil
}

// Signed returns the serialized transaction once the operation completed.
func (o *Operation) Signed() ([]byte, bool) {
	if o.status != StatusSerialized {
		return nil, false
	}
	return o.signed, true
}
