package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"time"

	ecommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vultisig/coinengine/internal/btc"
	"github.com/vultisig/coinengine/internal/cardano"
	"github.com/vultisig/coinengine/internal/chain"
	"github.com/vultisig/coinengine/internal/codec"
	"github.com/vultisig/coinengine/internal/evm"
	"github.com/vultisig/coinengine/internal/metrics"
	"github.com/vultisig/coinengine/internal/provider"
	"github.com/vultisig/coinengine/internal/signer"
	"github.com/vultisig/coinengine/internal/txerr"
	"github.com/vultisig/coinengine/internal/types"
	"github.com/vultisig/coinengine/internal/util"
	"github.com/vultisig/coinengine/internal/utxo"
)

func newRootCmd(cfg config, logger logrus.FieldLogger) *cobra.Command {
	root := &cobra.Command{
		Use:           "coinengine",
		Short:         "Build and assemble smart-card wallet transactions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newAddressCmd(cfg),
		newValidateCmd(cfg),
		newFeeCmd(cfg, logger),
		newOutputsCmd(cfg),
		newSendCmd(cfg, logger),
	)
	return root
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newAddressCmd(cfg config) *cobra.Command {
	return &cobra.Command{
		Use:   "address <chain> <pubkey-hex>",
		Short: "Derive the receive address of a public key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := types.ParseChain(args[0])
			if err != nil {
				return err
			}
			pub, err := codec.HexToBytes(args[1])
			if err != nil {
				return fmt.Errorf("invalid public key: %w", err)
			}
			s, err := cfg.settings()
			if err != nil {
				return err
			}
			addr, err := chain.DeriveAddress(c, pub, s)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), addr)
			return err
		},
	}
}

func newValidateCmd(cfg config) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <chain> <address>",
		Short: "Check that an address is valid for a chain",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := types.ParseChain(args[0])
			if err != nil {
				return err
			}
			s, err := cfg.settings()
			if err != nil {
				return err
			}
			if !chain.ValidateAddress(c, args[1], s) {
				return fmt.Errorf("invalid %s address: %s", c, args[1])
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return err
		},
	}
}

type feeOutput struct {
	Balance            string `json:"balance"`
	Inputs             int    `json:"inputs"`
	Fee                string `json:"fee"`
	Change             string `json:"change"`
	AmountForRecipient string `json:"amount_for_recipient"`
	DustAbsorbed       uint64 `json:"dust_absorbed"`
}

func newFeeCmd(cfg config, logger logrus.FieldLogger) *cobra.Command {
	var (
		amount      string
		extraFee    string
		feeIncluded bool
		compressed  bool
	)
	cmd := &cobra.Command{
		Use:   "fee <chain> <address>",
		Short: "Plan inputs and fee for a Bitcoin-family send",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := types.ParseChain(args[0])
			if err != nil {
				return err
			}
			if !c.IsUTXO() {
				return fmt.Errorf("fee planning is only available for bitcoin-family chains, got %s", c)
			}
			decimals, _ := util.GetNativeDecimals(c)
			req := utxo.Request{FeeIncluded: feeIncluded, Compressed: compressed}
			if amount != "" {
				v, err := util.ToBaseUnits(amount, decimals)
				if err != nil {
					return err
				}
				if req.Amount, err = util.ToUint64(txerr.ErrAmountBelowMinimum, v); err != nil {
					return err
				}
			}
			if extraFee != "" {
				v, err := util.ToBaseUnits(extraFee, decimals)
				if err != nil {
					return err
				}
				if req.ExtraFee, err = util.ToUint64(txerr.ErrFeeOutOfBounds, v); err != nil {
					return err
				}
			}

			bc, err := cfg.blockchair()
			if err != nil {
				return err
			}
			available, err := provider.UTXOFallback{bc}.UnspentOutputs(cmd.Context(), c, args[1])
			if err != nil {
				return err
			}
			balance, err := provider.BalanceRace{bc}.Balance(cmd.Context(), c, args[1])
			if err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{
				"outputs": len(available),
				"balance": balance,
			}).Debug("fetched unspent outputs")

			plan, err := utxo.Plan(available, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), feeOutput{
				Balance:            util.FromBaseUnits(balance, decimals),
				Inputs:             len(plan.Inputs),
				Fee:                util.FromBaseUnits(new(big.Int).SetUint64(plan.Fee), decimals),
				Change:             util.FromBaseUnits(new(big.Int).SetUint64(plan.Change), decimals),
				AmountForRecipient: util.FromBaseUnits(new(big.Int).SetUint64(plan.AmountForRecipient), decimals),
				DustAbsorbed:       plan.DustAbsorbed,
			})
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount in coin units, empty sweeps the address")
	cmd.Flags().StringVar(&extraFee, "extra-fee", "", "extra fee in coin units")
	cmd.Flags().BoolVar(&feeIncluded, "fee-included", false, "deduct the fee from the amount")
	cmd.Flags().BoolVar(&compressed, "compressed", true, "the wallet key is compressed")
	return cmd
}

func newOutputsCmd(cfg config) *cobra.Command {
	return &cobra.Command{
		Use:   "outputs <chain> <txid> <address>",
		Short: "List the outputs of a transaction that pay to an address",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := types.ParseChain(args[0])
			if err != nil {
				return err
			}
			if !c.IsUTXO() {
				return fmt.Errorf("outputs are only available for bitcoin-family chains, got %s", c)
			}
			bc, err := cfg.blockchair()
			if err != nil {
				return err
			}
			outs, err := bc.OutputsTo(cmd.Context(), c, args[1], args[2])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), toJobUTXOs(outs))
		},
	}
}

// remainingOutputs is the wallet's output set after tx: the spent inputs are
// removed and the change output, when there is one, is added unconfirmed.
func remainingOutputs(available []utxo.UnspentOutput, tx *btc.UnsignedTx, signed, ownScript []byte) ([]jobUTXO, error) {
	var change *utxo.UnspentOutput
	if tx.Plan.Change > 0 {
		outs, err := utxo.ParseUnspentOutputs(signed, ownScript, 0)
		if err != nil {
			return nil, err
		}
		// change is always the last output
		for i := range outs {
			if int(outs[i].Index) == len(tx.Outputs)-1 {
				change = &outs[i]
			}
		}
		if change == nil {
			return nil, fmt.Errorf("signed transaction has no change output")
		}
	}
	return toJobUTXOs(utxo.UpdateAvailable(available, tx.Plan.Inputs, change)), nil
}

// cardSignature replays a signature the card produced out of band.
type cardSignature struct {
	raw      []byte
	signedAt time.Time
}

func (c cardSignature) Sign(_ context.Context, _ string, payloads [][]byte) (signer.Result, error) {
	return signer.Result{Signature: c.raw, SignedAt: c.signedAt}, nil
}

type evmBroadcaster struct {
	rpc *evm.RPCService
}

func (b evmBroadcaster) Broadcast(ctx context.Context, _ types.Chain, payload []byte) (string, error) {
	return b.rpc.Broadcast(ctx, payload)
}

type sendOutput struct {
	OperationID string    `json:"operation_id"`
	Chain       string    `json:"chain"`
	Method      string    `json:"method"`
	Payloads    []string  `json:"payloads,omitempty"`
	Signed      string    `json:"signed,omitempty"`
	TxID        string    `json:"tx_id,omitempty"`
	Remaining   []jobUTXO `json:"remaining_utxos,omitempty"`
}

func newSendCmd(cfg config, logger logrus.FieldLogger) *cobra.Command {
	var (
		jobPath   string
		signature string
		broadcast bool
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Build a send and print its payloads, or assemble it from card signatures",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			j, err := loadJob(jobPath)
			if err != nil {
				return err
			}
			w, err := j.wallet()
			if err != nil {
				return err
			}
			s, err := cfg.settings()
			if err != nil {
				return err
			}
			req, err := j.request(w.Chain, s)
			if err != nil {
				return err
			}
			st, err := j.state(w, s)
			if err != nil {
				return err
			}

			routes := signer.Router{}
			if w.Chain.IsUTXO() {
				bc, err := cfg.blockchair()
				if err != nil {
					return err
				}
				routes[w.Chain] = bc
				if j.Fetch {
					from, err := chain.DeriveAddress(w.Chain, w.PubKey, s)
					if err != nil {
						return err
					}
					if st.UTXOs, err = (provider.UTXOFallback{bc}).UnspentOutputs(ctx, w.Chain, from); err != nil {
						return err
					}
				}
			}
			if (w.Chain == types.Cardano || w.Chain == types.CardanoShelley) && cfg.Cardano.SubmitURL != "" {
				routes[w.Chain] = cardano.NewSubmitter(cfg.Cardano.SubmitURL)
			}
			if w.Chain == types.Ethereum && cfg.Ethereum.RPCURL != "" {
				client, err := ethclient.DialContext(ctx, cfg.Ethereum.RPCURL)
				if err != nil {
					return fmt.Errorf("failed to dial ethereum rpc: %w", err)
				}
				defer client.Close()
				rpc := evm.NewRPCService(client)
				routes[w.Chain] = evmBroadcaster{rpc: rpc}
				if j.Fetch {
					from, err := chain.DeriveAddress(w.Chain, w.PubKey, s)
					if err != nil {
						return err
					}
					if st.EVM, err = rpc.Account(ctx, ecommon.HexToAddress(from), s.EVM.Token); err != nil {
						return err
					}
				}
			}

			builder, err := chain.NewBuilder(w, s, st, logger)
			if err != nil {
				return err
			}

			var raw []byte
			if signature != "" {
				if raw, err = codec.HexToBytes(signature); err != nil {
					return fmt.Errorf("invalid signature: %w", err)
				}
			}
			var bc signer.Broadcaster
			if broadcast {
				bc = routes
			}
			svc := signer.NewService(cardSignature{raw: raw, signedAt: time.Now()}, bc, metrics.NewSendMetrics(), logger)

			op, err := svc.Prepare(w.Chain, w.Method, builder, req)
			if err != nil {
				return err
			}
			out := sendOutput{
				OperationID: op.ID.String(),
				Chain:       w.Chain.String(),
				Method:      w.Method.String(),
			}

			if signature == "" {
				payloads, err := op.Payloads()
				if err != nil {
					return err
				}
				for _, p := range payloads {
					out.Payloads = append(out.Payloads, codec.BytesToHex(p))
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			sent, err := svc.SignAndBroadcast(ctx, op, "")
			if len(sent.Signed) > 0 {
				out.Signed = codec.BytesToHex(sent.Signed)
				out.TxID = sent.TxID
				if tx, ok := op.Unsigned().(*btc.UnsignedTx); ok && err == nil {
					script, serr := spendScript(w, s.Network)
					if serr != nil {
						return serr
					}
					if out.Remaining, serr = remainingOutputs(st.UTXOs, tx, sent.Signed, script); serr != nil {
						return serr
					}
				}
				if perr := printJSON(cmd.OutOrStdout(), out); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&jobPath, "job", "", "path to the JSON job file")
	cmd.Flags().StringVar(&signature, "signature", "", "concatenated r||s card signatures, hex")
	cmd.Flags().BoolVar(&broadcast, "broadcast", false, "broadcast the signed transaction")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}
