package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// PlanStep is one step of a launch plan file.
type PlanStep struct {
	Kind string `json:"kind"`
	// To is the target address, empty for deploy steps.
	To string `json:"to,omitempty"`
	// Value is the wei amount in decimal notation.
	Value string `json:"value,omitempty"`
	// Data is the hex-encoded calldata or init code.
	Data string `json:"data,omitempty"`
	// GasLimit of zero means estimate at build time.
	GasLimit uint64 `json:"gas_limit,omitempty"`
}

// Plan is a launch sequence loaded from disk.
type Plan struct {
	Steps []PlanStep `json:"steps"`
}

// Signer signs assembled transactions for the bundle account.
type Signer interface {
	Address() common.Address
	Sign(tx *types.Transaction) (hexutil.Bytes, error)
}

// LimitEstimator provides gas limits for plan steps that omit one.
type LimitEstimator interface {
	EstimateLimit(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// LoadPlan reads and validates a launch plan file.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %v", err)
	}

	var plan Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to parse plan file %s: %v", path, err)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan file %s contains no steps", path)
	}

	for i, step := range plan.Steps {
		if _, ok := stepOrder[StepKind(step.Kind)]; !ok {
			return nil, fmt.Errorf("plan step %d has unknown kind %q", i, step.Kind)
		}
		if StepKind(step.Kind) == StepDeploy {
			if step.To != "" {
				return nil, fmt.Errorf("deploy step must not have a target address")
			}
			if step.Data == "" {
				return nil, fmt.Errorf("deploy step requires init code")
			}
		} else if step.To == "" {
			return nil, fmt.Errorf("plan step %d (%s) requires a target address", i, step.Kind)
		}
		if step.To != "" && !common.IsHexAddress(step.To) {
			return nil, fmt.Errorf("plan step %d has invalid address %q", i, step.To)
		}
		if _, err := parseValue(step.Value); err != nil {
			return nil, fmt.Errorf("plan step %d: %v", i, err)
		}
		if step.Data != "" {
			if _, err := hexutil.Decode(step.Data); err != nil {
				return nil, fmt.Errorf("plan step %d has invalid data: %v", i, err)
			}
		}
	}
	return &plan, nil
}

// StepsFromPlan turns plan entries into buildable bundle steps signed by the
// given signer. Steps without an explicit gas limit are estimated when built.
func StepsFromPlan(plan *Plan, signer Signer, limits LimitEstimator) ([]Step, error) {
	steps := make([]Step, 0, len(plan.Steps))
	for _, entry := range plan.Steps {
		entry := entry

		var to *common.Address
		if entry.To != "" {
			addr := common.HexToAddress(entry.To)
			to = &addr
		}
		value, err := parseValue(entry.Value)
		if err != nil {
			return nil, err
		}
		var data []byte
		if entry.Data != "" {
			data, err = hexutil.Decode(entry.Data)
			if err != nil {
				return nil, err
			}
		}

		steps = append(steps, Step{
			Kind: StepKind(entry.Kind),
			Build: func(ctx context.Context, input BuildInput) (hexutil.Bytes, error) {
				limit := entry.GasLimit
				if limit == 0 {
					estimated, estErr := limits.EstimateLimit(ctx, ethereum.CallMsg{
						From:  signer.Address(),
						To:    to,
						Value: value,
						Data:  data,
					})
					if estErr != nil {
						return nil, fmt.Errorf("failed to size %s step: %w", entry.Kind, estErr)
					}
					limit = estimated
				}
				tx := types.NewTx(&types.LegacyTx{
					Nonce:    input.Nonce,
					To:       to,
					Value:    value,
					Gas:      limit,
					GasPrice: input.GasPrice,
					Data:     data,
				})
				return signer.Sign(tx)
			},
		})
	}
	return steps, nil
}

// parseValue parses a decimal wei amount, defaulting to zero.
func parseValue(value string) (*big.Int, error) {
	if value == "" {
		return new(big.Int), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("invalid wei value %q", value)
	}
	return parsed, nil
}
