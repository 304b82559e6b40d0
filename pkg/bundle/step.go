package bundle

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// StepKind identifies one launch-sequence transaction.
type StepKind string

const (
	StepDeploy        StepKind = "deploy"
	StepApproveA      StepKind = "approve_a"
	StepApproveB      StepKind = "approve_b"
	StepCreatePool    StepKind = "create_pool"
	StepAddLiquidity  StepKind = "add_liquidity"
	StepApproveRouter StepKind = "approve_router"
	StepSwap          StepKind = "swap"
	StepFeeTransfer   StepKind = "fee_transfer"
)

// stepOrder is the canonical position of each step inside a bundle. Later
// steps depend on earlier ones landing in the same block.
var stepOrder = map[StepKind]int{
	StepDeploy:        0,
	StepApproveA:      1,
	StepApproveB:      2,
	StepCreatePool:    3,
	StepAddLiquidity:  4,
	StepApproveRouter: 5,
	StepSwap:          6,
	StepFeeTransfer:   7,
}

// BuildInput carries the per-step values assigned during bundle assembly.
type BuildInput struct {
	// Nonce is the step's contiguous account nonce.
	Nonce uint64
	// GasPrice is the bundle-wide price from the estimator.
	GasPrice *big.Int
}

// Step is one transaction slot in a bundle. Build produces the signed raw
// transaction for the assigned nonce and price.
type Step struct {
	Kind  StepKind
	Build func(ctx context.Context, input BuildInput) (hexutil.Bytes, error)
}

// orderSteps validates the step kinds and returns them sorted into canonical
// order. Unknown and duplicate kinds are rejected.
func orderSteps(steps []Step) ([]Step, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("bundle requires at least one step")
	}

	seen := make(map[StepKind]bool, len(steps))
	for _, step := range steps {
		if _, ok := stepOrder[step.Kind]; !ok {
			return nil, fmt.Errorf("unknown step kind %q", step.Kind)
		}
		if seen[step.Kind] {
			return nil, fmt.Errorf("duplicate step kind %q", step.Kind)
		}
		if step.Build == nil {
			return nil, fmt.Errorf("step %q has no builder", step.Kind)
		}
		seen[step.Kind] = true
	}

	ordered := make([]Step, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return stepOrder[ordered[i].Kind] < stepOrder[ordered[j].Kind]
	})
	return ordered, nil
}
