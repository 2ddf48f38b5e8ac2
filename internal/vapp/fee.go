package vapp

import "github.com/holiman/uint256"

// bipsDenominator is the basis-point scale (10000 bips == 100%).
const bipsDenominator = 10000

// splitFee divides cost into (protocol_fee, staker_fee, prover_fee) using
// protocolBips and stakerBips of cost, with the remainder routed to the
// prover itself. Conservation holds by construction: the three outputs
// always sum to cost. The split itself has no literal source in
// original_source/crates/fee (that crate computes a USDC-display
// conversion, not a protocol/staker/prover split).
func splitFee(cost *uint256.Int, protocolBips, stakerBips uint64) (protocolFee, stakerFee, proverFee *uint256.Int) {
	protocolFee = new(uint256.Int).Div(
		new(uint256.Int).Mul(cost, uint256.NewInt(protocolBips)),
		uint256.NewInt(bipsDenominator),
	)
	stakerFee = new(uint256.Int).Div(
		new(uint256.Int).Mul(cost, uint256.NewInt(stakerBips)),
		uint256.NewInt(bipsDenominator),
	)
	proverFee = new(uint256.Int).Sub(cost, new(uint256.Int).Add(protocolFee, stakerFee))
	return protocolFee, stakerFee, proverFee
}
