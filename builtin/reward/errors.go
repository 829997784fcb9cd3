// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reward

import "github.com/Increment-Finance/peripheral-contracts-sub004/builtin/reverts"

const (
	ErrAboveMaxRewardTokens      reverts.Kind = "RewardController_AboveMaxRewardTokens"
	ErrAboveMaxInflationRate     reverts.Kind = "RewardController_AboveMaxInflationRate"
	ErrBelowMinReductionFactor   reverts.Kind = "RewardController_BelowMinReductionFactor"
	ErrInvalidRewardTokenAddress reverts.Kind = "RewardController_InvalidRewardTokenAddress"
	ErrIncorrectWeightsCount     reverts.Kind = "RewardController_IncorrectWeightsCount"
	ErrIncorrectWeightsSum       reverts.Kind = "RewardController_IncorrectWeightsSum"
	ErrWeightExceedsMax          reverts.Kind = "RewardController_WeightExceedsMax"
	ErrDuplicateMarket           reverts.Kind = "RewardController_DuplicateMarket"

	ErrUninitializedStartTime      reverts.Kind = "RewardDistributor_UninitializedStartTime"
	ErrAlreadyInitializedStartTime reverts.Kind = "RewardDistributor_AlreadyInitializedStartTime"
	ErrPositionAlreadyRegistered   reverts.Kind = "RewardDistributor_PositionAlreadyRegistered"
	ErrUserPositionMismatch        reverts.Kind = "RewardDistributor_UserPositionMismatch"
	ErrInvalidEcosystemReserve     reverts.Kind = "RewardDistributor_InvalidEcosystemReserve"
	ErrInvalidMarket               reverts.Kind = "RewardDistributor_InvalidMarket"
	ErrPaused                      reverts.Kind = "RewardDistributor_Paused"

	ErrCallerIsNotClearingHouse reverts.Kind = "PerpRewardDistributor_CallerIsNotClearingHouse"

	ErrCallerIsNotStakingToken      reverts.Kind = "SMRD_CallerIsNotStakingToken"
	ErrInvalidMaxMultiplierTooLow   reverts.Kind = "SMRD_InvalidMaxMultiplierTooLow"
	ErrInvalidMaxMultiplierTooHigh  reverts.Kind = "SMRD_InvalidMaxMultiplierTooHigh"
	ErrInvalidSmoothingValueTooLow  reverts.Kind = "SMRD_InvalidSmoothingValueTooLow"
	ErrInvalidSmoothingValueTooHigh reverts.Kind = "SMRD_InvalidSmoothingValueTooHigh"
	ErrInvalidSafetyModule          reverts.Kind = "SMRD_InvalidSafetyModule"
)
