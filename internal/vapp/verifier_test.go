package vapp

import "github.com/ethereum/go-ethereum/common"

type alwaysValidVerifier struct{}

func (alwaysValidVerifier) Verify(vkWords []uint32, publicValuesHash common.Hash) bool {
	return true
}
