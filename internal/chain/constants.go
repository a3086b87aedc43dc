package chain

import "time"

const (
	// Confirmations is the block depth a receipt needs before it is settled.
	Confirmations = 5

	// BaseUnitDecimals is the exponent between wei and the native coin.
	BaseUnitDecimals = 18

	DefaultRPCTimeout = 15 * time.Second
	DefaultRPS        = 10
)

// Contract event names
const (
	EventPassMinted   = "PassMinted"
	EventPassUpgraded = "PassUpgraded"
)

// passContractABI covers the parts of the pass contract this service reads.
const passContractABI = `[
	{
		"type": "function",
		"name": "getUserPass",
		"stateMutability": "view",
		"inputs": [{"name": "user", "type": "address"}],
		"outputs": [
			{"name": "passId", "type": "uint256"},
			{"name": "points", "type": "uint256"}
		]
	},
	{
		"type": "event",
		"name": "PassMinted",
		"anonymous": false,
		"inputs": [
			{"name": "user", "type": "address", "indexed": true},
			{"name": "passId", "type": "uint256", "indexed": false},
			{"name": "amountPaid", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "PassUpgraded",
		"anonymous": false,
		"inputs": [
			{"name": "user", "type": "address", "indexed": true},
			{"name": "oldPassId", "type": "uint256", "indexed": false},
			{"name": "newPassId", "type": "uint256", "indexed": false},
			{"name": "amountPaid", "type": "uint256", "indexed": false}
		]
	}
]`
