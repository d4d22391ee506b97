package prayer

// DepositPerByte is the rent rate in native units per byte of record
// footprint. Creating a record locks footprint times rate inside the record
// balance; the deposit comes back to a wallet only when the record is
// deleted.
const DepositPerByte = 10

// DepositFor returns the rent deposit for a record of the given kind.
// Unknown kinds have no footprint.
func DepositFor(kind string) uint64 {
	switch kind {
	case KindChain:
		return ChainRecordSize * DepositPerByte
	case KindAgent:
		return AgentRecordSize * DepositPerByte
	case KindPrayer:
		return PrayerRecordSize * DepositPerByte
	case KindClaim:
		return ClaimRecordSize * DepositPerByte
	default:
		return 0
	}
}
