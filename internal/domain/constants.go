package domain

const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"

	TxTypeDeposit       = "deposit"
	TxTypeWithdrawal    = "withdrawal"
	TxTypeCampaignBonus = "campaign_bonus"

	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

// ReferencePrefix returns the operator-facing prefix used when minting
// reference ids for a transaction type.
func ReferencePrefix(txType string) string {
	switch txType {
	case TxTypeDeposit:
		return "dep_"
	case TxTypeWithdrawal:
		return "wdr_"
	case TxTypeCampaignBonus:
		return "bon_"
	default:
		return "txn_"
	}
}
