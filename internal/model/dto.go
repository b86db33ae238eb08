package model

// PacketEntryDTO is one (token, price) pair of an attested packet as it
// travels over the wire. Price is a base-10 wei string.
type PacketEntryDTO struct {
	Token string `json:"token" binding:"required"`
	Price string `json:"price" binding:"required"`
}

// PacketDTO is the wire form of an attested price packet.
type PacketDTO struct {
	Entries     []PacketEntryDTO `json:"entries" binding:"required,min=1"`
	RequestType uint8            `json:"request_type"`
	Deadline    int64            `json:"deadline" binding:"required"`
	Signature   string           `json:"signature" binding:"required"`
}

// SettleRequest asks the gateway to sweep a batch of maker/token positions.
// Makers and Tokens are parallel arrays; SuppliedValueWei is the native value
// the caller escrows against the batch.
type SettleRequest struct {
	Makers           []string  `json:"makers" binding:"required,min=1"`
	Tokens           []string  `json:"tokens" binding:"required,min=1"`
	Packet           PacketDTO `json:"packet" binding:"required"`
	SuppliedValueWei string    `json:"supplied_value_wei" binding:"required"`
}

// LegDTO reports one settled sweep inside a batch response.
type LegDTO struct {
	Maker       string `json:"maker"`
	Token       string `json:"token"`
	Destination string `json:"destination"`
	TokenAmount string `json:"token_amount"`
	GrossWei    string `json:"gross_wei"`
	PayableWei  string `json:"payable_wei"`
	DiscountBps uint64 `json:"discount_bps"`
}

// SettleResponse is the batch receipt returned to the caller.
type SettleResponse struct {
	BatchID        string   `json:"batch_id"`
	Caller         string   `json:"caller"`
	Attestor       string   `json:"attestor"`
	Preview        bool     `json:"preview,omitempty"`
	Legs           []LegDTO `json:"legs"`
	SkippedLegs    int      `json:"skipped_legs"`
	TotalGrossWei  string   `json:"total_gross_wei"`
	ProtocolCutWei string   `json:"protocol_cut_wei"`
	RefundWei      string   `json:"refund_wei"`
	RetainedWei    string   `json:"retained_wei"`
	CreatedAt      int64    `json:"created_at"`
}

// SetDestinationRequest registers a payout override for a maker. The
// signature must recover to the maker itself.
type SetDestinationRequest struct {
	Maker       string `json:"maker" binding:"required"`
	Destination string `json:"destination" binding:"required"`
	Deadline    int64  `json:"deadline" binding:"required"`
	Signature   string `json:"signature" binding:"required"`
}

// PayoutResponse reports a protocol fee payout split across both wallets.
type PayoutResponse struct {
	PrimaryWallet   string `json:"primary_wallet"`
	PrimaryAmount   string `json:"primary_amount_wei"`
	SecondaryWallet string `json:"secondary_wallet"`
	SecondaryAmount string `json:"secondary_amount_wei"`
	PaidAt          int64  `json:"paid_at"`
}

type SetFeeRequest struct {
	FeeBps uint64 `json:"fee_bps"`
}

type SetSplitRequest struct {
	SplitBps uint64 `json:"split_bps"`
}

type SetWalletsRequest struct {
	Primary   string `json:"primary" binding:"required"`
	Secondary string `json:"secondary" binding:"required"`
}

type SetTierDiscountRequest struct {
	Tier        uint8  `json:"tier"`
	DiscountBps uint64 `json:"discount_bps"`
}

type AssignTierRequest struct {
	Token string `json:"token" binding:"required"`
	Tier  uint8  `json:"tier"`
}

type OverrideDecimalsRequest struct {
	Token    string `json:"token" binding:"required"`
	Decimals uint8  `json:"decimals"`
}

type WhitelistRequest struct {
	Caller  string `json:"caller" binding:"required"`
	Allowed bool   `json:"allowed"`
}

type SetWhitelistEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

type SetFrozenRequest struct {
	Frozen bool `json:"frozen"`
}

type TrustSignerRequest struct {
	Signer string `json:"signer" binding:"required"`
}

// LedgerCreditRequest deposits funds into the custodial ledger. An empty
// Token credits native value; otherwise the token balance is credited and,
// when Approve is set, the operator allowance is raised to Amount.
type LedgerCreditRequest struct {
	Account string `json:"account" binding:"required"`
	Token   string `json:"token,omitempty"`
	Amount  string `json:"amount" binding:"required"`
	Approve bool   `json:"approve,omitempty"`
}

type TokenMetadataResponse struct {
	Token       string `json:"token"`
	Initialized bool   `json:"initialized"`
	Decimals    uint8  `json:"decimals"`
	Tier        uint8  `json:"tier"`
	Source      string `json:"source"`
}

type DestinationResponse struct {
	Maker       string `json:"maker"`
	Destination string `json:"destination"`
	Overridden  bool   `json:"overridden"`
}

type ParamsResponse struct {
	ProtocolFeeBps  uint64           `json:"protocol_fee_bps"`
	PayoutSplitBps  uint64           `json:"payout_split_bps"`
	PrimaryWallet   string           `json:"primary_wallet"`
	SecondaryWallet string           `json:"secondary_wallet"`
	TierDiscounts   map[uint8]uint64 `json:"tier_discounts"`
	TrustedSigners  []string         `json:"trusted_signers"`
	WhitelistOn     bool             `json:"whitelist_enabled"`
	MaxBatchLegs    int              `json:"max_batch_legs"`
	OverageWei      string           `json:"overage_threshold_wei"`
	AccruedFeesWei  string           `json:"accrued_fees_wei"`
	Frozen          bool             `json:"frozen"`
}
