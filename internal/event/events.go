package event

const (
	TopicMinted   = "marketplace_events_minted"
	TopicRented   = "marketplace_events_rented"
	TopicReturned = "marketplace_events_returned"
)

// MintedEvent 元交易铸造成功
// Topic: marketplace_events_minted
type MintedEvent struct {
	RequestHash  string `json:"request_hash"`
	Signer       string `json:"signer"`
	Relayer      string `json:"relayer"`
	Collection   string `json:"collection"`
	TokenID      string `json:"token_id"`
	Amount       uint32 `json:"amount"`
	MetadataURI  string `json:"metadata_uri"`
	PaymentAsset string `json:"payment_asset"`
	Price        string `json:"price"` // 18 位小数的整数字符串
	Fee          string `json:"fee"`
	FeeBps       uint32 `json:"fee_bps"`
}

// RentedEvent 租赁创建成功，消费方据此在到期时安排回收
// Topic: marketplace_events_rented
type RentedEvent struct {
	RequestHash    string `json:"request_hash"`
	Lender         string `json:"lender"`
	Renter         string `json:"renter"`
	Collection     string `json:"collection"`
	TokenID        string `json:"token_id"`
	Amount         uint32 `json:"amount"`
	ExpirationDate int64  `json:"expiration_date"`
	PaymentAsset   string `json:"payment_asset"`
	Payment        string `json:"payment"`
	Fee            string `json:"fee"`
	FeeBps         uint32 `json:"fee_bps"`
}

// ReturnedItem 一次回收中的单项
type ReturnedItem struct {
	TokenID string `json:"token_id"`
	Amount  uint32 `json:"amount"`
}

// ReturnedEvent 租赁回收成功
// Topic: marketplace_events_returned
type ReturnedEvent struct {
	Collection string         `json:"collection"`
	Lender     string         `json:"lender"`
	Renter     string         `json:"renter"`
	Items      []ReturnedItem `json:"items"`
	SettledAt  int64          `json:"settled_at"`
}
