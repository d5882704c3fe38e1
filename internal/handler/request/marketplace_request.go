package request

// MetaTxMintRequest relayer 提交的已签名铸造请求
type MetaTxMintRequest struct {
	Payload   string `json:"payload" binding:"required,hexbytes"`   // ABI 编码的请求
	Length    string `json:"length" binding:"required"`             // payload 字节长度的十进制字符串
	Signature string `json:"signature" binding:"required,hexbytes"` // 65 字节 r||s||v
}

// MetaTxRentRequest relayer (承租人) 提交的已签名租赁请求
type MetaTxRentRequest struct {
	Payload         string `json:"payload" binding:"required,hexbytes"`
	Length          string `json:"length" binding:"required"`
	Signature       string `json:"signature" binding:"required,hexbytes"`
	RequestedAmount uint32 `json:"requested_amount" binding:"required,min=1"`
}

// ReturnRentedRequest 批量回收到期租赁
type ReturnRentedRequest struct {
	Collection string   `json:"collection" binding:"required,eth_addr"`
	TokenIDs   []string `json:"token_ids" binding:"required,min=1,dive,numeric"`
	Amounts    []uint32 `json:"amounts" binding:"required,min=1"`
	Lender     string   `json:"lender" binding:"required,eth_addr"`
	Renter     string   `json:"renter" binding:"required,eth_addr"`
}

// FeeTier minimum_stake 为代币单位的十进制字符串
type FeeTier struct {
	MinimumStake      string `json:"minimum_stake" binding:"required"`
	MarketplaceFeeBps uint32 `json:"marketplace_fee_bps" binding:"max=10000"`
	MintFeeBps        uint32 `json:"mint_fee_bps" binding:"max=10000"`
}

// ReplaceFeeTiersRequest 整表替换
type ReplaceFeeTiersRequest struct {
	Tiers []FeeTier `json:"tiers" binding:"required,min=1,dive"`
}
