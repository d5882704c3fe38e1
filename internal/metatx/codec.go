package metatx

import (
	"bytes"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"marketplace-core/pkg/errno"
)

// 与中继脚本使用的 ABI 定义保持一致
const methodsABI = `[
  {"type":"function","name":"_mintERC1155","stateMutability":"payable","outputs":[],"inputs":[
    {"name":"_erc1155","type":"address"},
    {"name":"_tokenId","type":"uint256"},
    {"name":"_amount","type":"uint24"},
    {"name":"_price","type":"uint256"},
    {"name":"_erc20payment","type":"address"},
    {"name":"_metadata","type":"string"},
    {"name":"expirationDate","type":"uint256"}]},
  {"type":"function","name":"_rentERC1155","stateMutability":"payable","outputs":[],"inputs":[
    {"name":"_erc1155","type":"address"},
    {"name":"_tokenId","type":"uint256"},
    {"name":"_amount","type":"uint24"},
    {"name":"_price","type":"uint256"},
    {"name":"_erc20payment","type":"address"},
    {"name":"_expirationDate","type":"uint256"}]}
]`

const selectorLen = 4

var (
	mintMethod abi.Method
	rentMethod abi.Method
)

func init() {
	parsed, err := abi.JSON(strings.NewReader(methodsABI))
	if err != nil {
		panic(fmt.Sprintf("metatx: invalid method ABI: %v", err))
	}
	mintMethod = parsed.Methods["_mintERC1155"]
	rentMethod = parsed.Methods["_rentERC1155"]
}

func methodFor(kind Kind) (abi.Method, error) {
	switch kind {
	case KindMint:
		return mintMethod, nil
	case KindRent:
		return rentMethod, nil
	default:
		return abi.Method{}, errno.ErrMalformedPayload.WithMessage(fmt.Sprintf("unknown operation kind %d", kind))
	}
}

// Selector 返回操作对应的 4 字节函数选择器
func Selector(kind Kind) []byte {
	m, err := methodFor(kind)
	if err != nil {
		return nil
	}
	return m.ID
}

// LengthHeader 返回 payload 长度的十进制 ASCII 表示
func LengthHeader(payload []byte) []byte {
	return []byte(strconv.Itoa(len(payload)))
}

// ParseLengthHeader 解析十进制 ASCII 长度头。只接受规范形式 (无符号、无前导零)。
func ParseLengthHeader(header []byte) (int, error) {
	if len(header) == 0 {
		return 0, errno.ErrLengthMismatch.WithMessage("empty length header")
	}
	if len(header) > 1 && header[0] == '0' {
		return 0, errno.ErrLengthMismatch.WithMessage("length header has leading zeros")
	}
	for _, c := range header {
		if c < '0' || c > '9' {
			return 0, errno.ErrLengthMismatch.WithMessage("length header is not decimal ascii")
		}
	}
	n, err := strconv.Atoi(string(header))
	if err != nil {
		return 0, errno.ErrLengthMismatch.WithMessage(err.Error())
	}
	return n, nil
}

// CheckLength 在任何解码和验签之前校验声明长度
func CheckLength(payload, header []byte) error {
	declared, err := ParseLengthHeader(header)
	if err != nil {
		return err
	}
	if declared != len(payload) {
		return errno.ErrLengthMismatch.WithMessage(fmt.Sprintf("declared %d, actual %d", declared, len(payload)))
	}
	return nil
}

// Decode 校验长度头后按 kind 的字段顺序解码 payload。
// payload 可以带 4 字节选择器 (encodeFunctionCall) 也可以不带 (encodeParameters)。
func Decode(kind Kind, payload, lengthHeader []byte) (*Request, error) {
	if err := CheckLength(payload, lengthHeader); err != nil {
		return nil, err
	}
	return decodePayload(kind, payload)
}

func decodePayload(kind Kind, payload []byte) (req *Request, err error) {
	method, err := methodFor(kind)
	if err != nil {
		return nil, err
	}

	data := payload
	withSelector := false
	if len(payload)%32 == selectorLen {
		if !bytes.Equal(payload[:selectorLen], method.ID) {
			return nil, errno.ErrMalformedPayload.WithMessage(fmt.Sprintf("selector %x does not match %s", payload[:selectorLen], kind))
		}
		data = payload[selectorLen:]
		withSelector = true
	}

	defer func() {
		if r := recover(); r != nil {
			req, err = nil, errno.ErrMalformedPayload.WithMessage(fmt.Sprint(r))
		}
	}()

	values, err := method.Inputs.Unpack(data)
	if err != nil {
		return nil, errno.ErrMalformedPayload.WithMessage(err.Error())
	}

	req = &Request{Kind: kind, Payload: append([]byte(nil), payload...)}
	if err := req.assign(values); err != nil {
		return nil, err
	}

	// 只接受规范编码: 重新编码必须逐字节一致，尾部多余字节或脏的高位都会被拒绝
	canonical, err := Encode(req, withSelector)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(canonical, payload) {
		return nil, errno.ErrMalformedPayload.WithMessage("non-canonical encoding")
	}
	if req.Amount == 0 {
		return nil, errno.ErrInvalidAmount
	}
	return req, nil
}

func (r *Request) assign(values []interface{}) error {
	want := 6
	if r.Kind == KindMint {
		want = 7
	}
	if len(values) != want {
		return errno.ErrMalformedPayload.WithMessage(fmt.Sprintf("want %d fields, got %d", want, len(values)))
	}

	var ok bool
	if r.Collection, ok = values[0].(common.Address); !ok {
		return fieldErr("collection")
	}
	if r.TokenID, ok = values[1].(*big.Int); !ok {
		return fieldErr("tokenId")
	}
	amount, ok := values[2].(*big.Int)
	if !ok {
		return fieldErr("amount")
	}
	if amount.Sign() < 0 || amount.BitLen() > 24 {
		return errno.ErrMalformedPayload.WithMessage("amount overflows uint24")
	}
	r.Amount = uint32(amount.Uint64())
	if r.Price, ok = values[3].(*big.Int); !ok {
		return fieldErr("price")
	}
	if r.PaymentAsset, ok = values[4].(common.Address); !ok {
		return fieldErr("paymentAsset")
	}

	expIdx := 5
	if r.Kind == KindMint {
		if r.MetadataURI, ok = values[5].(string); !ok {
			return fieldErr("metadata")
		}
		expIdx = 6
	}
	exp, ok := values[expIdx].(*big.Int)
	if !ok {
		return fieldErr("expirationDate")
	}
	if exp.BitLen() > 63 {
		return errno.ErrMalformedPayload.WithMessage("expirationDate out of range")
	}
	r.ExpirationDate = exp.Int64()
	return nil
}

func fieldErr(name string) error {
	return errno.ErrMalformedPayload.WithMessage("bad field " + name)
}

// MintParams mint 请求的签名字段
type MintParams struct {
	Collection     common.Address
	TokenID        *big.Int
	Amount         uint32
	Price          *big.Int
	PaymentAsset   common.Address
	MetadataURI    string
	ExpirationDate int64
}

// RentParams rent 请求的签名字段
type RentParams struct {
	Collection     common.Address
	TokenID        *big.Int
	Amount         uint32
	Price          *big.Int
	PaymentAsset   common.Address
	ExpirationDate int64
}

func EncodeMint(p MintParams, withSelector bool) ([]byte, error) {
	return Encode(&Request{
		Kind:           KindMint,
		Collection:     p.Collection,
		TokenID:        p.TokenID,
		Amount:         p.Amount,
		Price:          p.Price,
		PaymentAsset:   p.PaymentAsset,
		MetadataURI:    p.MetadataURI,
		ExpirationDate: p.ExpirationDate,
	}, withSelector)
}

func EncodeRent(p RentParams, withSelector bool) ([]byte, error) {
	return Encode(&Request{
		Kind:           KindRent,
		Collection:     p.Collection,
		TokenID:        p.TokenID,
		Amount:         p.Amount,
		Price:          p.Price,
		PaymentAsset:   p.PaymentAsset,
		ExpirationDate: p.ExpirationDate,
	}, withSelector)
}

// Encode 按 kind 的字段顺序编码请求 (忽略 r.Payload)
func Encode(r *Request, withSelector bool) ([]byte, error) {
	method, err := methodFor(r.Kind)
	if err != nil {
		return nil, err
	}
	if r.Amount > MaxAmount {
		return nil, errno.ErrMalformedPayload.WithMessage("amount overflows uint24")
	}
	tokenID := r.TokenID
	if tokenID == nil {
		tokenID = new(big.Int)
	}
	price := r.Price
	if price == nil {
		price = new(big.Int)
	}

	args := []interface{}{
		r.Collection,
		tokenID,
		new(big.Int).SetUint64(uint64(r.Amount)),
		price,
		r.PaymentAsset,
	}
	if r.Kind == KindMint {
		args = append(args, r.MetadataURI)
	}
	args = append(args, big.NewInt(r.ExpirationDate))

	data, err := method.Inputs.Pack(args...)
	if err != nil {
		return nil, errno.ErrMalformedPayload.WithMessage(err.Error())
	}
	if !withSelector {
		return data, nil
	}
	return append(append([]byte(nil), method.ID...), data...), nil
}
