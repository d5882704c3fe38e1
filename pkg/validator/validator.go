package validator

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Init 在 gin 的校验引擎上注册自定义规则
func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		Register(v)
	}
}

// Register eth_addr: 0x 开头的 20 字节地址; hexbytes: 0x 开头的偶数长度 hex
func Register(v *validator.Validate) {
	_ = v.RegisterValidation("eth_addr", func(fl validator.FieldLevel) bool {
		return common.IsHexAddress(fl.Field().String()) && strings.HasPrefix(fl.Field().String(), "0x")
	})
	_ = v.RegisterValidation("hexbytes", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if !strings.HasPrefix(s, "0x") {
			return false
		}
		_, err := hex.DecodeString(s[2:])
		return err == nil
	})
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		var errMsgs []string
		for _, e := range validationErrors {
			field := e.Field()
			param := e.Param()

			switch e.Tag() {
			case "required":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不能为空", field))
			case "min":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 至少为 %s", field, param))
			case "max":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不能超过 %s", field, param))
			case "eth_addr":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不是合法的以太坊地址", field))
			case "hexbytes":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 必须是 0x 开头的 hex 字符串", field))
			case "len":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 长度必须为 %s", field, param))
			default:
				errMsgs = append(errMsgs, fmt.Sprintf("%s 校验失败 (%s)", field, e.Tag()))
			}
		}
		return strings.Join(errMsgs, "; ")
	}
	return "请求参数错误"
}
