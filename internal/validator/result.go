package validator

// 校验错误码，与消息文本无关
const (
	CodeInvalidUserID         = 100
	CodeInvalidName           = 101
	CodeInvalidProvider       = 102
	CodeInvalidExpirationDate = 103
)

// Error 单条校验错误
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ValidationResult 一次校验的全部错误，为空表示通过
type ValidationResult struct {
	errors []Error
}

func NewValidationResult() *ValidationResult {
	return &ValidationResult{}
}

// Add 追加一条错误
func (r *ValidationResult) Add(code int, message string) {
	r.errors = append(r.errors, Error{Code: code, Message: message})
}

// Errors 返回错误列表的副本
func (r *ValidationResult) Errors() []Error {
	out := make([]Error, len(r.errors))
	copy(out, r.errors)
	return out
}

func (r *ValidationResult) HasErrors() bool {
	return len(r.errors) > 0
}

// Codes 按出现顺序返回错误码
func (r *ValidationResult) Codes() []int {
	codes := make([]int, 0, len(r.errors))
	for _, e := range r.errors {
		codes = append(codes, e.Code)
	}
	return codes
}
