package response

// APIResponseCode is the numeric result code carried in every response envelope.
type APIResponseCode int

const (
	APIResponseCodeOK                   APIResponseCode = 0
	APIResponseCodeBadRequest           APIResponseCode = 40000
	APIResponseCodeDowngradeNotAllowed  APIResponseCode = 40001
	APIResponseCodeNoActiveSubscription APIResponseCode = 40002
	APIResponseCodeCancelLocked         APIResponseCode = 40003
	APIResponseCodeSubscriptionNotFound APIResponseCode = 40004
	APIResponseCodeUnauthorized         APIResponseCode = 40100
	APIResponseCodeConflict             APIResponseCode = 40900
	APIResponseCodeError                APIResponseCode = 50000
)

var codeToMsg = map[APIResponseCode]string{
	APIResponseCodeOK:                   "ok",
	APIResponseCodeBadRequest:           "bad_request",
	APIResponseCodeDowngradeNotAllowed:  "downgrade_not_allowed",
	APIResponseCodeNoActiveSubscription: "no_active_subscription",
	APIResponseCodeCancelLocked:         "cancel_locked",
	APIResponseCodeSubscriptionNotFound: "subscription_not_found",
	APIResponseCodeUnauthorized:         "unauthorized",
	APIResponseCodeConflict:             "wallet_busy",
	APIResponseCodeError:                "unexpected error",
}

// APIResponse is the generic response envelope used by HTTP APIs.
// Use OKT / ErrorT helpers to construct instances.
type APIResponse[T any] struct {
	Code    APIResponseCode `json:"code"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

// OKT returns a successful response with data.
func OKT[T any](data T) *APIResponse[T] {
	return &APIResponse[T]{Code: APIResponseCodeOK, Message: codeToMsg[APIResponseCodeOK], Data: data}
}

// ErrorT returns an error response with message and optional data.
func ErrorT[T any](code APIResponseCode, data T) *APIResponse[T] {
	return &APIResponse[T]{Code: code, Message: codeToMsg[code], Data: data}
}
